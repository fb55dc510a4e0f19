package ckpt

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dpam-project/dpam/internal/model"
)

func TestLoadProteinReturnsFreshStateWhenMissing(t *testing.T) {
	dir := t.TempDir()
	st, err := LoadProtein(dir, "prot1")
	require.NoError(t, err)
	require.Equal(t, "prot1", st.Prefix)
	require.Empty(t, st.Completed)
	require.NotNil(t, st.Completed)
	require.NotNil(t, st.Failed)
	require.NotNil(t, st.Metadata)
}

func TestSaveAndLoadProteinRoundTrip(t *testing.T) {
	dir := t.TempDir()
	st := model.NewPipelineState("prot1", dir)
	st.MarkComplete(model.PREPARE)
	st.MarkComplete(model.HHSEARCH)
	st.MarkFailed(model.FOLDSEEK, "timed out")
	st.Metadata["length"] = float64(123)

	require.NoError(t, SaveProtein(dir, st))

	loaded, err := LoadProtein(dir, "prot1")
	require.NoError(t, err)
	require.True(t, loaded.Completed[model.PREPARE])
	require.True(t, loaded.Completed[model.HHSEARCH])
	require.Equal(t, "timed out", loaded.Failed[model.FOLDSEEK])
	require.Equal(t, float64(123), loaded.Metadata["length"])
}

func TestMarkCompleteClearsPriorFailure(t *testing.T) {
	st := model.NewPipelineState("prot1", "/work")
	st.MarkFailed(model.FOLDSEEK, "timed out")
	st.MarkComplete(model.FOLDSEEK)
	require.True(t, st.Completed[model.FOLDSEEK])
	_, stillFailed := st.Failed[model.FOLDSEEK]
	require.False(t, stillFailed)
}

func TestProteinPathIsHiddenDotfile(t *testing.T) {
	path := ProteinPath("/work", "prot1")
	require.Equal(t, "/work/.prot1.dpam_state.json", path)
}

func TestBatchPathIsFixedName(t *testing.T) {
	require.Equal(t, "/work/_batch_state.json", BatchPath("/work"))
}

func TestLoadBatchReturnsFreshStateWhenMissing(t *testing.T) {
	dir := t.TempDir()
	bs, err := LoadBatch(dir)
	require.NoError(t, err)
	require.NotNil(t, bs.Stages)
	require.Empty(t, bs.Stages)
}

func TestSaveAndLoadBatchRoundTrip(t *testing.T) {
	dir := t.TempDir()
	bs := model.NewBatchState()
	bs.Set(model.HHSEARCH, "prot1", model.StatusComplete)
	bs.Set(model.HHSEARCH, "prot2", model.StatusFailed("no hits"))

	require.NoError(t, SaveBatch(dir, bs))

	loaded, err := LoadBatch(dir)
	require.NoError(t, err)
	status, ok := loaded.Get(model.HHSEARCH, "prot1")
	require.True(t, ok)
	require.Equal(t, model.StatusComplete, status)

	status2, ok2 := loaded.Get(model.HHSEARCH, "prot2")
	require.True(t, ok2)
	require.True(t, status2.IsFailed())
}

func TestSummarizeCountsAndBoundsTail(t *testing.T) {
	dir := t.TempDir()
	bs := model.NewBatchState()
	bs.Set(model.FOLDSEEK, "prot1", model.StatusComplete)
	bs.Set(model.FOLDSEEK, "prot2", model.StatusFailed("a"))
	bs.Set(model.FOLDSEEK, "prot3", model.StatusFailed("b"))
	bs.Set(model.FOLDSEEK, "prot4", model.StatusFailed("c"))
	require.NoError(t, SaveBatch(dir, bs))

	summaries, err := Summarize(dir, 2)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	s := summaries[0]
	require.Equal(t, model.FOLDSEEK, s.Stage)
	require.Equal(t, 1, s.Complete)
	require.Equal(t, 3, s.Failed)
	require.Len(t, s.Tail, 2)
}

func TestSaveProteinIsAtomicNoPartialFileOnDisk(t *testing.T) {
	dir := t.TempDir()
	st := model.NewPipelineState("prot1", dir)
	require.NoError(t, SaveProtein(dir, st))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	// No leftover .tmp-* file should remain after a successful save.
	for _, e := range entries {
		require.NotContains(t, e.Name(), ".tmp-")
	}
}
