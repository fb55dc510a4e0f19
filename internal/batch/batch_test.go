package batch

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dpam-project/dpam/internal/model"
	"github.com/dpam-project/dpam/internal/refdata"
	"github.com/dpam-project/dpam/internal/stages"
	"github.com/dpam-project/dpam/internal/tools"
)

// noopRunner never actually invokes an external tool; it exists only so
// New/pending/mark can be exercised without a real Orchestrator.Run.
type noopRunner struct{}

func (noopRunner) Run(builder tools.Builder) ([]byte, error) { return nil, nil }

func TestNewSeedsStatesFromExistingCheckpoints(t *testing.T) {
	dir := t.TempDir()
	ref := &refdata.Data{}
	inputs := map[string]string{
		"prot1": "/inputs/prot1.pdb",
		"prot2": "/inputs/prot2.pdb",
	}
	o, err := New(dir, ref, noopRunner{}, Options{}, inputs)
	require.NoError(t, err)
	require.Len(t, o.order, 2)
	require.Contains(t, o.states, "prot1")
	require.Contains(t, o.states, "prot2")
	require.Equal(t, 10, o.opts.ProgressModulus)
}

func TestPendingSkipsCompletedAndHaltedProteins(t *testing.T) {
	dir := t.TempDir()
	ref := &refdata.Data{}
	inputs := map[string]string{"prot1": "a", "prot2": "b", "prot3": "c"}
	o, err := New(dir, ref, noopRunner{}, Options{}, inputs)
	require.NoError(t, err)

	o.states["prot1"].MarkComplete(model.HHSEARCH)
	o.states["prot2"].MarkFailed(model.HHSEARCH, "timed out")

	pending := o.pending(model.HHSEARCH)
	require.Equal(t, []string{"prot3"}, pending)
}

func TestHaltedEarlierOnlyTriggersOnCriticalStages(t *testing.T) {
	dir := t.TempDir()
	ref := &refdata.Data{}
	inputs := map[string]string{"prot1": "a"}
	o, err := New(dir, ref, noopRunner{}, Options{}, inputs)
	require.NoError(t, err)

	require.False(t, o.haltedEarlier("prot1"))

	o.states["prot1"].MarkFailed(model.SSE, "non-critical failure")
	require.False(t, o.haltedEarlier("prot1"), "SSE is not a critical stage")

	o.states["prot1"].MarkFailed(model.FOLDSEEK, "tool crashed")
	require.True(t, o.haltedEarlier("prot1"), "FOLDSEEK is critical")
}

func TestMarkRecordsSuccessAndFailureIntoBothStates(t *testing.T) {
	dir := t.TempDir()
	ref := &refdata.Data{}
	inputs := map[string]string{"prot1": "a"}
	o, err := New(dir, ref, noopRunner{}, Options{}, inputs)
	require.NoError(t, err)

	o.mark("prot1", model.PREPARE, nil)
	require.True(t, o.states["prot1"].Completed[model.PREPARE])
	status, ok := o.batchState.Get(model.PREPARE, "prot1")
	require.True(t, ok)
	require.Equal(t, model.StatusComplete, status)

	o.mark("prot1", model.FOLDSEEK, assertErr{"no hits"})
	require.Equal(t, "no hits", o.states["prot1"].Failed[model.FOLDSEEK])
	status2, ok2 := o.batchState.Get(model.FOLDSEEK, "prot1")
	require.True(t, ok2)
	require.True(t, status2.IsFailed())
}

func TestMarkClearsPriorFailureOnSubsequentSuccess(t *testing.T) {
	dir := t.TempDir()
	ref := &refdata.Data{}
	inputs := map[string]string{"prot1": "a"}
	o, err := New(dir, ref, noopRunner{}, Options{}, inputs)
	require.NoError(t, err)

	o.mark("prot1", model.SSE, assertErr{"transient error"})
	o.mark("prot1", model.SSE, nil)
	require.True(t, o.states["prot1"].Completed[model.SSE])
	_, stillFailed := o.states["prot1"].Failed[model.SSE]
	require.False(t, stillFailed)
}

func TestCtxForBuildsContextWithMatchingPrefix(t *testing.T) {
	dir := t.TempDir()
	ref := &refdata.Data{}
	inputs := map[string]string{"prot1": "a"}
	o, err := New(dir, ref, noopRunner{}, Options{}, inputs)
	require.NoError(t, err)

	ctx := o.ctxFor("prot1")
	require.Equal(t, "prot1", ctx.Prefix)
	require.Same(t, ref, ctx.Ref)
	var _ *stages.Context = ctx
}

type assertErr struct{ msg string }

func (e assertErr) Error() string { return e.msg }
