package cleanup

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyPreservedFiles(t *testing.T) {
	for _, name := range []string{
		"prot1.cif", "prot1.pdb", "prot1.fa", "prot1.hhsearch",
		"prot1.foldseek", "prot1.foldseek.flt.result", "prot1.finalDPAM.domains",
		".prot1.dpam_state.json", "_batch_state.json", "prot1.D1.pdb",
	} {
		require.Equal(t, Preserve, Classify(name), name)
	}
}

func TestClassifyIntermediateFiles(t *testing.T) {
	for _, name := range []string{
		"prot1.a3m", "prot1.ss.a3m", "prot1.hhr", "run.log", "prot1.dssp", "scratch.tmp",
	} {
		require.Equal(t, Intermediate, Classify(name), name)
	}
}

func TestClassifyUnmatchedFile(t *testing.T) {
	require.Equal(t, Unclassified, Classify("notes.txt"))
}

func TestClassifyPreserveWinsOverIntermediate(t *testing.T) {
	// *.dpam_state.json (preserve) is a much narrower pattern than any
	// intermediate glob, but if a name could match both, preserve must
	// be checked first. No such overlap exists today; this just pins
	// the precedence so a future pattern addition can't invert it.
	require.Equal(t, Preserve, Classify("prot1.dpam_state.json"))
}

func TestRunRemovesIntermediatesOnly(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "prot1.fa", ">prot1\nMKV\n")
	writeFile(t, dir, "prot1.a3m", "profile data")
	writeFile(t, dir, "run.log", "log output")
	writeFile(t, dir, "notes.txt", "keep or not, unclear")

	var log bytes.Buffer
	rep, err := Run(dir, false, &log)
	require.NoError(t, err)

	require.NoFileExists(t, filepath.Join(dir, "prot1.a3m"))
	require.NoFileExists(t, filepath.Join(dir, "run.log"))
	require.FileExists(t, filepath.Join(dir, "prot1.fa"))
	require.FileExists(t, filepath.Join(dir, "notes.txt"))

	require.Len(t, rep.Removed, 2)
	require.Len(t, rep.Preserved, 1)
	require.Len(t, rep.Unmatched, 1)
	require.Greater(t, rep.BytesFreed, int64(0))
}

func TestRunDryRunLeavesFilesInPlace(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "prot1.a3m", "profile data")

	var log bytes.Buffer
	rep, err := Run(dir, true, &log)
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(dir, "prot1.a3m"))
	require.Len(t, rep.Removed, 1)
	require.Contains(t, log.String(), "would remove")
}

func TestRunWalksBatchDirContentsLikeAnyOther(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "_batch"), 0o755))
	writeFile(t, filepath.Join(dir, "_batch"), "foldseek_combined.db", "binary data")

	var log bytes.Buffer
	rep, err := Run(dir, false, &log)
	require.NoError(t, err)
	// foldseek_combined.db matches no pattern at all, so it is left
	// alone regardless; the _batch directory itself is never walked
	// into specially, WalkDir just visits its contents like any other.
	require.FileExists(t, filepath.Join(dir, "_batch", "foldseek_combined.db"))
	require.Len(t, rep.Unmatched, 1)
}

func TestIsScratchDir(t *testing.T) {
	require.True(t, IsScratchDir("_prot1_dali_work"))
	require.False(t, IsScratchDir("_batch"))
	require.False(t, IsScratchDir("step01_prepare"))
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}
