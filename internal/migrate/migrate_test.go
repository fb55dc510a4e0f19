package migrate

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dpam-project/dpam/internal/model"
	"github.com/dpam-project/dpam/internal/pathresolver"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestRunMigratesFlatToSharded(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "prot1.fa", ">prot1\nMKV\n")
	writeFile(t, dir, "prot1.pdb", "ATOM\n")
	writeFile(t, dir, "prot1.hhsearch", "hit\n")
	writeFile(t, dir, "prot1.foldseek", "hit\n")
	writeFile(t, dir, "prot1.foldseek.flt.result", "hit\n")
	writeFile(t, dir, "prot1.finalDPAM.domains", "D1 1-100\n")
	writeFile(t, dir, ".prot1.dpam_state.json", "{}")
	writeFile(t, dir, "prot1.cif", "cif data")

	var log bytes.Buffer
	counts, err := Run(dir, false, &log)
	require.NoError(t, err)
	require.Equal(t, 0, counts.Errors)
	require.Greater(t, counts.Moved, 0)
	require.Greater(t, counts.Copied, 0)

	require.FileExists(t, filepath.Join(dir, "step01_prepare", "prot1.fa"))
	require.FileExists(t, filepath.Join(dir, "step01_prepare", "prot1.pdb"))
	require.FileExists(t, filepath.Join(dir, "step02_hhsearch", "prot1.hhsearch"))
	require.FileExists(t, filepath.Join(dir, "step03_foldseek", "prot1.foldseek"))
	require.FileExists(t, filepath.Join(dir, "step04_foldseek_filter", "prot1.foldseek.flt.result"))

	// finalDPAM.domains is dual-copied into both its owning stage dir
	// and results/, then the root copy is removed.
	require.FileExists(t, filepath.Join(dir, "step13_parse_domains", "prot1.finalDPAM.domains"))
	require.FileExists(t, filepath.Join(dir, "results", "prot1.finalDPAM.domains"))
	require.NoFileExists(t, filepath.Join(dir, "prot1.finalDPAM.domains"))

	// .cif and the hidden state file never move.
	require.FileExists(t, filepath.Join(dir, "prot1.cif"))
	require.FileExists(t, filepath.Join(dir, ".prot1.dpam_state.json"))
}

func TestRunDryRunMakesNoChanges(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "prot1.fa", ">prot1\nMKV\n")
	writeFile(t, dir, ".prot1.dpam_state.json", "{}")

	var log bytes.Buffer
	counts, err := Run(dir, true, &log)
	require.NoError(t, err)
	require.Equal(t, Counts{}, counts)
	require.FileExists(t, filepath.Join(dir, "prot1.fa"))
	require.NoFileExists(t, filepath.Join(dir, "step01_prepare", "prot1.fa"))
	require.Contains(t, log.String(), "MOVE")
}

func TestRunSkipsAlreadyShardedDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "step01_prepare"), 0o755))

	var log bytes.Buffer
	counts, err := Run(dir, false, &log)
	require.NoError(t, err)
	require.Equal(t, Counts{}, counts)
	require.Contains(t, log.String(), "already uses sharded layout")
}

func TestRunNoProteinsFound(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "readme.txt", "nothing to see here")

	var log bytes.Buffer
	counts, err := Run(dir, false, &log)
	require.NoError(t, err)
	require.Equal(t, Counts{}, counts)
	require.Contains(t, log.String(), "no proteins found")
}

func TestClassifyLongestSuffixFirst(t *testing.T) {
	prefixes := map[string]bool{"prot1": true}

	stage, action, ok := classify("prot1.foldseek.flt.result", prefixes)
	require.True(t, ok)
	require.Equal(t, "move", action)
	require.Equal(t, model.FOLDSEEK_FILTER, stage)

	stage2, action2, ok2 := classify("prot1.foldseek", prefixes)
	require.True(t, ok2)
	require.Equal(t, "move", action2)
	require.Equal(t, model.FOLDSEEK, stage2)
	require.NotEqual(t, stage, stage2)
}

func TestClassifyFinalDomainsIsDual(t *testing.T) {
	prefixes := map[string]bool{"prot1": true}
	stage, action, ok := classify("prot1.finalDPAM.domains", prefixes)
	require.True(t, ok)
	require.Equal(t, "dual", action)
	require.Equal(t, model.PARSE_DOMAINS, stage)
}

func TestClassifyRootOnlySuffixesStayPut(t *testing.T) {
	prefixes := map[string]bool{"prot1": true}
	for _, name := range []string{"prot1.cif", "prot1.dpam_state.json", "_batch_state.json"} {
		_, _, ok := classify(name, prefixes)
		require.False(t, ok, "expected %s to stay in root", name)
	}
}

func TestClassifyUnrelatedFileStaysPut(t *testing.T) {
	prefixes := map[string]bool{"prot1": true}
	_, _, ok := classify("unrelated.txt", prefixes)
	require.False(t, ok)
}

func TestDiscoverPrefixesFromStateAndFastaFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".prot1.dpam_state.json", "{}")
	writeFile(t, dir, "prot2.fa", ">prot2\nMKV\n")
	writeFile(t, dir, "unrelated.txt", "x")

	prefixes, err := discoverPrefixes(dir)
	require.NoError(t, err)
	require.True(t, prefixes["prot1"])
	require.True(t, prefixes["prot2"])
	require.Len(t, prefixes, 2)
}

func TestMoveIntoSkipsExistingDestination(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "prot1.fa", "original")

	r := &pathresolver.Resolver{Root: dir, Layout: pathresolver.Sharded}
	require.NoError(t, r.EnsureStageDir(model.PREPARE))
	dest := r.StagePath(model.PREPARE, "prot1.fa")
	require.NoError(t, os.WriteFile(dest, []byte("already there"), 0o644))

	var log bytes.Buffer
	err := moveInto(r, model.PREPARE, filepath.Join(dir, "prot1.fa"), "prot1.fa", false, &log)
	require.NoError(t, err)

	// The pre-existing destination content must survive untouched, and
	// the source file must still exist since the rename was skipped.
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	require.Equal(t, "already there", string(data))
	require.FileExists(t, filepath.Join(dir, "prot1.fa"))
}
