package stages

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dpam-project/dpam/internal/refdata"
)

// newTestRefDir creates the minimal set of reference files refdata.Load
// requires to exist (even empty) and returns the directory.
func newTestRefDir(t *testing.T, extra map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range []string{"ECOD_length", "ECOD_norms", "ECOD_pdbmap"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
	for name, content := range extra {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func TestMergeCandidatesAcceptsMutuallySupportingUIDs(t *testing.T) {
	ref := &refdata.Data{}
	confident := []ConfidentPrediction{
		{DomainID: 1, UID: 100, Prob: 0.90},
		{DomainID: 2, UID: 100, Prob: 0.88},
		{DomainID: 1, UID: 200, Prob: 0.85},
		{DomainID: 2, UID: 200, Prob: 0.83},
	}
	mappings := []ConfidentMapping{
		{DomainID: 1, UID: 100, HHRange: "1-10"},
		{DomainID: 2, UID: 100, HHRange: "50-60"},
		{DomainID: 1, UID: 200, HHRange: "1-10"},
		{DomainID: 2, UID: 200, HHRange: "50-60"},
	}
	out := MergeCandidates(confident, mappings, ref)
	require.Len(t, out, 2)
	require.Equal(t, MergeCandidate{DomainA: 1, DomainB: 2, UID: 100}, out[0])
	require.Equal(t, MergeCandidate{DomainA: 1, DomainB: 2, UID: 200}, out[1])
}

func TestMergeCandidatesRejectsHighOverlap(t *testing.T) {
	ref := &refdata.Data{}
	confident := []ConfidentPrediction{
		{DomainID: 1, UID: 100, Prob: 0.90},
		{DomainID: 2, UID: 100, Prob: 0.88},
	}
	mappings := []ConfidentMapping{
		{DomainID: 1, UID: 100, HHRange: "1-10"},
		{DomainID: 2, UID: 100, HHRange: "1-10"}, // identical range: overlap too high
	}
	out := MergeCandidates(confident, mappings, ref)
	require.Len(t, out, 0)
}

func TestMergeCandidatesRejectsWithoutSupport(t *testing.T) {
	ref := &refdata.Data{}
	confident := []ConfidentPrediction{
		{DomainID: 1, UID: 100, Prob: 0.90},
		{DomainID: 2, UID: 100, Prob: 0.88},
	}
	mappings := []ConfidentMapping{
		{DomainID: 1, UID: 100, HHRange: "1-10"},
		{DomainID: 2, UID: 100, HHRange: "50-60"},
	}
	out := MergeCandidates(confident, mappings, ref)
	require.Len(t, out, 0)
}

func TestWeightedCoverageUniformFallback(t *testing.T) {
	ref, err := refdata.Load(newTestRefDir(t, nil))
	require.NoError(t, err)
	require.Zero(t, weightedCoverage(ref, 999, []int{1, 2, 3})) // unknown uid -> zero length -> zero coverage
}

func TestWeightedCoverageWithKnownLength(t *testing.T) {
	ref, err := refdata.Load(newTestRefDir(t, map[string]string{
		"ECOD_length": "100\tekey\t10\n",
	}))
	require.NoError(t, err)
	require.InDelta(t, 0.5, weightedCoverage(ref, 100, []int{1, 2, 3, 4, 5}), 1e-9)
}
