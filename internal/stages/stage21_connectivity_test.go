package stages

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dpam-project/dpam/internal/pdbio"
)

func atomAt(resid int, x, y, z float64) pdbio.AtomRecord {
	return pdbio.AtomRecord{ResSeq: resid, Name: "CA", X: x, Y: y, Z: z}
}

func TestJudgeConnectivitySequenceConnected(t *testing.T) {
	domains := [][]int{{1, 2, 3, 4, 5}, {6, 7, 8, 9, 10}}
	candidates := []MergeCandidate{{DomainA: 1, DomainB: 2, UID: 100}}
	structured := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	out := JudgeConnectivity(nil, domains, candidates, structured)
	require.Len(t, out, 1)
	require.Equal(t, SequenceConnected, out[0].Judgement)
}

func TestJudgeConnectivityStructureConnected(t *testing.T) {
	// Far apart in sequence order but every residue pair is close in space.
	domains := [][]int{{1, 2, 3}, {50, 51, 52}}
	candidates := []MergeCandidate{{DomainA: 1, DomainB: 2, UID: 100}}
	var structured []int
	for i := 1; i <= 60; i++ {
		structured = append(structured, i)
	}
	var atoms []pdbio.AtomRecord
	for _, r := range []int{1, 2, 3} {
		atoms = append(atoms, atomAt(r, 0, 0, 0))
	}
	for _, r := range []int{50, 51, 52} {
		atoms = append(atoms, atomAt(r, 1, 1, 1))
	}
	// 3x3 = 9 pairs, all within distance sqrt(3) < 8.
	out := JudgeConnectivity(atoms, domains, candidates, structured)
	require.Len(t, out, 1)
	require.Equal(t, StructureConnected, out[0].Judgement)
}

func TestJudgeConnectivityReject(t *testing.T) {
	domains := [][]int{{1, 2, 3}, {50, 51, 52}}
	candidates := []MergeCandidate{{DomainA: 1, DomainB: 2, UID: 100}}
	var structured []int
	for i := 1; i <= 60; i++ {
		structured = append(structured, i)
	}
	var atoms []pdbio.AtomRecord
	for _, r := range []int{1, 2, 3} {
		atoms = append(atoms, atomAt(r, 0, 0, 0))
	}
	for _, r := range []int{50, 51, 52} {
		atoms = append(atoms, atomAt(r, 1000, 1000, 1000))
	}
	out := JudgeConnectivity(atoms, domains, candidates, structured)
	require.Len(t, out, 1)
	require.Equal(t, Reject, out[0].Judgement)
}

func TestReadConnectivityRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.comparisons")
	body := "D1\tD2\t100\t1\nD2\tD3\t200\t0\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	got, err := ReadConnectivity(path)
	require.NoError(t, err)
	require.Equal(t, []ConnectivityResult{
		{DomainA: 1, DomainB: 2, UID: 100, Judgement: SequenceConnected},
		{DomainA: 2, DomainB: 3, UID: 200, Judgement: Reject},
	}, got)
}

func TestReadConnectivityMissingFileIsEmpty(t *testing.T) {
	got, err := ReadConnectivity(filepath.Join(t.TempDir(), "missing.comparisons"))
	require.NoError(t, err)
	require.Empty(t, got)
}
