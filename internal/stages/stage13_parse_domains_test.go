package stages

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetPDBProbBoundary(t *testing.T) {
	require.InDelta(t, 0.95, GetPDBProb(3.0), 1e-9)
	require.InDelta(t, 0.94, GetPDBProb(3.0001), 1e-9)
	require.InDelta(t, 0.06, GetPDBProb(1000), 1e-9)
}

func TestGetPAEProbBoundary(t *testing.T) {
	require.InDelta(t, 0.97, GetPAEProb(1.0), 1e-9)
	require.InDelta(t, 0.89, GetPAEProb(1.0001), 1e-9)
	require.InDelta(t, 0.11, GetPAEProb(1000), 1e-9)
}

func TestGetHHSProbBoundary(t *testing.T) {
	require.InDelta(t, 0.98, getHHSProb(180), 1e-9)
	require.InDelta(t, 0.94, getHHSProb(179.999), 1e-9)
	require.InDelta(t, 0.50, getHHSProb(0), 1e-9)
}

func TestGetDaliProbBoundary(t *testing.T) {
	require.InDelta(t, 0.95, getDaliProb(35), 1e-9)
	require.InDelta(t, 0.50, getDaliProb(1), 1e-9)
}

func TestCollapseHHDefaultsAndCaps(t *testing.T) {
	require.InDelta(t, 20, collapseHH(nil), 1e-9)
	require.InDelta(t, 90, collapseHH([]float64{50, 10, 10, 10, 10}), 1e-9)
	require.InDelta(t, 150, collapseHH([]float64{50, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10}), 1e-9)
}

func TestCollapseDaliDefaultsAndCaps(t *testing.T) {
	require.InDelta(t, 1, collapseDali(nil), 1e-9)
	require.InDelta(t, 9, collapseDali([]float64{5, 1, 2, 3, 4}), 1e-9)
	require.InDelta(t, 11, collapseDali([]float64{5, 1, 2, 3, 4, 5, 6}), 1e-9)
}

func TestInitialChunksDropsShortAndDisordered(t *testing.T) {
	disordered := map[int]bool{1: true, 2: true, 3: true, 4: true, 5: true}
	chunks := initialChunks(12, disordered)
	// Chunk 1 (1-5) fully disordered, dropped. Chunk 2 (6-10) kept whole.
	// Chunk 3 (11-12) has only 2 residues, dropped.
	require.Len(t, chunks, 1)
	require.Equal(t, []int{6, 7, 8, 9, 10}, chunks[0].residues)
}
