package iv

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTreeOverlaps(t *testing.T) {
	tr := NewTree([][2]int{{10, 20}, {50, 60}})
	require.True(t, tr.Overlaps(15, 25))
	require.True(t, tr.Overlaps(5, 10))
	require.False(t, tr.Overlaps(21, 49))
	require.True(t, tr.Overlaps(60, 70))
	require.False(t, tr.Overlaps(61, 70))
}

func TestTreeOverlapsEmpty(t *testing.T) {
	tr := NewTree(nil)
	require.False(t, tr.Overlaps(1, 10))
}

func TestTreeBuildsImplicitlyOnQuery(t *testing.T) {
	tr := &Tree{}
	tr.Insert(1, 5)
	require.True(t, tr.Overlaps(3, 3))
}

func TestCoverageGainCountsOnlyNewResidues(t *testing.T) {
	cov := make([]bool, 21)
	MarkCovered(cov, 1, 10)
	require.Equal(t, 5, CoverageGain(cov, 6, 15))
	require.Equal(t, 0, CoverageGain(cov, 1, 10))
	require.Equal(t, 10, CoverageGain(cov, 11, 20))
}

func TestCoverageGainClampsToSliceBounds(t *testing.T) {
	cov := make([]bool, 10)
	require.Equal(t, 4, CoverageGain(cov, 6, 20))
}

func TestMarkCoveredClampsToSliceBounds(t *testing.T) {
	cov := make([]bool, 10)
	MarkCovered(cov, 5, 20)
	for r := 5; r < 10; r++ {
		require.True(t, cov[r])
	}
}

func TestFractionOverlap(t *testing.T) {
	a := map[int]bool{1: true, 2: true, 3: true, 4: true}
	b := map[int]bool{3: true, 4: true, 5: true}
	require.InDelta(t, 0.5, FractionOverlap(a, b), 1e-9)
}

func TestFractionOverlapEmptyA(t *testing.T) {
	require.Equal(t, 0.0, FractionOverlap(map[int]bool{}, map[int]bool{1: true}))
}

func TestFractionOverlapNoOverlap(t *testing.T) {
	a := map[int]bool{1: true, 2: true}
	b := map[int]bool{3: true}
	require.Equal(t, 0.0, FractionOverlap(a, b))
}

func TestFractionOverlapFull(t *testing.T) {
	a := map[int]bool{1: true, 2: true}
	b := map[int]bool{1: true, 2: true, 3: true}
	require.Equal(t, 1.0, FractionOverlap(a, b))
}
