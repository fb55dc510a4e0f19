package stages

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dpam-project/dpam/internal/model"
)

func sseSeg(id int, typ model.SSEType, residues ...int) []model.SSEResidue {
	var out []model.SSEResidue
	for _, r := range residues {
		out = append(out, model.SSEResidue{Resid: r, SSEID: id, Type: typ})
	}
	return out
}

func TestRefineLabelFullWithEnoughSSE(t *testing.T) {
	require.Equal(t, GoodDomain, refineLabel(ClassFull, 3, 0.70, 0.40, 0.40))
}

func TestRefineLabelFullHighQualityOverride(t *testing.T) {
	require.Equal(t, GoodDomain, refineLabel(ClassFull, 1, 0.96, 0.85, 0.85))
}

func TestRefineLabelFullFallsBackToSimpleTopology(t *testing.T) {
	require.Equal(t, SimpleTopology, refineLabel(ClassFull, 1, 0.90, 0.50, 0.50))
}

func TestRefineLabelMissWithSSE(t *testing.T) {
	require.Equal(t, LowConfidence, refineLabel(ClassMiss, 3, 0.10, 0.10, 0.10))
}

func TestRefineLabelMissWithoutSSE(t *testing.T) {
	require.Equal(t, SimpleTopology, refineLabel(ClassMiss, 1, 0.10, 0.10, 0.10))
}

func TestIntegrateFinalDomainsRenumbersByAscendingMean(t *testing.T) {
	domains := [][]int{{100, 101, 102}, {1, 2, 3}}
	classifications := []Classification{
		{EntityID: "D1", UID: 10, Prob: 0.9, WeightedRatio: 0.9, LengthRatio: 0.9, Label: ClassFull},
		{EntityID: "D2", UID: 20, Prob: 0.9, WeightedRatio: 0.9, LengthRatio: 0.9, Label: ClassFull},
	}
	var sse []model.SSEResidue
	sse = append(sse, sseSeg(1, model.Helix, 1, 2, 3)...)
	sse = append(sse, sseSeg(2, model.Strand, 100, 101, 102)...)

	out := IntegrateFinalDomains(classifications, domains, nil, sse)
	require.Len(t, out, 2)
	require.Equal(t, "nD1", out[0].ID)
	require.Equal(t, int64(20), out[0].UID) // domain 2 (residues 1-3) sorts first
	require.Equal(t, "nD2", out[1].ID)
	require.Equal(t, int64(10), out[1].UID)
}

func TestCountKeptSSEOverlapping(t *testing.T) {
	sse := sseSeg(1, model.Helix, 1, 2, 3)
	sse = append(sse, sseSeg(2, model.Strand, 10, 11, 12)...)
	require.Equal(t, 1, countKeptSSEOverlapping(sse, []int{2, 3, 4}))
	require.Equal(t, 2, countKeptSSEOverlapping(sse, []int{2, 11}))
	require.Equal(t, 0, countKeptSSEOverlapping(sse, []int{50}))
}
