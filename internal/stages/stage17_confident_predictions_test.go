package stages

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfidentPredictionsGoodQualitySingleTGroup(t *testing.T) {
	preds := []DomassPrediction{
		{Row: DomassRow{DomainID: 1, UID: 10, TGroup: "1.1.1"}, Prob: 0.90},
		{Row: DomassRow{DomainID: 1, UID: 11, TGroup: "1.1.1"}, Prob: 0.50}, // same T-group, below 0.60 cutoff
		{Row: DomassRow{DomainID: 1, UID: 20, TGroup: "2.2.2"}, Prob: 0.10}, // far from pStar, not similar
	}
	out := ConfidentPredictions(preds)
	require.Len(t, out, 1)
	require.Equal(t, QualityGood, out[0].Quality)
	require.Equal(t, []string{"1.1.1"}, out[0].SimilarTGroups)
}

func TestConfidentPredictionsOKQualitySharedHGroup(t *testing.T) {
	preds := []DomassPrediction{
		{Row: DomassRow{DomainID: 1, UID: 10, TGroup: "1.1.1"}, Prob: 0.90},
		{Row: DomassRow{DomainID: 1, UID: 11, TGroup: "1.1.2"}, Prob: 0.87}, // within 0.05, shares H-group 1.1
	}
	out := ConfidentPredictions(preds)
	require.Len(t, out, 2)
	for _, p := range out {
		require.Equal(t, QualityOK, p.Quality)
		require.Equal(t, []string{"1.1"}, p.SimilarHGroups)
	}
}

func TestConfidentPredictionsFiltersBelowThreshold(t *testing.T) {
	preds := []DomassPrediction{
		{Row: DomassRow{DomainID: 1, UID: 10, TGroup: "1.1.1"}, Prob: 0.59},
	}
	out := ConfidentPredictions(preds)
	require.Len(t, out, 0)
}

func TestFirstTwoLevels(t *testing.T) {
	require.Equal(t, "1.1", firstTwoLevels("1.1.1"))
	require.Equal(t, "1.1", firstTwoLevels("1.1"))
}
