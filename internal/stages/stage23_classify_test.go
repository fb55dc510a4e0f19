package stages

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dpam-project/dpam/internal/refdata"
)

func TestClassifyLabelThresholds(t *testing.T) {
	require.Equal(t, ClassFull, classifyLabel(0.90, 0.70, 0.70))
	require.Equal(t, ClassFull, classifyLabel(0.90, 0.70, 0.40)) // one side >=0.66 suffices, other only needs >=0.33
	require.Equal(t, ClassPart, classifyLabel(0.90, 0.40, 0.20))
	require.Equal(t, ClassMiss, classifyLabel(0.90, 0.20, 0.20))
	require.Equal(t, ClassMiss, classifyLabel(0.80, 0.90, 0.90)) // probability gate fails regardless of ratios
}

func TestLabelRankOrdering(t *testing.T) {
	require.Greater(t, labelRank(ClassFull), labelRank(ClassPart))
	require.Greater(t, labelRank(ClassPart), labelRank(ClassMiss))
}

func TestClassifyEntitiesPicksBestLabelPerEntity(t *testing.T) {
	dir := newTestRefDir(t, map[string]string{
		"ECOD_length":         "100\tekey100\t10\n",
		"ecod.latest.domains": "100\tekey100\t-\t1.1.1\n",
		"tgroup_length":       "1.1.1\t10\n",
	})
	ref, err := refdata.Load(dir)
	require.NoError(t, err)

	domains := [][]int{{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}}
	preds := []DomassPrediction{
		{Row: DomassRow{DomainID: 1, UID: 100}, Prob: 0.90},
	}
	mappings := []ConfidentMapping{
		{DomainID: 1, UID: 100, HHRange: "1-10"},
	}

	out := ClassifyEntities(domains, nil, preds, mappings, ref)
	require.Len(t, out, 1)
	require.Equal(t, "D1", out[0].EntityID)
	require.Equal(t, int64(100), out[0].UID)
	require.Equal(t, ClassFull, out[0].Label)
}

func TestClassifyEntitiesSkipsUnmappedDomains(t *testing.T) {
	ref, err := refdata.Load(newTestRefDir(t, nil))
	require.NoError(t, err)
	domains := [][]int{{1, 2, 3}}
	out := ClassifyEntities(domains, nil, nil, nil, ref)
	require.Len(t, out, 0)
}
