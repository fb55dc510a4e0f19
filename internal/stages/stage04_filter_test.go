package stages

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dpam-project/dpam/internal/refdata"
	"github.com/dpam-project/dpam/internal/tools"
)

func testRef() *refdata.Data {
	return &refdata.Data{
		PDBMap: map[string]refdata.PDBMapEntry{
			"1abcA": {UID: 100, Chain: "A"},
			"2xyzA": {UID: 200, Chain: "A"},
		},
		Metadata: map[int64]refdata.MetadataEntry{
			100: {Key: "e100.1.1.1"},
			200: {Key: "e200.1.1.1"},
		},
	}
}

func TestFilterFoldseekCoverageBoundary(t *testing.T) {
	ref := testRef()
	hits := []tools.Hit{
		{Target: "1abcA", QStart: 1, QEnd: 5, EValue: 1e-10},  // brings exactly 5 new -> kept
		{Target: "2xyzA", QStart: 2, QEnd: 5, EValue: 1e-9},   // only 0 new beyond 1-5 -> rejected
	}
	out := FilterFoldseek(hits, 50, ref)
	require.Len(t, out, 1)
	require.Equal(t, int64(100), out[0].UID)
}

func TestFilterFoldseekRejectsFourNewResidues(t *testing.T) {
	ref := testRef()
	hits := []tools.Hit{
		{Target: "1abcA", QStart: 1, QEnd: 4, EValue: 1e-10}, // only 4 new -> rejected
	}
	out := FilterFoldseek(hits, 50, ref)
	require.Len(t, out, 0)
}

func TestFilterFoldseekKeepsOneRepresentativePerUID(t *testing.T) {
	ref := testRef()
	ref.PDBMap["1abcB"] = refdata.PDBMapEntry{UID: 100, Chain: "A"}
	hits := []tools.Hit{
		{Target: "1abcA", QStart: 1, QEnd: 10, EValue: 1e-10},
		{Target: "1abcB", QStart: 20, QEnd: 30, EValue: 1e-9},
	}
	out := FilterFoldseek(hits, 50, ref)
	require.Len(t, out, 1)
}
