package stages

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMergeTransitiveClosureJoinsConnectedDomains(t *testing.T) {
	domains := [][]int{{1, 2, 3}, {4, 5, 6}, {20, 21, 22}}
	judged := []ConnectivityResult{
		{DomainA: 1, DomainB: 2, Judgement: SequenceConnected},
	}
	out := MergeTransitiveClosure(domains, judged)
	require.Len(t, out, 2)

	var sizes []int
	for _, e := range out {
		sizes = append(sizes, len(e.DomainIDs))
	}
	require.ElementsMatch(t, []int{1, 2}, sizes)
}

func TestMergeTransitiveClosureIgnoresRejected(t *testing.T) {
	domains := [][]int{{1, 2, 3}, {4, 5, 6}}
	judged := []ConnectivityResult{
		{DomainA: 1, DomainB: 2, Judgement: Reject},
	}
	out := MergeTransitiveClosure(domains, judged)
	require.Len(t, out, 2)
	for _, e := range out {
		require.Len(t, e.DomainIDs, 1)
	}
}

func TestMergeTransitiveClosureTransitiveChain(t *testing.T) {
	domains := [][]int{{1, 2}, {10, 11}, {20, 21}}
	judged := []ConnectivityResult{
		{DomainA: 1, DomainB: 2, Judgement: SequenceConnected},
		{DomainA: 2, DomainB: 3, Judgement: StructureConnected},
	}
	out := MergeTransitiveClosure(domains, judged)
	require.Len(t, out, 1)
	require.ElementsMatch(t, []int{1, 2, 3}, out[0].DomainIDs)
	require.ElementsMatch(t, []int{1, 2, 10, 11, 20, 21}, out[0].Residues)
}

func TestUnionFindPathCompressionAndUnionBySize(t *testing.T) {
	uf := newUnionFind()
	uf.union(1, 2)
	uf.union(2, 3)
	uf.union(4, 5)
	uf.union(1, 4)
	root := uf.find(1)
	for _, x := range []int{2, 3, 4, 5} {
		require.Equal(t, root, uf.find(x))
	}
}
