package mergegraph

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dpam-project/dpam/internal/stages"
)

func TestWriteProducesValidDOT(t *testing.T) {
	judged := []stages.ConnectivityResult{
		{DomainA: 1, DomainB: 2, UID: 101, Judgement: stages.SequenceConnected},
		{DomainA: 2, DomainB: 3, UID: 102, Judgement: stages.StructureConnected},
		{DomainA: 1, DomainB: 3, UID: 103, Judgement: stages.Reject},
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "merge_candidates.dot")
	require.NoError(t, Write(path, judged))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)

	require.Contains(t, out, "graph")
	require.NotContains(t, out, "digraph") // undirected graphs marshal as "graph", not "digraph"
	require.Contains(t, out, "D1")
	require.Contains(t, out, "D2")
	require.Contains(t, out, "D3")
	require.Contains(t, out, "uid=101")
	require.Contains(t, out, "uid=102")
	require.Contains(t, out, "uid=103")
	require.Contains(t, out, "judge=1")
	require.Contains(t, out, "judge=2")
	require.Contains(t, out, "judge=0")
}

func TestWriteEmptyResultSetProducesEmptyGraph(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.dot")
	require.NoError(t, Write(path, nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "merge_candidates")
}

func TestNodeIsMemoizedPerDomain(t *testing.T) {
	g := newCandidateGraph()
	a := g.node(2)
	b := g.node(2)
	require.Equal(t, a.ID(), b.ID())
	require.Equal(t, "D2", a.DOTID())
	require.Len(t, g.nodeFor, 1)

	g.node(3)
	require.Len(t, g.nodeFor, 2)
}
