// Package mergegraph renders the stage 19-21 candidate-pair graph that
// feeds stage 22's transitive-closure merge as a DOT file, for
// inspecting why two domains did or didn't end up in the same merged
// entity. It plays no role in the pipeline itself: stage 22 still
// merges with a flat union-find table, not this graph, per the
// design note that a merge of a few dozen domains needs no
// pointer-linked graph structure. Exposed as the "dpam mergegraph"
// subcommand, in the same spirit as the teacher's own discordance-graph
// export.
package mergegraph

import (
	"fmt"
	"io/ioutil"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/encoding"
	"gonum.org/v1/gonum/graph/encoding/dot"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/dpam-project/dpam/internal/stages"
)

// domNode is one parsed domain, identified by its 1-based index into
// the stage-18 domain list.
type domNode struct {
	id  int64
	dom int
}

func (n domNode) ID() int64     { return n.id }
func (n domNode) DOTID() string { return fmt.Sprintf("D%d", n.dom) }

// candEdge is one judged stage-19/21 candidate pair, carrying the
// template uid that proposed it; it is weighted and labelled by stage
// 21's verdict.
type candEdge struct {
	f, t  graph.Node
	uid   int64
	judge stages.ConnectivityJudgement
}

func (e candEdge) From() graph.Node         { return e.f }
func (e candEdge) To() graph.Node           { return e.t }
func (e candEdge) ReversedEdge() graph.Edge { return candEdge{f: e.t, t: e.f, uid: e.uid, judge: e.judge} }
func (e candEdge) Weight() float64          { return float64(e.judge) }

// Attributes implements encoding.Attributer so dot.Marshal renders the
// proposing uid and verdict on each edge.
func (e candEdge) Attributes() []encoding.Attribute {
	label := fmt.Sprintf("uid=%d judge=%d", e.uid, int(e.judge))
	return []encoding.Attribute{{Key: "label", Value: label}}
}

// candidateGraph accumulates domNode/candEdge values into a weighted
// undirected graph, the same construction style as the teacher's
// nameGraph.
type candidateGraph struct {
	*simple.WeightedUndirectedGraph
	nodeFor map[int]domNode
}

func newCandidateGraph() *candidateGraph {
	return &candidateGraph{
		WeightedUndirectedGraph: simple.NewWeightedUndirectedGraph(0, 0),
		nodeFor:                 make(map[int]domNode),
	}
}

func (g *candidateGraph) node(dom int) domNode {
	if n, ok := g.nodeFor[dom]; ok {
		return n
	}
	id := g.NewNode().ID()
	n := domNode{id: id, dom: dom}
	g.nodeFor[dom] = n
	g.AddNode(n)
	return n
}

// Write renders judged into a DOT file at path, one edge per accepted
// or rejected candidate pair. Rejected pairs (judgement 0) are still
// included so the file documents what stage 22 considered and turned
// down, not only what it merged.
func Write(path string, judged []stages.ConnectivityResult) error {
	g := newCandidateGraph()
	for _, j := range judged {
		a := g.node(j.DomainA)
		b := g.node(j.DomainB)
		g.SetWeightedEdge(candEdge{f: a, t: b, uid: j.UID, judge: j.Judgement})
	}
	b, err := dot.Marshal(g, "merge_candidates", "", "\t")
	if err != nil {
		return fmt.Errorf("mergegraph: marshal: %w", err)
	}
	return ioutil.WriteFile(path, b, 0o664)
}
