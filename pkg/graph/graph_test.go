package graph_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ravi-parthasarathy/workbench/pkg/graph"
)

func chain(names ...string) *graph.DirectedGraph {
	g := graph.New()
	for i := 0; i+1 < len(names); i++ {
		g.AddEdge(names[i], names[i+1])
	}
	return g
}

// assertTopological fails if any non-self edge points backwards in order.
func assertTopological(t *testing.T, g *graph.DirectedGraph, order []string) {
	t.Helper()
	pos := make(map[string]int, len(order))
	for i, n := range order {
		pos[n] = i
	}
	require.Len(t, order, g.Len())
	for _, e := range g.Edges() {
		if e.IsSelfLoop() {
			continue
		}
		assert.Less(t, pos[e.Src], pos[e.Dst], "edge %s points backwards", e)
	}
}

func TestAddEdgeCreatesEndpointsAndCollapses(t *testing.T) {
	t.Parallel()
	g := graph.New()
	assert.True(t, g.AddEdge("a", "b"))
	assert.False(t, g.AddEdge("a", "b"), "duplicate edge must collapse")
	assert.True(t, g.HasNode("a"))
	assert.True(t, g.HasNode("b"))
	assert.Len(t, g.Edges(), 1)
}

func TestRemoveEdgeAbsentIsNoop(t *testing.T) {
	t.Parallel()
	g := chain("a", "b")
	g.RemoveEdge("b", "a")
	g.RemoveEdge("x", "y")
	assert.True(t, g.HasEdge("a", "b"))
	g.RemoveEdge("a", "b")
	assert.False(t, g.HasEdge("a", "b"))
	assert.Equal(t, 2, g.Len(), "nodes survive edge removal")
}

func TestRemoveNodeDropsTouchingEdges(t *testing.T) {
	t.Parallel()
	g := chain("a", "b", "c")
	g.AddEdge("b", "b")
	g.RemoveNode("b")
	assert.False(t, g.HasNode("b"))
	assert.Empty(t, g.Edges())
	assert.Equal(t, []string{"a", "c"}, g.Nodes())
}

func TestRenameNodeRekeysEdges(t *testing.T) {
	t.Parallel()
	g := chain("a", "b", "c")
	g.AddEdge("b", "b")
	require.NoError(t, g.RenameNode("b", "beta"))
	assert.Equal(t, []string{"a", "beta", "c"}, g.Nodes())
	assert.True(t, g.HasEdge("a", "beta"))
	assert.True(t, g.HasEdge("beta", "c"))
	assert.True(t, g.HasSelfLoop("beta"))
	assert.False(t, g.HasNode("b"))
}

func TestRenameNodeErrors(t *testing.T) {
	t.Parallel()
	g := chain("a", "b")
	assert.ErrorIs(t, g.RenameNode("missing", "x"), graph.ErrNodeNotFound)
	assert.ErrorIs(t, g.RenameNode("a", "b"), graph.ErrNodeExists)
	assert.True(t, g.HasEdge("a", "b"), "failed rename leaves graph unchanged")
}

func TestTopologicalOrderChain(t *testing.T) {
	t.Parallel()
	g := chain("a", "b", "c")
	order, ok := g.TopologicalOrder()
	require.True(t, ok)
	if diff := cmp.Diff([]string{"a", "b", "c"}, order); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestTopologicalOrderRespectsEdges(t *testing.T) {
	t.Parallel()
	g := graph.New()
	for _, n := range []string{"e", "d", "c", "b", "a"} {
		g.AddNode(n)
	}
	g.AddEdge("a", "b")
	g.AddEdge("a", "c")
	g.AddEdge("b", "d")
	g.AddEdge("c", "d")
	g.AddEdge("d", "e")
	order, ok := g.TopologicalOrder()
	require.True(t, ok)
	assertTopological(t, g, order)
}

func TestTopologicalOrderTieBreakIsInsertionOrder(t *testing.T) {
	t.Parallel()
	g := graph.New()
	g.AddNode("zeta")
	g.AddNode("alpha")
	g.AddNode("mid")
	order, ok := g.TopologicalOrder()
	require.True(t, ok)
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, order)
}

func TestTopologicalOrderCycle(t *testing.T) {
	t.Parallel()
	g := chain("a", "b")
	g.AddEdge("b", "a")
	order, ok := g.TopologicalOrder()
	assert.False(t, ok)
	assert.Empty(t, order)
	assert.Nil(t, g.DirectSuccessors())
}

func TestSelfLoopDoesNotBlockOrdering(t *testing.T) {
	t.Parallel()
	g := graph.New()
	g.AddEdge("a", "a")
	order, ok := g.TopologicalOrder()
	require.True(t, ok)
	assert.Equal(t, []string{"a"}, order)
	assert.Empty(t, g.EdgesBreakingCycles())
}

func TestIsNodeIsolated(t *testing.T) {
	t.Parallel()
	g := graph.New()
	g.AddNode("lonely")
	g.AddEdge("loop", "loop")
	g.AddEdge("a", "b")

	assert.True(t, g.IsNodeIsolated("lonely", false))
	assert.True(t, g.IsNodeIsolated("lonely", true))

	assert.False(t, g.IsNodeIsolated("loop", false), "self-loop counts as a connection")
	assert.True(t, g.IsNodeIsolated("loop", true), "self-loop tolerated")

	assert.False(t, g.IsNodeIsolated("a", true))
	assert.False(t, g.IsNodeIsolated("b", true))

	g.AddEdge("a", "a")
	assert.False(t, g.IsNodeIsolated("a", true), "other edges still touch a")
}

func TestSourceNodesIgnoresSelfLoops(t *testing.T) {
	t.Parallel()
	g := chain("a", "b")
	g.AddEdge("a", "a")
	g.AddNode("c")
	assert.Equal(t, []string{"a", "c"}, g.SourceNodes())
}

func TestDirectSuccessors(t *testing.T) {
	t.Parallel()
	g := chain("a", "b", "c")
	g.AddEdge("a", "c")
	g.AddEdge("c", "c")
	got := g.DirectSuccessors()
	want := []graph.Successors{
		{Node: "a", Nodes: []string{"b", "c"}},
		{Node: "b", Nodes: []string{"c"}},
		{Node: "c", Nodes: []string{}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("successors mismatch (-want +got):\n%s", diff)
	}
}

func TestEdgesBreakingCyclesThreeCycle(t *testing.T) {
	t.Parallel()
	g := chain("a", "b", "c")
	g.AddEdge("c", "a")
	cut := g.EdgesBreakingCycles()
	require.NotEmpty(t, cut)

	cp := g.Clone()
	for _, e := range cut {
		cp.RemoveEdge(e.Src, e.Dst)
	}
	assert.True(t, cp.IsAcyclic())
	assert.False(t, g.IsAcyclic(), "clone must not share state")
}

func TestEdgesBreakingCyclesNested(t *testing.T) {
	t.Parallel()
	g := graph.New()
	for _, e := range [][2]string{
		{"a", "b"}, {"b", "c"}, {"c", "a"},
		{"c", "d"}, {"d", "e"}, {"e", "c"},
		{"e", "f"}, {"f", "f"},
	} {
		g.AddEdge(e[0], e[1])
	}
	cut := g.EdgesBreakingCycles()
	cp := g.Clone()
	for _, e := range cut {
		assert.False(t, e.IsSelfLoop())
		cp.RemoveEdge(e.Src, e.Dst)
	}
	assert.True(t, cp.IsAcyclic())
}

func TestWeakComponents(t *testing.T) {
	t.Parallel()
	g := chain("a", "b")
	g.AddEdge("c", "b")
	g.AddNode("d")
	g.AddEdge("e", "f")
	want := [][]string{{"a", "b", "c"}, {"d"}, {"e", "f"}}
	if diff := cmp.Diff(want, g.WeakComponents()); diff != "" {
		t.Errorf("components mismatch (-want +got):\n%s", diff)
	}
}

func TestUnionKeepsOrderAndEdges(t *testing.T) {
	t.Parallel()
	left := chain("a", "b")
	right := chain("c", "d")
	right.AddEdge("d", "d")
	u, err := graph.Union(left, right)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, u.Nodes())
	assert.True(t, u.HasEdge("a", "b"))
	assert.True(t, u.HasEdge("c", "d"))
	assert.True(t, u.HasSelfLoop("d"))

	_, err = graph.Union(left, chain("b", "x"))
	assert.ErrorIs(t, err, graph.ErrNodeExists)
}

func TestSubgraph(t *testing.T) {
	t.Parallel()
	g := chain("a", "b", "c")
	sub := g.Subgraph([]string{"b", "c"})
	assert.Equal(t, []string{"b", "c"}, sub.Nodes())
	assert.Equal(t, []graph.Edge{{Src: "b", Dst: "c"}}, sub.Edges())
}

func TestExportGraphMLRoundTrip(t *testing.T) {
	t.Parallel()
	g := chain("a", "b", "c")
	g.AddEdge("c", "c")
	var buf bytes.Buffer
	require.NoError(t, g.ExportGraphML(&buf))
	assert.Contains(t, buf.String(), `edgedefault="directed"`)

	back, err := graph.ImportGraphML(&buf)
	require.NoError(t, err)
	assert.Equal(t, g.Nodes(), back.Nodes())
	assert.Equal(t, g.Edges(), back.Edges())
}

func TestExportToFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "dag.graphml")
	assert.True(t, chain("a", "b").Export(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "<?xml"))

	assert.False(t, chain("a").Export(filepath.Join(dir, "missing", "x.graphml")))
}

func TestExportDOT(t *testing.T) {
	t.Parallel()
	g := chain("load data", "b")
	var buf bytes.Buffer
	require.NoError(t, g.ExportDOT(&buf, "flow"))
	out := buf.String()
	assert.Contains(t, out, "digraph flow")
	assert.Contains(t, out, `"load data"`)
	assert.Contains(t, out, "->")
}
