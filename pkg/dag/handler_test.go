package dag_test

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ravi-parthasarathy/workbench/pkg/dag"
)

// assertPartition checks that every name lives in exactly one DAG and no DAG
// holds anything else.
func assertPartition(t *testing.T, h *dag.Handler, names []string) {
	t.Helper()
	count := map[string]int{}
	for _, d := range h.All() {
		for _, n := range d.Nodes() {
			count[n]++
		}
	}
	require.Len(t, count, len(names))
	for _, n := range names {
		assert.Equal(t, 1, count[n], "node %q must be in exactly one dag", n)
	}
}

func newHandlerWith(t *testing.T, names ...string) *dag.Handler {
	t.Helper()
	h := dag.NewHandler()
	for _, n := range names {
		_, err := h.AddNodeToNewDAG(n)
		require.NoError(t, err)
	}
	return h
}

func TestAddNodeToNewDAG(t *testing.T) {
	t.Parallel()
	h := newHandlerWith(t, "a")
	d := h.DAGContainingNode("a")
	require.NotNil(t, d)
	assert.NotEmpty(t, d.ID)
	assert.Equal(t, []string{"a"}, d.Nodes())

	_, err := h.AddNodeToNewDAG("a")
	assert.ErrorIs(t, err, dag.ErrNodeExists)
	assert.Equal(t, 1, h.Len())
}

func TestAddEdgeMergesDAGs(t *testing.T) {
	t.Parallel()
	h := newHandlerWith(t, "a", "b", "c")
	_, err := h.AddEdge("a", "b")
	require.NoError(t, err)
	before := h.DAGContainingNode("a")
	cDAG := h.DAGContainingNode("c")

	added, err := h.AddEdge("b", "c")
	require.NoError(t, err)
	assert.True(t, added)
	require.Equal(t, 1, h.Len())

	merged := h.All()[0]
	assert.ElementsMatch(t, []string{"a", "b", "c"}, merged.Nodes())
	assert.NotEqual(t, before.ID, merged.ID)
	assert.NotEqual(t, cDAG.ID, merged.ID)
	_, ok := h.Snapshot(before.ID)
	assert.False(t, ok, "original dag must be gone")
	_, ok = h.Snapshot(cDAG.ID)
	assert.False(t, ok, "original dag must be gone")
}

func TestAddEdgeSameDAGInPlace(t *testing.T) {
	t.Parallel()
	h := newHandlerWith(t, "a", "b", "c")
	_, err := h.AddEdge("a", "b")
	require.NoError(t, err)
	_, err = h.AddEdge("b", "c")
	require.NoError(t, err)
	id := h.DAGContainingNode("a").ID

	added, err := h.AddEdge("a", "c")
	require.NoError(t, err)
	assert.True(t, added)
	assert.Equal(t, id, h.DAGContainingEdge("a", "c").ID)

	added, err = h.AddEdge("a", "c")
	require.NoError(t, err)
	assert.False(t, added, "duplicate edge")
}

func TestAddEdgeSelfLoopNoMerge(t *testing.T) {
	t.Parallel()
	h := newHandlerWith(t, "a", "b")
	id := h.DAGContainingNode("a").ID
	_, err := h.AddEdge("a", "a")
	require.NoError(t, err)
	assert.Equal(t, 2, h.Len())
	assert.Equal(t, id, h.DAGContainingEdge("a", "a").ID)
}

func TestAddEdgeMissingNode(t *testing.T) {
	t.Parallel()
	h := newHandlerWith(t, "a")
	_, err := h.AddEdge("a", "ghost")
	assert.ErrorIs(t, err, dag.ErrNodeNotFound)
	_, err = h.AddEdge("ghost", "a")
	assert.ErrorIs(t, err, dag.ErrNodeNotFound)
}

func TestRemoveEdgeKeepsDAGWhole(t *testing.T) {
	t.Parallel()
	h := newHandlerWith(t, "a", "b")
	_, err := h.AddEdge("a", "b")
	require.NoError(t, err)
	require.NoError(t, h.RemoveEdge("a", "b"))
	require.Equal(t, 1, h.Len(), "removal does not split by default")
	assert.ElementsMatch(t, []string{"a", "b"}, h.All()[0].Nodes())
	assert.ErrorIs(t, h.RemoveEdge("a", "b"), dag.ErrEdgeNotFound)
}

func TestRemoveEdgeSplitsWhenConfigured(t *testing.T) {
	t.Parallel()
	h := dag.NewHandler(dag.WithSplitOnRemove())
	for _, n := range []string{"a", "b", "c"} {
		_, err := h.AddNodeToNewDAG(n)
		require.NoError(t, err)
	}
	_, err := h.AddEdge("a", "b")
	require.NoError(t, err)
	_, err = h.AddEdge("b", "c")
	require.NoError(t, err)
	id := h.DAGContainingNode("a").ID

	require.NoError(t, h.RemoveEdge("a", "b"))
	assert.Equal(t, 2, h.Len())
	assert.Equal(t, id, h.DAGContainingNode("a").ID, "first component keeps the id")
	assert.Equal(t, []string{"a"}, h.DAGContainingNode("a").Nodes())
	assert.ElementsMatch(t, []string{"b", "c"}, h.DAGContainingNode("c").Nodes())
	assertPartition(t, h, []string{"a", "b", "c"})
}

func TestRemoveNodeDropsEmptyDAG(t *testing.T) {
	t.Parallel()
	h := newHandlerWith(t, "solo", "a", "b")
	_, err := h.AddEdge("a", "b")
	require.NoError(t, err)
	require.Equal(t, 2, h.Len())

	require.NoError(t, h.RemoveNode("solo"))
	assert.Equal(t, 1, h.Len())
	assert.Nil(t, h.DAGContainingNode("solo"))

	require.NoError(t, h.RemoveNode("a"))
	assert.Equal(t, 1, h.Len())
	assert.ErrorIs(t, h.RemoveNode("a"), dag.ErrNodeNotFound)
}

func TestRenameNodeCollisionLeavesDAGsUnchanged(t *testing.T) {
	t.Parallel()
	h := newHandlerWith(t, "a", "b", "x")
	_, err := h.AddEdge("a", "b")
	require.NoError(t, err)
	beforeAB := h.DAGContainingNode("a")
	beforeX := h.DAGContainingNode("x")

	err = h.RenameNode("a", "x")
	assert.ErrorIs(t, err, dag.ErrNameCollision)

	afterAB := h.DAGContainingNode("a")
	afterX := h.DAGContainingNode("x")
	assert.Equal(t, beforeAB.Nodes(), afterAB.Nodes())
	assert.Equal(t, beforeAB.Edges(), afterAB.Edges())
	assert.Equal(t, beforeX.Nodes(), afterX.Nodes())
}

func TestRenameNodeFollowsEdges(t *testing.T) {
	t.Parallel()
	h := newHandlerWith(t, "a", "b")
	_, err := h.AddEdge("a", "b")
	require.NoError(t, err)
	require.NoError(t, h.RenameNode("a", "alpha"))
	assert.NotNil(t, h.DAGContainingEdge("alpha", "b"))
	assert.Nil(t, h.DAGContainingNode("a"))
	assert.ErrorIs(t, h.RenameNode("a", "z"), dag.ErrNodeNotFound)
}

func TestSimulationRequests(t *testing.T) {
	t.Parallel()
	var (
		mu   sync.Mutex
		seen []*dag.DAG
	)
	h := dag.NewHandler(dag.WithSimulationRequester(func(d *dag.DAG) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, d)
	}))
	_, err := h.AddNodeToNewDAG("a")
	require.NoError(t, err)
	_, err = h.AddNodeToNewDAG("b")
	require.NoError(t, err)
	_, err = h.AddEdge("a", "b")
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 3)
	last := seen[2]
	assert.ElementsMatch(t, []string{"a", "b"}, last.Nodes())
	assert.True(t, last.HasEdge("a", "b"))
}

func TestAddDAGWithoutSimulation(t *testing.T) {
	t.Parallel()
	calls := 0
	h := dag.NewHandler(dag.WithSimulationRequester(func(*dag.DAG) { calls++ }))
	d := dag.NewDAG()
	d.AddNode("a")
	h.AddDAG(d, false)
	assert.Equal(t, 0, calls)
	d2 := dag.NewDAG()
	d2.AddNode("b")
	h.AddDAG(d2, true)
	assert.Equal(t, 1, calls)
	assert.True(t, h.RemoveDAG(d))
	assert.False(t, h.RemoveDAG(d))
}

func TestRequesterMayCallBack(t *testing.T) {
	t.Parallel()
	var h *dag.Handler
	h = dag.NewHandler(dag.WithSimulationRequester(func(d *dag.DAG) {
		_ = h.All()
	}))
	_, err := h.AddNodeToNewDAG("a")
	require.NoError(t, err)
}

func TestRandomEditsKeepPartition(t *testing.T) {
	t.Parallel()
	for _, split := range []bool{false, true} {
		var opts []dag.Option
		if split {
			opts = append(opts, dag.WithSplitOnRemove())
		}
		h := dag.NewHandler(opts...)
		names := []string{"a", "b", "c", "d", "e", "f"}
		for _, n := range names {
			_, err := h.AddNodeToNewDAG(n)
			require.NoError(t, err)
		}
		rng := rand.New(rand.NewSource(7))
		for i := 0; i < 200; i++ {
			src := names[rng.Intn(len(names))]
			dst := names[rng.Intn(len(names))]
			if rng.Intn(3) == 0 {
				_ = h.RemoveEdge(src, dst)
			} else {
				_, err := h.AddEdge(src, dst)
				require.NoError(t, err)
			}
			assertPartition(t, h, names)
		}
	}
}
