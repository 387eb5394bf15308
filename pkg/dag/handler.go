package dag

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ravi-parthasarathy/workbench/pkg/graph"
)

var (
	// ErrNodeNotFound is returned when no DAG contains the named node.
	ErrNodeNotFound = errors.New("node not found in any dag")
	// ErrEdgeNotFound is returned when no DAG contains the edge.
	ErrEdgeNotFound = errors.New("edge not found in any dag")
	// ErrNodeExists is returned when a new node would duplicate a name.
	ErrNodeExists = errors.New("node already exists")
	// ErrNameCollision is returned when a rename target is already in use.
	ErrNameCollision = errors.New("name already used by another node")
)

// SimulationRequester is called whenever a DAG's topology changes and the
// DAG should be re-simulated. It receives a snapshot of the DAG.
type SimulationRequester func(d *DAG)

// Option configures a Handler.
type Option func(*Handler)

// WithSimulationRequester registers the callback that receives
// re-simulation requests.
func WithSimulationRequester(fn SimulationRequester) Option {
	return func(h *Handler) { h.requester = fn }
}

// WithSplitOnRemove makes edge and node removal split a DAG into one DAG per
// weakly connected component. Without it a DAG stays whole even when a
// removal disconnects it.
func WithSplitOnRemove() Option {
	return func(h *Handler) { h.split = true }
}

// WithLogger sets the logger used for structural changes.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) { h.log = l }
}

// Handler owns the DAGs of a project. It is safe for concurrent use; values
// it returns are snapshots that callers may read freely.
type Handler struct {
	mu        sync.RWMutex
	dags      []*DAG
	requester SimulationRequester
	split     bool
	log       *slog.Logger
}

// NewHandler returns an empty Handler.
func NewHandler(opts ...Option) *Handler {
	h := &Handler{log: slog.Default()}
	for _, o := range opts {
		o(h)
	}
	return h
}

// AddDAG adds d to the collection. When requestSimulation is true the DAG is
// handed to the simulation requester.
func (h *Handler) AddDAG(d *DAG, requestSimulation bool) {
	h.mu.Lock()
	h.dags = append(h.dags, d)
	var pending []*DAG
	if requestSimulation {
		pending = append(pending, d.Clone())
	}
	h.mu.Unlock()
	h.notify(pending)
}

// RemoveDAG drops the DAG with d's identifier. It reports whether a DAG was
// removed.
func (h *Handler) RemoveDAG(d *DAG) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.removeLocked(d.ID)
}

// AddNodeToNewDAG registers name as the only node of a new DAG.
func (h *Handler) AddNodeToNewDAG(name string) (*DAG, error) {
	h.mu.Lock()
	if h.findNodeLocked(name) != nil {
		h.mu.Unlock()
		return nil, fmt.Errorf("add %q: %w", name, ErrNodeExists)
	}
	d := NewDAG()
	d.AddNode(name)
	h.dags = append(h.dags, d)
	snap := d.Clone()
	h.mu.Unlock()

	h.log.Debug("dag created", "dag", d.ID, "node", name)
	h.notify([]*DAG{snap})
	return snap, nil
}

// AddEdge connects src to dst. Both nodes must already belong to a DAG. When
// they belong to different DAGs the two are replaced by their union. It
// reports whether the edge is new.
func (h *Handler) AddEdge(src, dst string) (bool, error) {
	h.mu.Lock()
	srcDAG := h.findNodeLocked(src)
	if srcDAG == nil {
		h.mu.Unlock()
		return false, fmt.Errorf("add edge %s -> %s: source %q: %w", src, dst, src, ErrNodeNotFound)
	}
	dstDAG := h.findNodeLocked(dst)
	if dstDAG == nil {
		h.mu.Unlock()
		return false, fmt.Errorf("add edge %s -> %s: destination %q: %w", src, dst, dst, ErrNodeNotFound)
	}

	if srcDAG == dstDAG {
		added := srcDAG.AddEdge(src, dst)
		var pending []*DAG
		if added {
			pending = append(pending, srcDAG.Clone())
		}
		h.mu.Unlock()
		h.notify(pending)
		return added, nil
	}

	g, err := graph.Union(srcDAG.DirectedGraph, dstDAG.DirectedGraph)
	if err != nil {
		h.mu.Unlock()
		return false, fmt.Errorf("merge dags %s and %s: %w", srcDAG.ID, dstDAG.ID, err)
	}
	g.AddEdge(src, dst)
	merged := FromGraph(g)
	h.removeLocked(srcDAG.ID)
	h.removeLocked(dstDAG.ID)
	h.dags = append(h.dags, merged)
	snap := merged.Clone()
	h.mu.Unlock()

	h.log.Debug("dags merged", "src_dag", srcDAG.ID, "dst_dag", dstDAG.ID, "dag", merged.ID)
	h.notify([]*DAG{snap})
	return true, nil
}

// RemoveEdge removes src -> dst from the DAG that holds it.
func (h *Handler) RemoveEdge(src, dst string) error {
	h.mu.Lock()
	d := h.findEdgeLocked(src, dst)
	if d == nil {
		h.mu.Unlock()
		return fmt.Errorf("remove edge %s -> %s: %w", src, dst, ErrEdgeNotFound)
	}
	d.RemoveEdge(src, dst)
	pending := h.afterRemovalLocked(d)
	h.mu.Unlock()
	h.notify(pending)
	return nil
}

// RemoveNode removes name from its DAG. A DAG left empty is dropped.
func (h *Handler) RemoveNode(name string) error {
	h.mu.Lock()
	d := h.findNodeLocked(name)
	if d == nil {
		h.mu.Unlock()
		return fmt.Errorf("remove %q: %w", name, ErrNodeNotFound)
	}
	d.RemoveNode(name)
	if d.Len() == 0 {
		h.removeLocked(d.ID)
		h.mu.Unlock()
		h.log.Debug("dag removed", "dag", d.ID)
		return nil
	}
	pending := h.afterRemovalLocked(d)
	h.mu.Unlock()
	h.notify(pending)
	return nil
}

// RenameNode renames oldName to newName inside its DAG. It fails without
// changing anything when newName is used anywhere in the project.
func (h *Handler) RenameNode(oldName, newName string) error {
	h.mu.Lock()
	d := h.findNodeLocked(oldName)
	if d == nil {
		h.mu.Unlock()
		return fmt.Errorf("rename %q: %w", oldName, ErrNodeNotFound)
	}
	if oldName == newName {
		h.mu.Unlock()
		return nil
	}
	if h.findNodeLocked(newName) != nil {
		h.mu.Unlock()
		return fmt.Errorf("rename %q to %q: %w", oldName, newName, ErrNameCollision)
	}
	if err := d.RenameNode(oldName, newName); err != nil {
		h.mu.Unlock()
		return err
	}
	snap := d.Clone()
	h.mu.Unlock()
	h.notify([]*DAG{snap})
	return nil
}

// DAGContainingNode returns a snapshot of the DAG holding name, or nil.
func (h *Handler) DAGContainingNode(name string) *DAG {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if d := h.findNodeLocked(name); d != nil {
		return d.Clone()
	}
	return nil
}

// DAGContainingEdge returns a snapshot of the DAG holding src -> dst, or nil.
func (h *Handler) DAGContainingEdge(src, dst string) *DAG {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if d := h.findEdgeLocked(src, dst); d != nil {
		return d.Clone()
	}
	return nil
}

// Snapshot returns a copy of the DAG with the given identifier.
func (h *Handler) Snapshot(id string) (*DAG, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, d := range h.dags {
		if d.ID == id {
			return d.Clone(), true
		}
	}
	return nil, false
}

// All returns snapshots of every DAG in collection order.
func (h *Handler) All() []*DAG {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*DAG, len(h.dags))
	for i, d := range h.dags {
		out[i] = d.Clone()
	}
	return out
}

// Len returns the number of DAGs.
func (h *Handler) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.dags)
}

// afterRemovalLocked splits d when configured and returns the DAGs that need
// re-simulation.
func (h *Handler) afterRemovalLocked(d *DAG) []*DAG {
	if !h.split {
		return []*DAG{d.Clone()}
	}
	comps := d.WeakComponents()
	if len(comps) <= 1 {
		return []*DAG{d.Clone()}
	}
	h.removeLocked(d.ID)
	pending := make([]*DAG, 0, len(comps))
	for i, comp := range comps {
		part := FromGraph(d.Subgraph(comp))
		if i == 0 {
			part.ID = d.ID
		}
		h.dags = append(h.dags, part)
		pending = append(pending, part.Clone())
	}
	h.log.Debug("dag split", "dag", d.ID, "parts", len(comps))
	return pending
}

func (h *Handler) findNodeLocked(name string) *DAG {
	for _, d := range h.dags {
		if d.HasNode(name) {
			return d
		}
	}
	return nil
}

func (h *Handler) findEdgeLocked(src, dst string) *DAG {
	for _, d := range h.dags {
		if d.HasEdge(src, dst) {
			return d
		}
	}
	return nil
}

func (h *Handler) removeLocked(id string) bool {
	for i, d := range h.dags {
		if d.ID == id {
			h.dags = append(h.dags[:i], h.dags[i+1:]...)
			return true
		}
	}
	return false
}

// notify must be called without holding mu so requesters may call back.
func (h *Handler) notify(dags []*DAG) {
	if h.requester == nil {
		return
	}
	for _, d := range dags {
		h.requester(d)
	}
}
