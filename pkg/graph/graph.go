// Package graph provides DirectedGraph, the mutable node/edge structure that
// backs every DAG in a project.
//
// Storage is delegated to github.com/dominikbraun/graph. Self-loops are kept
// aside so that they never block topological ordering while still counting as
// connections for isolation checks.
package graph

import (
	"errors"
	"fmt"
	"sort"

	dgraph "github.com/dominikbraun/graph"
)

var (
	// ErrNodeNotFound is returned when an operation names a missing node.
	ErrNodeNotFound = errors.New("node not found")
	// ErrNodeExists is returned when a rename or union would duplicate a node.
	ErrNodeExists = errors.New("node already exists")
)

// Edge is a directed connection between two nodes.
type Edge struct {
	Src string `json:"src"`
	Dst string `json:"dst"`
}

func (e Edge) String() string { return e.Src + " -> " + e.Dst }

// IsSelfLoop reports whether the edge starts and ends on the same node.
func (e Edge) IsSelfLoop() bool { return e.Src == e.Dst }

// Successors pairs a node with its immediate successors.
type Successors struct {
	Node  string
	Nodes []string
}

// DirectedGraph is a directed graph of named nodes. The zero value is not
// usable; call New. A DirectedGraph is not safe for concurrent mutation.
type DirectedGraph struct {
	g         dgraph.Graph[string, string]
	seq       map[string]uint64
	next      uint64
	selfLoops map[string]bool
}

// New returns an empty directed graph.
func New() *DirectedGraph {
	return &DirectedGraph{
		g:         dgraph.New(dgraph.StringHash, dgraph.Directed()),
		seq:       make(map[string]uint64),
		selfLoops: make(map[string]bool),
	}
}

// AddNode inserts an isolated node. It is a no-op if the node exists.
func (d *DirectedGraph) AddNode(name string) {
	if d.HasNode(name) {
		return
	}
	// AddVertex only fails on duplicates, which HasNode rules out.
	_ = d.g.AddVertex(name)
	d.seq[name] = d.next
	d.next++
}

// AddEdge inserts src -> dst, creating missing endpoints. Adding an existing
// edge is a no-op. It returns true if the edge is new.
func (d *DirectedGraph) AddEdge(src, dst string) bool {
	d.AddNode(src)
	d.AddNode(dst)
	if src == dst {
		if d.selfLoops[src] {
			return false
		}
		d.selfLoops[src] = true
		return true
	}
	if err := d.g.AddEdge(src, dst); err != nil {
		// ErrEdgeAlreadyExists: multi-edges collapse.
		return false
	}
	return true
}

// RemoveEdge removes src -> dst. Removing an absent edge is not an error.
func (d *DirectedGraph) RemoveEdge(src, dst string) {
	if src == dst {
		delete(d.selfLoops, src)
		return
	}
	_ = d.g.RemoveEdge(src, dst)
}

// RemoveNode removes the node and every edge touching it.
func (d *DirectedGraph) RemoveNode(name string) {
	if !d.HasNode(name) {
		return
	}
	for _, p := range d.Predecessors(name) {
		_ = d.g.RemoveEdge(p, name)
	}
	for _, s := range d.Successors(name) {
		_ = d.g.RemoveEdge(name, s)
	}
	_ = d.g.RemoveVertex(name)
	delete(d.selfLoops, name)
	delete(d.seq, name)
}

// RenameNode re-keys oldName as newName. Edges follow the node and the node
// keeps its insertion position.
func (d *DirectedGraph) RenameNode(oldName, newName string) error {
	if !d.HasNode(oldName) {
		return fmt.Errorf("rename %q: %w", oldName, ErrNodeNotFound)
	}
	if oldName == newName {
		return nil
	}
	if d.HasNode(newName) {
		return fmt.Errorf("rename %q to %q: %w", oldName, newName, ErrNodeExists)
	}
	preds := d.Predecessors(oldName)
	succs := d.Successors(oldName)
	loop := d.selfLoops[oldName]
	pos := d.seq[oldName]

	d.RemoveNode(oldName)
	if err := d.g.AddVertex(newName); err != nil {
		return fmt.Errorf("rename %q to %q: %w", oldName, newName, err)
	}
	d.seq[newName] = pos
	for _, p := range preds {
		_ = d.g.AddEdge(p, newName)
	}
	for _, s := range succs {
		_ = d.g.AddEdge(newName, s)
	}
	if loop {
		d.selfLoops[newName] = true
	}
	return nil
}

// HasNode reports whether name is a node of the graph.
func (d *DirectedGraph) HasNode(name string) bool {
	_, ok := d.seq[name]
	return ok
}

// HasEdge reports whether src -> dst exists.
func (d *DirectedGraph) HasEdge(src, dst string) bool {
	if src == dst {
		return d.selfLoops[src]
	}
	_, err := d.g.Edge(src, dst)
	return err == nil
}

// HasSelfLoop reports whether name carries a self-loop.
func (d *DirectedGraph) HasSelfLoop(name string) bool {
	return d.selfLoops[name]
}

// Len returns the number of nodes.
func (d *DirectedGraph) Len() int {
	return len(d.seq)
}

// Nodes returns node names in insertion order.
func (d *DirectedGraph) Nodes() []string {
	out := make([]string, 0, len(d.seq))
	for n := range d.seq {
		out = append(out, n)
	}
	d.sortByInsertion(out)
	return out
}

// Edges returns all edges, self-loops included, ordered by source then
// destination insertion position.
func (d *DirectedGraph) Edges() []Edge {
	var out []Edge
	for _, n := range d.Nodes() {
		if d.selfLoops[n] {
			out = append(out, Edge{Src: n, Dst: n})
		}
		for _, s := range d.Successors(n) {
			out = append(out, Edge{Src: n, Dst: s})
		}
	}
	return out
}

// Successors returns the direct successors of name, excluding itself.
func (d *DirectedGraph) Successors(name string) []string {
	adj, err := d.g.AdjacencyMap()
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(adj[name]))
	for s := range adj[name] {
		out = append(out, s)
	}
	d.sortByInsertion(out)
	return out
}

// Predecessors returns the direct predecessors of name, excluding itself.
func (d *DirectedGraph) Predecessors(name string) []string {
	pred, err := d.g.PredecessorMap()
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(pred[name]))
	for p := range pred[name] {
		out = append(out, p)
	}
	d.sortByInsertion(out)
	return out
}

// TopologicalOrder returns the nodes so that every non-self edge points
// forward. Nodes without a relative constraint keep insertion order. The
// second result is false when the graph contains a cycle other than a
// self-loop.
func (d *DirectedGraph) TopologicalOrder() ([]string, bool) {
	if d.Len() == 0 {
		return []string{}, true
	}
	order, err := dgraph.StableTopologicalSort(d.g, d.less)
	if err != nil {
		return nil, false
	}
	return order, true
}

// IsAcyclic reports whether TopologicalOrder would succeed.
func (d *DirectedGraph) IsAcyclic() bool {
	_, ok := d.TopologicalOrder()
	return ok
}

// DirectSuccessors lists, per node in topological order, the node's
// immediate successors. It returns nil for a cyclic graph.
func (d *DirectedGraph) DirectSuccessors() []Successors {
	order, ok := d.TopologicalOrder()
	if !ok {
		return nil
	}
	out := make([]Successors, 0, len(order))
	for _, n := range order {
		out = append(out, Successors{Node: n, Nodes: d.Successors(n)})
	}
	return out
}

// IsNodeIsolated reports whether name has no edge to or from another node.
// A self-loop counts as a connection unless allowSelfLoop is true.
func (d *DirectedGraph) IsNodeIsolated(name string, allowSelfLoop bool) bool {
	if len(d.Successors(name)) > 0 || len(d.Predecessors(name)) > 0 {
		return false
	}
	if d.selfLoops[name] {
		return allowSelfLoop
	}
	return true
}

// SourceNodes returns the nodes with no incoming edge from another node.
func (d *DirectedGraph) SourceNodes() []string {
	pred, err := d.g.PredecessorMap()
	if err != nil {
		return nil
	}
	var out []string
	for _, n := range d.Nodes() {
		if len(pred[n]) == 0 {
			out = append(out, n)
		}
	}
	return out
}

// EdgesBreakingCycles returns a set of edges whose removal leaves the graph
// acyclic. Self-loops are not reported. The set is the back edges of a
// depth-first search in insertion order, so it is small but not necessarily
// minimum.
func (d *DirectedGraph) EdgesBreakingCycles() []Edge {
	const (
		white = iota
		grey
		black
	)
	color := make(map[string]int, d.Len())
	var out []Edge

	var visit func(n string)
	visit = func(n string) {
		color[n] = grey
		for _, s := range d.Successors(n) {
			switch color[s] {
			case white:
				visit(s)
			case grey:
				out = append(out, Edge{Src: n, Dst: s})
			}
		}
		color[n] = black
	}
	for _, n := range d.Nodes() {
		if color[n] == white {
			visit(n)
		}
	}
	return out
}

// WeakComponents partitions the nodes into weakly connected components.
// Components are ordered by their earliest node.
func (d *DirectedGraph) WeakComponents() [][]string {
	seen := make(map[string]bool, d.Len())
	var out [][]string
	for _, start := range d.Nodes() {
		if seen[start] {
			continue
		}
		var comp []string
		queue := []string{start}
		seen[start] = true
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			comp = append(comp, cur)
			for _, nb := range append(d.Successors(cur), d.Predecessors(cur)...) {
				if !seen[nb] {
					seen[nb] = true
					queue = append(queue, nb)
				}
			}
		}
		d.sortByInsertion(comp)
		out = append(out, comp)
	}
	return out
}

// Subgraph returns a new graph holding the given nodes and the edges among
// them. Insertion order is preserved.
func (d *DirectedGraph) Subgraph(nodes []string) *DirectedGraph {
	keep := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		keep[n] = true
	}
	out := New()
	for _, n := range d.Nodes() {
		if keep[n] {
			out.AddNode(n)
		}
	}
	for _, e := range d.Edges() {
		if keep[e.Src] && keep[e.Dst] {
			out.AddEdge(e.Src, e.Dst)
		}
	}
	return out
}

// Clone returns a deep copy.
func (d *DirectedGraph) Clone() *DirectedGraph {
	g, err := d.g.Clone()
	if err != nil {
		return d.Subgraph(d.Nodes())
	}
	out := &DirectedGraph{
		g:         g,
		seq:       make(map[string]uint64, len(d.seq)),
		next:      d.next,
		selfLoops: make(map[string]bool, len(d.selfLoops)),
	}
	for k, v := range d.seq {
		out.seq[k] = v
	}
	for k, v := range d.selfLoops {
		out.selfLoops[k] = v
	}
	return out
}

// Union returns a new graph holding the nodes and edges of d followed by
// those of other. The node sets must be disjoint.
func Union(d, other *DirectedGraph) (*DirectedGraph, error) {
	for n := range other.seq {
		if d.HasNode(n) {
			return nil, fmt.Errorf("union: %q: %w", n, ErrNodeExists)
		}
	}
	g, err := dgraph.Union(d.g, other.g)
	if err != nil {
		return nil, fmt.Errorf("union: %w", err)
	}
	out := &DirectedGraph{
		g:         g,
		seq:       make(map[string]uint64, len(d.seq)+len(other.seq)),
		selfLoops: make(map[string]bool, len(d.selfLoops)+len(other.selfLoops)),
	}
	for _, n := range d.Nodes() {
		out.seq[n] = out.next
		out.next++
	}
	for _, n := range other.Nodes() {
		out.seq[n] = out.next
		out.next++
	}
	for n := range d.selfLoops {
		out.selfLoops[n] = true
	}
	for n := range other.selfLoops {
		out.selfLoops[n] = true
	}
	return out, nil
}

func (d *DirectedGraph) less(a, b string) bool {
	return d.seq[a] < d.seq[b]
}

func (d *DirectedGraph) sortByInsertion(names []string) {
	sort.Slice(names, func(i, j int) bool { return d.less(names[i], names[j]) })
}
