// Package dag maintains the forest of DAGs that make up a project. Every
// item name belongs to exactly one DAG; connecting items in different DAGs
// merges them.
package dag

import (
	"github.com/google/uuid"

	"github.com/ravi-parthasarathy/workbench/pkg/graph"
)

// DAG is a directed graph with a stable identifier.
type DAG struct {
	ID string
	*graph.DirectedGraph
}

// NewDAG returns an empty DAG with a fresh identifier.
func NewDAG() *DAG {
	return &DAG{ID: uuid.NewString(), DirectedGraph: graph.New()}
}

// FromGraph wraps g in a DAG with a fresh identifier.
func FromGraph(g *graph.DirectedGraph) *DAG {
	return &DAG{ID: uuid.NewString(), DirectedGraph: g}
}

// Clone returns a deep copy that keeps the identifier.
func (d *DAG) Clone() *DAG {
	return &DAG{ID: d.ID, DirectedGraph: d.DirectedGraph.Clone()}
}
