package execution

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ravi-parthasarathy/workbench/pkg/graph"
	"github.com/ravi-parthasarathy/workbench/pkg/item"
)

var (
	// ErrCycleDetected marks a DAG that could not be ordered.
	ErrCycleDetected = errors.New("dag contains a cycle")
	// ErrCancelled marks work abandoned after a stop request.
	ErrCancelled = errors.New("execution cancelled")
	// ErrMissingPermit is returned when the permit map lacks a node.
	ErrMissingPermit = errors.New("missing execution permit")
	// ErrUnknownItem is returned when a DAG node has no item.
	ErrUnknownItem = errors.New("no project item for node")
)

// CycleError reports the edges that must be removed to make a DAG acyclic.
type CycleError struct {
	DAG   string
	Edges []graph.Edge
}

func (e *CycleError) Error() string {
	parts := make([]string, len(e.Edges))
	for i, edge := range e.Edges {
		parts[i] = edge.String()
	}
	return fmt.Sprintf("dag %s: %v; remove one of: %s", e.DAG, ErrCycleDetected, strings.Join(parts, ", "))
}

func (e *CycleError) Is(target error) bool { return target == ErrCycleDetected }

// NodeExecutionFailedError reports a hook that returned an error.
type NodeExecutionFailedError struct {
	DAG       string
	Node      string
	Direction item.Direction
	Err       error
}

func (e *NodeExecutionFailedError) Error() string {
	return fmt.Sprintf("dag %s: node %q %s execution failed: %v", e.DAG, e.Node, e.Direction, e.Err)
}

func (e *NodeExecutionFailedError) Unwrap() error { return e.Err }
