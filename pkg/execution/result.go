package execution

import (
	"errors"
	"fmt"
	"time"

	"github.com/ravi-parthasarathy/workbench/pkg/graph"
	"github.com/ravi-parthasarathy/workbench/pkg/resource"
)

// Status is the outcome of a DAG or a batch.
type Status string

const (
	StatusSucceeded     Status = "succeeded"
	StatusFailed        Status = "failed"
	StatusCycleDetected Status = "cycle_detected"
	StatusCancelled     Status = "cancelled"
)

// NodeResult describes one node of an execution pass.
type NodeResult struct {
	Node     string `json:"node"`
	Rank     int    `json:"rank"`
	Executed bool   `json:"executed"`
	// Inputs is the forward resource pool handed to the node.
	Inputs []resource.Resource `json:"inputs,omitempty"`
	// Outputs is what the node passed on to its successors.
	Outputs  []resource.Resource `json:"outputs,omitempty"`
	Err      error               `json:"-"`
	Duration time.Duration       `json:"duration"`
}

// Failed reports whether a hook of the node returned an error.
func (r NodeResult) Failed() bool { return r.Err != nil }

// DAGResult is the outcome of one DAG.
type DAGResult struct {
	DAG        string                      `json:"dag"`
	Status     Status                      `json:"status"`
	Nodes      []NodeResult                `json:"nodes"`
	Failures   []*NodeExecutionFailedError `json:"-"`
	CycleEdges []graph.Edge                `json:"cycle_edges,omitempty"`
	Started    time.Time                   `json:"started"`
	Finished   time.Time                   `json:"finished"`
}

// Succeeded reports whether every node ran without error.
func (r DAGResult) Succeeded() bool { return r.Status == StatusSucceeded }

// Node returns the result for name, if the node was reached.
func (r DAGResult) Node(name string) (NodeResult, bool) {
	for _, n := range r.Nodes {
		if n.Node == name {
			return n, true
		}
	}
	return NodeResult{}, false
}

// Err converts the outcome into an error, or nil on success.
func (r DAGResult) Err() error {
	switch r.Status {
	case StatusSucceeded:
		return nil
	case StatusCycleDetected:
		return &CycleError{DAG: r.DAG, Edges: r.CycleEdges}
	}
	errs := make([]error, 0, len(r.Failures)+1)
	if r.Status == StatusCancelled {
		errs = append(errs, fmt.Errorf("dag %s: %w", r.DAG, ErrCancelled))
	}
	for _, f := range r.Failures {
		errs = append(errs, f)
	}
	return errors.Join(errs...)
}

// BatchResult aggregates the DAG outcomes of one run.
type BatchResult struct {
	RunID    string      `json:"run_id"`
	Status   Status      `json:"status"`
	DAGs     []DAGResult `json:"dags"`
	Started  time.Time   `json:"started"`
	Finished time.Time   `json:"finished"`
}

// Err joins the errors of every DAG that did not succeed.
func (b *BatchResult) Err() error {
	var errs []error
	for _, d := range b.DAGs {
		if err := d.Err(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// DAG returns the result for the DAG with the given identifier.
func (b *BatchResult) DAG(id string) (DAGResult, bool) {
	for _, d := range b.DAGs {
		if d.DAG == id {
			return d, true
		}
	}
	return DAGResult{}, false
}

func aggregate(dags []DAGResult) Status {
	status := StatusSucceeded
	for _, d := range dags {
		switch d.Status {
		case StatusCancelled:
			return StatusCancelled
		case StatusFailed, StatusCycleDetected:
			status = StatusFailed
		}
	}
	return status
}
