// Package history records execution results so past runs can be listed and
// inspected.
package history

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/ravi-parthasarathy/workbench/pkg/execution"
)

// ErrRunNotFound is returned when no run has the given identifier.
var ErrRunNotFound = errors.New("run not found")

// Run summarises one execution batch.
type Run struct {
	ID       string           `json:"id"`
	Project  string           `json:"project"`
	Status   execution.Status `json:"status"`
	DAGs     int              `json:"dags"`
	Started  time.Time        `json:"started"`
	Finished time.Time        `json:"finished"`
}

// NodeRecord is the stored outcome of one node in a run.
type NodeRecord struct {
	RunID    string        `json:"run_id"`
	DAG      string        `json:"dag"`
	Node     string        `json:"node"`
	Rank     int           `json:"rank"`
	Executed bool          `json:"executed"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Store persists runs.
type Store interface {
	SaveRun(ctx context.Context, project string, res *execution.BatchResult) error
	// Runs returns the most recent runs first. limit <= 0 means no limit.
	Runs(ctx context.Context, limit int) ([]Run, error)
	Nodes(ctx context.Context, runID string) ([]NodeRecord, error)
}

func summarise(project string, res *execution.BatchResult) (Run, []NodeRecord) {
	run := Run{
		ID:       res.RunID,
		Project:  project,
		Status:   res.Status,
		DAGs:     len(res.DAGs),
		Started:  res.Started,
		Finished: res.Finished,
	}
	var nodes []NodeRecord
	for _, d := range res.DAGs {
		for _, n := range d.Nodes {
			rec := NodeRecord{
				RunID:    res.RunID,
				DAG:      d.DAG,
				Node:     n.Node,
				Rank:     n.Rank,
				Executed: n.Executed,
				Duration: n.Duration,
			}
			if n.Err != nil {
				rec.Error = n.Err.Error()
			}
			nodes = append(nodes, rec)
		}
	}
	return run, nodes
}

// MemoryStore is a Store kept in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	runs  []Run
	nodes map[string][]NodeRecord
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nodes: make(map[string][]NodeRecord)}
}

func (s *MemoryStore) SaveRun(_ context.Context, project string, res *execution.BatchResult) error {
	run, nodes := summarise(project, res)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, run)
	s.nodes[run.ID] = nodes
	return nil
}

func (s *MemoryStore) Runs(_ context.Context, limit int) ([]Run, error) {
	s.mu.RLock()
	out := slices.Clone(s.runs)
	s.mu.RUnlock()
	slices.Reverse(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) Nodes(_ context.Context, runID string) ([]NodeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	nodes, ok := s.nodes[runID]
	if !ok {
		return nil, ErrRunNotFound
	}
	return slices.Clone(nodes), nil
}
