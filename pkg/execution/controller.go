// Package execution drives project DAGs through their backward and forward
// hooks in dependency order, passing resources between items.
package execution

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ravi-parthasarathy/workbench/pkg/dag"
	"github.com/ravi-parthasarathy/workbench/pkg/item"
	"github.com/ravi-parthasarathy/workbench/pkg/resource"
)

// Permits selects which nodes run their forward hook. A node mapped to false
// is skipped but still advertises its outputs.
type Permits map[string]bool

// AllPermitted returns permits that allow every node of dags.
func AllPermitted(dags ...*dag.DAG) Permits {
	p := make(Permits)
	for _, d := range dags {
		for _, n := range d.Nodes() {
			p[n] = true
		}
	}
	return p
}

// Items resolves node names to project items.
type Items interface {
	Item(name string) (item.ProjectItem, bool)
}

// ItemMap is an Items backed by a map.
type ItemMap map[string]item.ProjectItem

func (m ItemMap) Item(name string) (item.ProjectItem, bool) {
	it, ok := m[name]
	return it, ok
}

// Option configures a Controller.
type Option func(*Controller)

// WithCancelOnError aborts the rest of a DAG after its first failed node.
func WithCancelOnError(v bool) Option {
	return func(c *Controller) { c.cancelOnError = v }
}

// WithConcurrentDAGs runs up to n DAGs of a batch at the same time. Nodes
// inside a DAG always run one at a time. n <= 1 keeps the batch sequential.
func WithConcurrentDAGs(n int) Option {
	return func(c *Controller) { c.concurrency = n }
}

// WithListener registers an observer of execution events.
func WithListener(l Listener) Option {
	return func(c *Controller) { c.listeners = append(c.listeners, l) }
}

// WithLogger sets the controller's logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.log = l }
}

// Controller executes DAGs. A Controller runs one batch at a time. Stop
// affects the batch in progress, or the next one if none is running; the
// request is cleared when that batch returns.
type Controller struct {
	items         Items
	cancelOnError bool
	concurrency   int
	listeners     Listeners
	log           *slog.Logger
	ins           instruments

	runMu   sync.Mutex
	mu      sync.Mutex
	stopped bool
	running map[string]item.ProjectItem
}

// NewController returns a Controller resolving nodes through items.
func NewController(items Items, opts ...Option) *Controller {
	c := &Controller{
		items:   items,
		log:     slog.Default(),
		running: make(map[string]item.ProjectItem),
	}
	for _, o := range opts {
		o(c)
	}
	c.ins = newInstruments(c.log)
	return c
}

// Stop requests cancellation of the batch in progress. The item currently
// executing in each DAG is asked to stop; no further node or DAG starts.
func (c *Controller) Stop() {
	c.mu.Lock()
	c.stopped = true
	running := make([]item.ProjectItem, 0, len(c.running))
	for _, it := range c.running {
		running = append(running, it)
	}
	c.mu.Unlock()

	for _, it := range running {
		c.log.Info("stopping item", "item", it.Name())
		it.StopExecution()
	}
}

// Run executes dags as one batch. Expected conditions such as cycles, node
// failures and cancellation are reported in the result. An error is returned
// only when the call itself is invalid, before any node runs.
func (c *Controller) Run(ctx context.Context, dags []*dag.DAG, permits Permits) (*BatchResult, error) {
	if err := c.check(dags, permits); err != nil {
		return nil, err
	}

	c.runMu.Lock()
	defer c.runMu.Unlock()

	// Cancelling the caller's context acts as a stop request.
	done := make(chan struct{})
	watched := make(chan struct{})
	go func() {
		defer close(watched)
		select {
		case <-ctx.Done():
			c.Stop()
		case <-done:
		}
	}()
	defer func() {
		close(done)
		<-watched
		c.mu.Lock()
		c.stopped = false
		c.mu.Unlock()
	}()

	batch := &BatchResult{
		RunID:   uuid.NewString(),
		Started: time.Now(),
		DAGs:    make([]DAGResult, len(dags)),
	}
	c.listeners.RunStarted(ctx, batch.RunID)
	c.log.Info("execution started", "run", batch.RunID, "dags", len(dags))

	if c.concurrency > 1 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(c.concurrency)
		for i, d := range dags {
			g.Go(func() error {
				batch.DAGs[i] = c.runDAG(gctx, d, permits)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i, d := range dags {
			batch.DAGs[i] = c.runDAG(ctx, d, permits)
		}
	}

	batch.Finished = time.Now()
	batch.Status = aggregate(batch.DAGs)
	c.log.Info("execution finished", "run", batch.RunID, "status", batch.Status,
		"duration", batch.Finished.Sub(batch.Started))
	c.listeners.RunFinished(ctx, batch)
	return batch, nil
}

// RunDAG executes a single DAG.
func (c *Controller) RunDAG(ctx context.Context, d *dag.DAG, permits Permits) (DAGResult, error) {
	batch, err := c.Run(ctx, []*dag.DAG{d}, permits)
	if err != nil {
		return DAGResult{}, err
	}
	return batch.DAGs[0], nil
}

func (c *Controller) check(dags []*dag.DAG, permits Permits) error {
	for _, d := range dags {
		for _, n := range d.Nodes() {
			if _, ok := permits[n]; !ok {
				return fmt.Errorf("dag %s: node %q: %w", d.ID, n, ErrMissingPermit)
			}
			if _, ok := c.items.Item(n); !ok {
				return fmt.Errorf("dag %s: node %q: %w", d.ID, n, ErrUnknownItem)
			}
		}
	}
	return nil
}

func (c *Controller) runDAG(ctx context.Context, d *dag.DAG, permits Permits) (res DAGResult) {
	res = DAGResult{DAG: d.ID, Status: StatusSucceeded, Started: time.Now()}
	defer func() {
		res.Finished = time.Now()
		c.ins.recordDAG(ctx, res)
		c.listeners.DAGFinished(ctx, res)
	}()

	if c.stopRequested(ctx) {
		res.Status = StatusCancelled
		return res
	}

	order, ok := d.TopologicalOrder()
	if !ok {
		res.Status = StatusCycleDetected
		res.CycleEdges = d.EdgesBreakingCycles()
		c.log.Warn("dag has cycles, not executed", "dag", d.ID, "edges", res.CycleEdges)
		return res
	}

	pools := make(map[string][]resource.Resource, len(order))
	for rank, name := range order {
		if c.stopRequested(ctx) {
			res.Status = StatusCancelled
			c.log.Info("dag cancelled", "dag", d.ID, "before", name)
			return res
		}

		it, _ := c.items.Item(name)
		nr := NodeResult{Node: name, Rank: rank, Inputs: pools[name]}
		start := time.Now()

		c.setRunning(d.ID, it)
		c.listeners.NodeStarted(ctx, d.ID, name)
		failure := c.executeNode(ctx, d, it, &nr, permits[name])
		c.clearRunning(d.ID)
		nr.Duration = time.Since(start)

		// A failed node passes on only what it promised in advance.
		outputs := it.OutputResources(item.Forward)
		if failure != nil {
			outputs = resource.Futures(outputs)
		}
		nr.Outputs = outputs
		forwarded := resource.Merge(nr.Inputs, outputs)
		for _, s := range d.Successors(name) {
			pools[s] = resource.Merge(pools[s], forwarded)
		}

		res.Nodes = append(res.Nodes, nr)
		c.ins.recordNode(ctx, nr)
		c.listeners.NodeFinished(ctx, d.ID, nr)

		if failure != nil {
			res.Failures = append(res.Failures, failure)
			res.Status = StatusFailed
			c.log.Error("node failed", "dag", d.ID, "node", name,
				"direction", failure.Direction, "err", failure.Err)
		}
		if c.stopRequested(ctx) {
			res.Status = StatusCancelled
			return res
		}
		if failure != nil && c.cancelOnError {
			c.log.Info("cancel on error, skipping rest of dag", "dag", d.ID, "node", name)
			return res
		}
	}
	return res
}

// executeNode runs the backward hook, then the forward hook if permitted.
func (c *Controller) executeNode(
	ctx context.Context,
	d *dag.DAG,
	it item.ProjectItem,
	nr *NodeResult,
	permitted bool,
) *NodeExecutionFailedError {
	var downstream []resource.Resource
	for _, s := range d.Successors(nr.Node) {
		if succ, ok := c.items.Item(s); ok {
			downstream = resource.Merge(downstream, succ.OutputResources(item.Backward))
		}
	}

	c.log.Debug("executing node", "dag", d.ID, "node", nr.Node, "direction", item.Backward)
	if err := it.ExecuteBackward(ctx, downstream); err != nil {
		nr.Err = err
		return &NodeExecutionFailedError{DAG: d.ID, Node: nr.Node, Direction: item.Backward, Err: err}
	}

	if !permitted {
		c.log.Info("skipping node", "dag", d.ID, "node", nr.Node)
		return nil
	}
	if c.stopRequested(ctx) {
		return nil
	}

	c.log.Info("executing node", "dag", d.ID, "node", nr.Node, "type", it.ItemType())
	nr.Executed = true
	if err := it.ExecuteForward(ctx, nr.Inputs); err != nil {
		nr.Err = err
		return &NodeExecutionFailedError{DAG: d.ID, Node: nr.Node, Direction: item.Forward, Err: err}
	}
	return nil
}

// stopRequested reports whether Stop was called or ctx is done.
func (c *Controller) stopRequested(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}

func (c *Controller) setRunning(dagID string, it item.ProjectItem) {
	c.mu.Lock()
	c.running[dagID] = it
	c.mu.Unlock()
}

func (c *Controller) clearRunning(dagID string) {
	c.mu.Lock()
	delete(c.running, dagID)
	c.mu.Unlock()
}
