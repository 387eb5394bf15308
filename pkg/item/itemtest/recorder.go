// Package itemtest provides a scriptable ProjectItem for tests.
package itemtest

import (
	"context"
	"sync"

	"github.com/ravi-parthasarathy/workbench/pkg/item"
	"github.com/ravi-parthasarathy/workbench/pkg/resource"
)

// Call is one recorded hook invocation.
type Call struct {
	Item      string
	Direction item.Direction
	Resources []resource.Resource
}

// Log collects calls from several Recorders in order.
type Log struct {
	mu    sync.Mutex
	calls []Call
}

func (l *Log) add(c Call) {
	l.mu.Lock()
	l.calls = append(l.calls, c)
	l.mu.Unlock()
}

// Calls returns a copy of the recorded calls.
func (l *Log) Calls() []Call {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Call(nil), l.calls...)
}

// Forward returns the item names whose forward hook ran, in order.
func (l *Log) Forward() []string {
	var out []string
	for _, c := range l.Calls() {
		if c.Direction == item.Forward {
			out = append(out, c.Item)
		}
	}
	return out
}

// Recorder is a ProjectItem that records hook calls and returns scripted
// results.
type Recorder struct {
	*item.Base

	Log      *Log
	Outputs  []resource.Resource
	Backward []resource.Resource
	FailWith error
	// OnForward, if set, runs inside the forward hook.
	OnForward func(ctx context.Context) error

	mu       sync.Mutex
	stops    int
	forward  [][]resource.Resource
	backward [][]resource.Resource
	changes  []int
}

// New returns a Recorder that writes to log. A file resource named after the
// item is advertised forward.
func New(name string, log *Log) *Recorder {
	return &Recorder{
		Base:    item.NewBase(name, "recorder", item.CategoryTools),
		Log:     log,
		Outputs: []resource.Resource{resource.New(name, resource.TypeFile, "file:///out/"+name)},
	}
}

func (r *Recorder) ExecuteForward(ctx context.Context, rs []resource.Resource) error {
	r.mu.Lock()
	r.forward = append(r.forward, rs)
	r.mu.Unlock()
	if r.Log != nil {
		r.Log.add(Call{Item: r.Name(), Direction: item.Forward, Resources: rs})
	}
	if r.OnForward != nil {
		if err := r.OnForward(ctx); err != nil {
			return err
		}
	}
	return r.FailWith
}

func (r *Recorder) ExecuteBackward(_ context.Context, rs []resource.Resource) error {
	r.mu.Lock()
	r.backward = append(r.backward, rs)
	r.mu.Unlock()
	if r.Log != nil {
		r.Log.add(Call{Item: r.Name(), Direction: item.Backward, Resources: rs})
	}
	return nil
}

func (r *Recorder) OutputResources(dir item.Direction) []resource.Resource {
	if dir == item.Backward {
		return r.Backward
	}
	return r.Outputs
}

func (r *Recorder) HandleDAGChanged(rank int, rs []resource.Resource) {
	r.Base.HandleDAGChanged(rank, rs)
	r.mu.Lock()
	r.changes = append(r.changes, rank)
	r.mu.Unlock()
}

func (r *Recorder) StopExecution() {
	r.mu.Lock()
	r.stops++
	r.mu.Unlock()
}

// ForwardCalls returns the resources received by each forward call.
func (r *Recorder) ForwardCalls() [][]resource.Resource {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]resource.Resource(nil), r.forward...)
}

// BackwardCalls returns the resources received by each backward call.
func (r *Recorder) BackwardCalls() [][]resource.Resource {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]resource.Resource(nil), r.backward...)
}

// Stops returns how many times StopExecution was called.
func (r *Recorder) Stops() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stops
}

// Ranks returns the ranks passed to HandleDAGChanged.
func (r *Recorder) Ranks() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.changes...)
}
