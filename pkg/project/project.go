// Package project ties items, their connections and execution together. A
// Project keeps the DAG handler in step with its items and re-simulates a DAG
// whenever its topology changes.
package project

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/ravi-parthasarathy/workbench/pkg/dag"
	"github.com/ravi-parthasarathy/workbench/pkg/execution"
	"github.com/ravi-parthasarathy/workbench/pkg/graph"
	"github.com/ravi-parthasarathy/workbench/pkg/item"
	"github.com/ravi-parthasarathy/workbench/pkg/items"
)

var (
	// ErrItemExists is returned when an item name is already taken.
	ErrItemExists = errors.New("item already exists")
	// ErrItemNotFound is returned when no item has the given name.
	ErrItemNotFound = errors.New("item not found")
)

// Option configures a Project.
type Option func(*Project)

// WithRegistry sets the registry used to build items from their definitions.
func WithRegistry(r *items.Registry) Option {
	return func(p *Project) { p.registry = r }
}

// WithLogger sets the project's logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Project) { p.log = l }
}

// WithSplitOnRemove splits a DAG into its connected parts when a removal
// disconnects it.
func WithSplitOnRemove() Option {
	return func(p *Project) { p.split = true }
}

// Project is a named set of items and the DAGs formed by their connections.
type Project struct {
	name     string
	registry *items.Registry
	log      *slog.Logger
	split    bool
	handler  *dag.Handler

	mu    sync.RWMutex
	order []string
	items map[string]item.ProjectItem
	specs map[string]items.Spec

	ctrlMu sync.Mutex
	ctrl   *execution.Controller
}

// New returns an empty project.
func New(name string, opts ...Option) *Project {
	p := &Project{
		name:  name,
		log:   slog.Default(),
		items: make(map[string]item.ProjectItem),
		specs: make(map[string]items.Spec),
	}
	for _, o := range opts {
		o(p)
	}
	if p.registry == nil {
		p.registry = items.DefaultRegistry(".")
	}
	hopts := []dag.Option{dag.WithSimulationRequester(p.simulate), dag.WithLogger(p.log)}
	if p.split {
		hopts = append(hopts, dag.WithSplitOnRemove())
	}
	p.handler = dag.NewHandler(hopts...)
	return p
}

// FromFile builds a project from its file form.
func FromFile(f *File, opts ...Option) (*Project, error) {
	p := New(f.Name, opts...)
	for _, s := range f.Items {
		if err := p.AddItem(s); err != nil {
			return nil, err
		}
	}
	for _, e := range f.Connections {
		if err := p.Connect(e.Src, e.Dst); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Name returns the project name.
func (p *Project) Name() string { return p.name }

// AddItem builds an item from its definition and adds it in a DAG of its own.
func (p *Project) AddItem(s items.Spec) error {
	it, err := p.registry.Build(s)
	if err != nil {
		return err
	}
	return p.add(it, s)
}

// AddProjectItem adds an already constructed item.
func (p *Project) AddProjectItem(it item.ProjectItem) error {
	return p.add(it, items.Spec{Name: it.Name(), Type: it.ItemType()})
}

func (p *Project) add(it item.ProjectItem, s items.Spec) error {
	name := it.Name()
	p.mu.Lock()
	if _, ok := p.items[name]; ok {
		p.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrItemExists, name)
	}
	p.items[name] = it
	p.specs[name] = s
	p.order = append(p.order, name)
	p.mu.Unlock()

	if _, err := p.handler.AddNodeToNewDAG(name); err != nil {
		p.forget(name)
		return fmt.Errorf("add item %q: %w", name, err)
	}
	p.log.Debug("item added", "item", name, "type", it.ItemType())
	return nil
}

// RemoveItem removes an item and all of its connections.
func (p *Project) RemoveItem(name string) error {
	if _, ok := p.Item(name); !ok {
		return fmt.Errorf("%w: %q", ErrItemNotFound, name)
	}
	if err := p.handler.RemoveNode(name); err != nil {
		return fmt.Errorf("remove item %q: %w", name, err)
	}
	p.forget(name)
	return nil
}

// RenameItem renames an item. A name collision leaves the project unchanged.
func (p *Project) RenameItem(oldName, newName string) error {
	if oldName == newName {
		return nil
	}
	p.mu.Lock()
	it, ok := p.items[oldName]
	if !ok {
		p.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrItemNotFound, oldName)
	}
	if _, taken := p.items[newName]; taken {
		p.mu.Unlock()
		return fmt.Errorf("rename %q: %w: %q", oldName, ErrItemExists, newName)
	}
	if err := it.Rename(newName); err != nil {
		p.mu.Unlock()
		return fmt.Errorf("rename %q: %w", oldName, err)
	}
	p.rekeyLocked(oldName, newName)
	p.mu.Unlock()

	if err := p.handler.RenameNode(oldName, newName); err != nil {
		p.mu.Lock()
		if rerr := it.Rename(oldName); rerr != nil {
			p.log.Error("revert item rename", "item", newName, "error", rerr)
		}
		p.rekeyLocked(newName, oldName)
		p.mu.Unlock()
		return fmt.Errorf("rename %q: %w", oldName, err)
	}
	return nil
}

func (p *Project) rekeyLocked(from, to string) {
	p.items[to] = p.items[from]
	delete(p.items, from)
	s := p.specs[from]
	s.Name = to
	p.specs[to] = s
	delete(p.specs, from)
	if i := slices.Index(p.order, from); i >= 0 {
		p.order[i] = to
	}
}

func (p *Project) forget(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.items, name)
	delete(p.specs, name)
	if i := slices.Index(p.order, name); i >= 0 {
		p.order = slices.Delete(p.order, i, i+1)
	}
}

// Connect adds a connection from src to dst.
func (p *Project) Connect(src, dst string) error {
	if _, err := p.handler.AddEdge(src, dst); err != nil {
		return fmt.Errorf("connect %s -> %s: %w", src, dst, err)
	}
	return nil
}

// Disconnect removes the connection from src to dst.
func (p *Project) Disconnect(src, dst string) error {
	if err := p.handler.RemoveEdge(src, dst); err != nil {
		return fmt.Errorf("disconnect %s -> %s: %w", src, dst, err)
	}
	return nil
}

// Item returns the named item.
func (p *Project) Item(name string) (item.ProjectItem, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	it, ok := p.items[name]
	return it, ok
}

// ItemNames returns item names in the order they were added.
func (p *Project) ItemNames() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.order)
}

// DAGs returns snapshots of the project's DAGs.
func (p *Project) DAGs() []*dag.DAG { return p.handler.All() }

// DAGOf returns a snapshot of the DAG that contains the named item.
func (p *Project) DAGOf(name string) *dag.DAG { return p.handler.DAGContainingNode(name) }

// Graph returns every item and connection as a single graph.
func (p *Project) Graph() (*graph.DirectedGraph, error) {
	g := graph.New()
	for _, d := range p.DAGs() {
		var err error
		if g, err = graph.Union(g, d.DirectedGraph); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// File returns the project in its file form.
func (p *Project) File() *File {
	f := &File{Version: CurrentVersion, Name: p.name}
	p.mu.RLock()
	for _, n := range p.order {
		f.Items = append(f.Items, p.specs[n])
	}
	p.mu.RUnlock()
	for _, d := range p.DAGs() {
		f.Connections = append(f.Connections, d.Edges()...)
	}
	return f
}

// Save writes the project as JSON.
func (p *Project) Save(path string) error { return WriteFile(path, p.File()) }

// Simulate re-simulates every DAG and returns the cycles found.
func (p *Project) Simulate() error {
	var errs []error
	for _, d := range p.DAGs() {
		if err := execution.Simulate(d, p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p *Project) simulate(d *dag.DAG) {
	err := execution.Simulate(d, p)
	switch {
	case err == nil:
		p.log.Debug("dag simulated", "dag", d.ID, "items", d.Len())
	case errors.Is(err, execution.ErrCycleDetected):
		p.log.Warn("dag has a cycle", "dag", d.ID, "error", err)
	default:
		p.log.Error("simulate dag", "dag", d.ID, "error", err)
	}
}

// ExecuteOptions controls a project execution.
type ExecuteOptions struct {
	// Selected limits forward execution to the named items and to the DAGs
	// containing them. Empty selects everything.
	Selected      []string
	CancelOnError bool
	Concurrency   int
	Listeners     []execution.Listener
}

// Execute runs the project's DAGs.
func (p *Project) Execute(ctx context.Context, opts ExecuteOptions) (*execution.BatchResult, error) {
	dags, permits, err := p.plan(opts.Selected)
	if err != nil {
		return nil, err
	}

	copts := []execution.Option{
		execution.WithCancelOnError(opts.CancelOnError),
		execution.WithConcurrentDAGs(opts.Concurrency),
		execution.WithLogger(p.log),
	}
	for _, l := range opts.Listeners {
		copts = append(copts, execution.WithListener(l))
	}
	ctrl := execution.NewController(p, copts...)

	p.ctrlMu.Lock()
	p.ctrl = ctrl
	p.ctrlMu.Unlock()
	defer func() {
		p.ctrlMu.Lock()
		p.ctrl = nil
		p.ctrlMu.Unlock()
	}()

	return ctrl.Run(ctx, dags, permits)
}

// Stop stops the execution in progress, if any.
func (p *Project) Stop() {
	p.ctrlMu.Lock()
	ctrl := p.ctrl
	p.ctrlMu.Unlock()
	if ctrl != nil {
		ctrl.Stop()
	}
}

func (p *Project) plan(selected []string) ([]*dag.DAG, execution.Permits, error) {
	all := p.DAGs()
	if len(selected) == 0 {
		return all, execution.AllPermitted(all...), nil
	}

	want := make(map[string]bool, len(selected))
	for _, n := range selected {
		if _, ok := p.Item(n); !ok {
			return nil, nil, fmt.Errorf("%w: %q", ErrItemNotFound, n)
		}
		want[n] = true
	}
	var dags []*dag.DAG
	permits := make(execution.Permits)
	for _, d := range all {
		include := false
		for _, n := range d.Nodes() {
			permits[n] = want[n]
			include = include || want[n]
		}
		if include {
			dags = append(dags, d)
		}
	}
	return dags, permits, nil
}
