// Package item defines the contract every workflow node implements to take
// part in simulation and execution.
package item

import (
	"context"
	"sync"

	"github.com/ravi-parthasarathy/workbench/pkg/resource"
)

// Direction selects which way resources flow.
type Direction int

const (
	// Forward resources flow from producers to consumers.
	Forward Direction = iota
	// Backward resources flow from consumers to producers.
	Backward
)

func (d Direction) String() string {
	if d == Backward {
		return "backward"
	}
	return "forward"
}

// Categories used by the built-in items.
const (
	CategoryTools       = "Tools"
	CategoryData        = "Data"
	CategoryConnections = "Connections"
	CategoryViews       = "Views"
)

// ProjectItem is a named node of a project DAG.
//
// Execute hooks block until the work is done or ctx is cancelled. A non-nil
// error marks the node as failed. StopExecution may be called from another
// goroutine while a hook is running.
type ProjectItem interface {
	Name() string
	ItemType() string
	Category() string
	ExecuteForward(ctx context.Context, resources []resource.Resource) error
	ExecuteBackward(ctx context.Context, resources []resource.Resource) error
	OutputResources(dir Direction) []resource.Resource
	HandleDAGChanged(rank int, resources []resource.Resource)
	StopExecution()
	Rename(newName string) error
}

// Base supplies the default behaviour of a ProjectItem. Concrete items embed
// it and override what they need.
type Base struct {
	mu       sync.RWMutex
	name     string
	typ      string
	category string
	rank     int
}

// NewBase returns a Base with the given identity.
func NewBase(name, typ, category string) *Base {
	return &Base{name: name, typ: typ, category: category, rank: -1}
}

func (b *Base) Name() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.name
}

func (b *Base) ItemType() string { return b.typ }

func (b *Base) Category() string { return b.category }

func (b *Base) ExecuteForward(context.Context, []resource.Resource) error { return nil }

func (b *Base) ExecuteBackward(context.Context, []resource.Resource) error { return nil }

func (b *Base) OutputResources(Direction) []resource.Resource { return nil }

// HandleDAGChanged records the rank. Overrides should call it.
func (b *Base) HandleDAGChanged(rank int, _ []resource.Resource) {
	b.mu.Lock()
	b.rank = rank
	b.mu.Unlock()
}

func (b *Base) StopExecution() {}

// Rename changes the item's name.
func (b *Base) Rename(newName string) error {
	b.mu.Lock()
	b.name = newName
	b.mu.Unlock()
	return nil
}

// Rank returns the execution rank last seen by HandleDAGChanged, or -1.
func (b *Base) Rank() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.rank
}
