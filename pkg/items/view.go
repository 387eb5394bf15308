package items

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ravi-parthasarathy/workbench/pkg/item"
	"github.com/ravi-parthasarathy/workbench/pkg/resource"
)

// View is a sink that keeps the resources it was given for inspection.
type View struct {
	*item.Base

	mu       sync.Mutex
	received []resource.Resource
}

// NewView returns an empty View.
func NewView(name string) *View {
	return &View{Base: item.NewBase(name, TypeView, item.CategoryViews)}
}

func (v *View) ExecuteForward(_ context.Context, rs []resource.Resource) error {
	v.mu.Lock()
	v.received = append([]resource.Resource(nil), rs...)
	v.mu.Unlock()
	slog.Info("view received resources", "item", v.Name(), "count", len(rs))
	return nil
}

// HandleDAGChanged keeps the advertised resources so the view can be
// inspected before execution.
func (v *View) HandleDAGChanged(rank int, rs []resource.Resource) {
	v.Base.HandleDAGChanged(rank, rs)
	v.mu.Lock()
	v.received = append([]resource.Resource(nil), rs...)
	v.mu.Unlock()
}

// Received returns the last resources seen.
func (v *View) Received() []resource.Resource {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]resource.Resource(nil), v.received...)
}
