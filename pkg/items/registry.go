// Package items holds the built-in project items and the registry that
// builds them from their definitions.
package items

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ravi-parthasarathy/workbench/pkg/item"
)

// Item types understood by the default registry.
const (
	TypeTool           = "tool"
	TypeDataConnection = "data_connection"
	TypeDataStore      = "data_store"
	TypeView           = "view"
	TypeImporter       = "importer"
	TypeExporter       = "exporter"
)

// Spec is the definition of an item as stored in a project file.
type Spec struct {
	Name  string            `json:"name"`
	Type  string            `json:"type"`
	Attrs map[string]string `json:"attrs,omitempty"`
}

// Attr returns the named attribute or def when it is empty.
func (s Spec) Attr(key, def string) string {
	if v := s.Attrs[key]; v != "" {
		return v
	}
	return def
}

// List splits a comma separated attribute into trimmed, non-empty values.
func (s Spec) List(key string) []string {
	var out []string
	for _, part := range strings.Split(s.Attrs[key], ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Duration parses a duration attribute. An empty value yields zero.
func (s Spec) Duration(key string) (time.Duration, error) {
	raw := s.Attrs[key]
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s %q: invalid %s %q: %w", s.Type, s.Name, key, raw, err)
	}
	return d, nil
}

// Bool reports whether the attribute is "true". Missing attributes yield def.
func (s Spec) Bool(key string, def bool) bool {
	switch strings.ToLower(s.Attrs[key]) {
	case "true", "yes", "1":
		return true
	case "false", "no", "0":
		return false
	}
	return def
}

// Factory builds an item from its definition.
type Factory func(spec Spec) (item.ProjectItem, error)

// Registry maps item types to factories.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register associates a factory with an item type.
func (r *Registry) Register(itemType string, f Factory) {
	r.factories[itemType] = f
}

// Get returns the factory for an item type, or an error if not registered.
func (r *Registry) Get(itemType string) (Factory, error) {
	f, ok := r.factories[itemType]
	if !ok {
		return nil, fmt.Errorf("no factory registered for item type %q", itemType)
	}
	return f, nil
}

// Build constructs the item described by spec.
func (r *Registry) Build(spec Spec) (item.ProjectItem, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("item of type %q: missing name", spec.Type)
	}
	f, err := r.Get(spec.Type)
	if err != nil {
		return nil, fmt.Errorf("item %q: %w", spec.Name, err)
	}
	return f(spec)
}

// Types returns the registered item types in sorted order.
func (r *Registry) Types() []string {
	out := make([]string, 0, len(r.factories))
	for t := range r.factories {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// DefaultRegistry returns a registry with every built-in item type. Relative
// paths in item definitions are resolved against workdir.
func DefaultRegistry(workdir string) *Registry {
	reg := NewRegistry()
	reg.Register(TypeTool, func(s Spec) (item.ProjectItem, error) { return NewToolFromSpec(s, workdir) })
	reg.Register(TypeDataConnection, func(s Spec) (item.ProjectItem, error) {
		return NewDataConnection(s.Name, resolveAll(workdir, s.List("files"))), nil
	})
	reg.Register(TypeDataStore, func(s Spec) (item.ProjectItem, error) { return NewDataStoreFromSpec(s) })
	reg.Register(TypeView, func(s Spec) (item.ProjectItem, error) { return NewView(s.Name), nil })
	reg.Register(TypeImporter, func(s Spec) (item.ProjectItem, error) { return NewImporter(s.Name, nil), nil })
	reg.Register(TypeExporter, func(s Spec) (item.ProjectItem, error) {
		return NewExporter(s.Name, resolve(workdir, s.Attr("dir", ".")), nil), nil
	})
	return reg
}
