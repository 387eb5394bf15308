// Package resource defines the typed handles that project items advertise to
// each other while a DAG is simulated or executed.
package resource

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// Known resource types. Other tags are allowed.
const (
	TypeFile     = "file"
	TypeDatabase = "database"
)

// MetaFuture marks a resource that does not exist yet but will after its
// provider executes.
const MetaFuture = "future"

// Resource is a handle to a data artifact produced or required by an item.
// Two resources are equal when provider, type and URL match; metadata does
// not take part in equality.
type Resource struct {
	Provider string         `json:"provider"`
	Type     string         `json:"type"`
	URL      string         `json:"url"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// New returns a resource with an empty metadata map.
func New(provider, typ, rawURL string) Resource {
	return Resource{
		Provider: provider,
		Type:     typ,
		URL:      rawURL,
		Metadata: map[string]any{},
	}
}

// File returns a file resource for path. Relative paths are made absolute.
func File(provider, path string) Resource {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return New(provider, TypeFile, (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String())
}

// Database returns a database resource for a connection URL.
func Database(provider, dbURL string) Resource {
	return New(provider, TypeDatabase, dbURL)
}

// AsFuture returns a copy of r flagged as future.
func (r Resource) AsFuture() Resource {
	out := r.clone()
	out.Metadata[MetaFuture] = true
	return out
}

// IsFuture reports whether the future flag is set.
func (r Resource) IsFuture() bool {
	v, ok := r.Metadata[MetaFuture].(bool)
	return ok && v
}

// Path returns the local filesystem path of a file resource.
func (r Resource) Path() (string, error) {
	if r.Type != TypeFile {
		return "", fmt.Errorf("resource %s is not a file", r.URL)
	}
	u, err := url.Parse(r.URL)
	if err != nil {
		return "", fmt.Errorf("parse resource url: %w", err)
	}
	if u.Scheme != "file" {
		return "", fmt.Errorf("resource %s: unsupported scheme %q", r.URL, u.Scheme)
	}
	return filepath.FromSlash(u.Path), nil
}

// Key is the identity of a resource.
type Key struct {
	Provider string
	Type     string
	URL      string
}

// Key returns the identity tuple used for equality and deduplication.
func (r Resource) Key() Key {
	return Key{Provider: r.Provider, Type: r.Type, URL: r.URL}
}

// Equal reports whether r and o identify the same artifact.
func (r Resource) Equal(o Resource) bool {
	return r.Key() == o.Key()
}

func (r Resource) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s:%s %s", r.Provider, r.Type, r.URL)
	if r.IsFuture() {
		sb.WriteString(" (future)")
	}
	return sb.String()
}

func (r Resource) clone() Resource {
	md := make(map[string]any, len(r.Metadata)+1)
	for k, v := range r.Metadata {
		md[k] = v
	}
	r.Metadata = md
	return r
}
