package items

import (
	"log/slog"
	"sync"

	"github.com/ravi-parthasarathy/workbench/pkg/item"
	"github.com/ravi-parthasarathy/workbench/pkg/resource"
)

// DataConnection makes a set of files available to its successors.
type DataConnection struct {
	*item.Base

	mu      sync.Mutex
	files   []string
	missing []string
}

// NewDataConnection returns a DataConnection referencing files.
func NewDataConnection(name string, files []string) *DataConnection {
	return &DataConnection{
		Base:  item.NewBase(name, TypeDataConnection, item.CategoryData),
		files: append([]string(nil), files...),
	}
}

// Files returns the referenced paths.
func (dc *DataConnection) Files() []string {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	return append([]string(nil), dc.files...)
}

// AddFile adds a reference. Duplicate paths are ignored.
func (dc *DataConnection) AddFile(path string) {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	for _, f := range dc.files {
		if f == path {
			return
		}
	}
	dc.files = append(dc.files, path)
}

// OutputResources advertises every referenced file forward. Missing files are
// flagged future.
func (dc *DataConnection) OutputResources(dir item.Direction) []resource.Resource {
	if dir != item.Forward {
		return nil
	}
	files := dc.Files()
	out := make([]resource.Resource, 0, len(files))
	for _, f := range files {
		out = append(out, fileResource(dc.Name(), f))
	}
	return out
}

// HandleDAGChanged re-validates the file references.
func (dc *DataConnection) HandleDAGChanged(rank int, rs []resource.Resource) {
	dc.Base.HandleDAGChanged(rank, rs)
	var missing []string
	for _, f := range dc.Files() {
		if !fileExists(f) {
			missing = append(missing, f)
		}
	}
	dc.mu.Lock()
	dc.missing = missing
	dc.mu.Unlock()
	if len(missing) > 0 {
		slog.Warn("data connection references missing files", "item", dc.Name(), "files", missing)
	}
}

// MissingFiles returns the references found missing at the last check.
func (dc *DataConnection) MissingFiles() []string {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	return append([]string(nil), dc.missing...)
}
