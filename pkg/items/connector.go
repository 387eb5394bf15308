package items

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ravi-parthasarathy/workbench/pkg/item"
	"github.com/ravi-parthasarathy/workbench/pkg/resource"
)

// Connector moves tabular data between files and databases. Format specific
// connectors live outside this package.
type Connector interface {
	Import(ctx context.Context, files []string, dbURL string) error
	Export(ctx context.Context, dbURL, path string) error
}

// ManifestConnector checks import sources and writes a JSON manifest per
// export. It is the connector used when no other is configured.
type ManifestConnector struct{}

type exportManifest struct {
	Source     string    `json:"source"`
	ExportedAt time.Time `json:"exported_at"`
}

func (ManifestConnector) Import(_ context.Context, files []string, _ string) error {
	for _, f := range files {
		if !fileExists(f) {
			return fmt.Errorf("import source %q does not exist", f)
		}
	}
	return nil
}

func (ManifestConnector) Export(_ context.Context, dbURL, path string) error {
	data, err := json.MarshalIndent(exportManifest{Source: dbURL, ExportedAt: time.Now().UTC()}, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dirs: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Importer loads its input files into the databases downstream of it.
type Importer struct {
	*item.Base

	Connector Connector

	mu      sync.Mutex
	targets []string
}

// NewImporter returns an Importer. A nil connector means ManifestConnector.
func NewImporter(name string, c Connector) *Importer {
	if c == nil {
		c = ManifestConnector{}
	}
	return &Importer{Base: item.NewBase(name, TypeImporter, item.CategoryConnections), Connector: c}
}

// ExecuteBackward learns the target databases from downstream items.
func (im *Importer) ExecuteBackward(_ context.Context, rs []resource.Resource) error {
	var targets []string
	for _, r := range resource.FilterType(rs, resource.TypeDatabase) {
		targets = append(targets, r.URL)
	}
	im.mu.Lock()
	im.targets = targets
	im.mu.Unlock()
	return nil
}

func (im *Importer) ExecuteForward(ctx context.Context, rs []resource.Resource) error {
	var files []string
	for _, r := range resource.FilterType(rs, resource.TypeFile) {
		p, err := r.Path()
		if err != nil {
			return fmt.Errorf("importer %q: %w", im.Name(), err)
		}
		files = append(files, p)
	}
	for _, target := range im.Targets() {
		if err := im.Connector.Import(ctx, files, target); err != nil {
			return fmt.Errorf("importer %q: import into %s: %w", im.Name(), target, err)
		}
	}
	return nil
}

// OutputResources advertises the target databases as future resources.
func (im *Importer) OutputResources(dir item.Direction) []resource.Resource {
	if dir != item.Forward {
		return nil
	}
	var out []resource.Resource
	for _, t := range im.Targets() {
		out = append(out, resource.Database(im.Name(), t).AsFuture())
	}
	return out
}

// Targets returns the databases learnt by the backward hook.
func (im *Importer) Targets() []string {
	im.mu.Lock()
	defer im.mu.Unlock()
	return append([]string(nil), im.targets...)
}

// Exporter writes one file per upstream database into Dir.
type Exporter struct {
	*item.Base

	Dir       string
	Connector Connector

	mu      sync.Mutex
	sources []resource.Resource
}

// NewExporter returns an Exporter. A nil connector means ManifestConnector.
func NewExporter(name, dir string, c Connector) *Exporter {
	if c == nil {
		c = ManifestConnector{}
	}
	return &Exporter{Base: item.NewBase(name, TypeExporter, item.CategoryConnections), Dir: dir, Connector: c}
}

func (ex *Exporter) ExecuteForward(ctx context.Context, rs []resource.Resource) error {
	dbs := uniqueDatabases(rs)
	ex.setSources(dbs)
	for _, db := range dbs {
		path := ex.pathFor(db)
		if err := ex.Connector.Export(ctx, db.URL, path); err != nil {
			return fmt.Errorf("exporter %q: export %s: %w", ex.Name(), db.URL, err)
		}
	}
	return nil
}

// HandleDAGChanged remembers the upstream databases so output file names are
// known before execution.
func (ex *Exporter) HandleDAGChanged(rank int, rs []resource.Resource) {
	ex.Base.HandleDAGChanged(rank, rs)
	ex.setSources(uniqueDatabases(rs))
}

// OutputResources advertises one file per known source database.
func (ex *Exporter) OutputResources(dir item.Direction) []resource.Resource {
	if dir != item.Forward {
		return nil
	}
	ex.mu.Lock()
	sources := append([]resource.Resource(nil), ex.sources...)
	ex.mu.Unlock()
	out := make([]resource.Resource, 0, len(sources))
	for _, db := range sources {
		out = append(out, fileResource(ex.Name(), ex.pathFor(db)))
	}
	return out
}

func (ex *Exporter) setSources(rs []resource.Resource) {
	ex.mu.Lock()
	ex.sources = append([]resource.Resource(nil), rs...)
	ex.mu.Unlock()
}

func (ex *Exporter) pathFor(db resource.Resource) string {
	return filepath.Join(ex.Dir, db.Provider+".json")
}

// uniqueDatabases returns one database resource per URL. A database seen
// through both an importer and a store keeps the store's concrete resource.
func uniqueDatabases(rs []resource.Resource) []resource.Resource {
	var out []resource.Resource
	seen := make(map[string]int)
	for _, db := range resource.FilterType(rs, resource.TypeDatabase) {
		i, ok := seen[db.URL]
		if !ok {
			seen[db.URL] = len(out)
			out = append(out, db)
			continue
		}
		if out[i].IsFuture() && !db.IsFuture() {
			out[i] = db
		}
	}
	return out
}
