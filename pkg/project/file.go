package project

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/ravi-parthasarathy/workbench/pkg/graph"
	"github.com/ravi-parthasarathy/workbench/pkg/items"
)

// CurrentVersion is the project file version written by Save.
const CurrentVersion = 2

// File is the on-disk form of a project.
type File struct {
	Version     int          `json:"version"`
	Name        string       `json:"name"`
	Items       []items.Spec `json:"items"`
	Connections []graph.Edge `json:"connections"`
}

// migrations upgrade a decoded document from the keyed version to the next.
var migrations = map[int]func(doc map[string]any) error{
	1: migrateV1,
}

// ParseFile decodes a project document of any known version and upgrades it
// to CurrentVersion.
func ParseFile(data []byte) (*File, error) {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode project: %w", err)
	}
	version := 1
	if v, ok := doc["version"].(float64); ok {
		version = int(v)
	}
	if version > CurrentVersion {
		return nil, fmt.Errorf("project version %d is newer than supported version %d", version, CurrentVersion)
	}
	for ; version < CurrentVersion; version++ {
		migrate, ok := migrations[version]
		if !ok {
			return nil, fmt.Errorf("no migration from project version %d", version)
		}
		if err := migrate(doc); err != nil {
			return nil, fmt.Errorf("migrate project from version %d: %w", version, err)
		}
		doc["version"] = version + 1
	}

	upgraded, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode upgraded project: %w", err)
	}
	var f File
	if err := json.Unmarshal(upgraded, &f); err != nil {
		return nil, fmt.Errorf("decode project: %w", err)
	}
	return &f, nil
}

// ReadFile loads a JSON project file.
func ReadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read project: %w", err)
	}
	return ParseFile(data)
}

// WriteFile saves f as indented JSON.
func WriteFile(path string, f *File) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("encode project: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write project: %w", err)
	}
	return nil
}

// migrateV1 converts the version 1 layout, where items are an object keyed
// by name with flat attributes and connections use from/to, into version 2.
func migrateV1(doc map[string]any) error {
	rawItems, _ := doc["items"].(map[string]any)
	names := make([]string, 0, len(rawItems))
	for n := range rawItems {
		names = append(names, n)
	}
	sort.Strings(names)

	specs := make([]any, 0, len(names))
	for _, n := range names {
		fields, ok := rawItems[n].(map[string]any)
		if !ok {
			return fmt.Errorf("item %q: expected object", n)
		}
		typ, _ := fields["type"].(string)
		attrs := map[string]any{}
		for k, v := range fields {
			if k == "type" {
				continue
			}
			attrs[k] = fmt.Sprint(v)
		}
		specs = append(specs, map[string]any{"name": n, "type": typ, "attrs": attrs})
	}
	doc["items"] = specs

	rawConns, _ := doc["connections"].([]any)
	conns := make([]any, 0, len(rawConns))
	for i, c := range rawConns {
		m, ok := c.(map[string]any)
		if !ok {
			return fmt.Errorf("connection %d: expected object", i)
		}
		conns = append(conns, map[string]any{"src": m["from"], "dst": m["to"]})
	}
	doc["connections"] = conns
	return nil
}
