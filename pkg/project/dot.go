package project

import (
	"fmt"
	"os"
	"strings"

	gographviz "github.com/awalterschulze/gographviz"

	"github.com/ravi-parthasarathy/workbench/pkg/graph"
	"github.com/ravi-parthasarathy/workbench/pkg/items"
)

// ParseDOT reads a project written as a Graphviz digraph. The node attribute
// "type" selects the item type; every other attribute is kept as an item
// attribute. Nodes without a type become tools.
//
//	digraph etl {
//	  raw   [type=data_connection, files="in/a.csv"]
//	  clean [type=tool, cmd="python clean.py {{index .Files 0}}"]
//	  raw -> clean
//	}
func ParseDOT(src string) (*File, error) {
	ast, err := gographviz.ParseString(src)
	if err != nil {
		return nil, fmt.Errorf("dot parse error: %w", err)
	}

	// gographviz.Graph rejects attribute names it does not know, so collect
	// into a permissive implementation of its interface instead.
	c := newDOTCollector()
	if err := gographviz.Analyse(ast, c); err != nil {
		return nil, fmt.Errorf("dot analyse error: %w", err)
	}

	f := &File{Version: CurrentVersion, Name: c.name}
	for _, id := range c.order {
		attrs := c.nodes[id]
		typ := attrs["type"]
		if typ == "" {
			typ = items.TypeTool
		}
		spec := items.Spec{Name: id, Type: typ}
		for k, v := range attrs {
			if k == "type" {
				continue
			}
			if spec.Attrs == nil {
				spec.Attrs = make(map[string]string)
			}
			spec.Attrs[k] = v
		}
		f.Items = append(f.Items, spec)
	}
	f.Connections = c.edges
	return f, nil
}

// Load reads a project file, choosing the format by extension: .dot and .gv
// are parsed as Graphviz, anything else as JSON.
func Load(path string) (*File, error) {
	switch {
	case strings.HasSuffix(path, ".dot"), strings.HasSuffix(path, ".gv"):
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read project: %w", err)
		}
		return ParseDOT(string(data))
	default:
		return ReadFile(path)
	}
}

type dotCollector struct {
	name  string
	order []string
	nodes map[string]map[string]string
	edges []graph.Edge
}

func newDOTCollector() *dotCollector {
	return &dotCollector{nodes: make(map[string]map[string]string)}
}

func (c *dotCollector) SetStrict(_ bool) error { return nil }
func (c *dotCollector) SetDir(_ bool) error    { return nil }
func (c *dotCollector) SetName(n string) error { c.name = unquote(n); return nil }
func (c *dotCollector) String() string         { return c.name }

func (c *dotCollector) AddNode(_ string, name string, attrs map[string]string) error {
	id := unquote(name)
	if _, ok := c.nodes[id]; !ok {
		c.order = append(c.order, id)
		c.nodes[id] = make(map[string]string, len(attrs))
	}
	for k, v := range attrs {
		c.nodes[id][k] = unquote(v)
	}
	return nil
}

func (c *dotCollector) AddEdge(src, dst string, _ bool, _ map[string]string) error {
	s, d := unquote(src), unquote(dst)
	// Edge endpoints declare nodes implicitly.
	for _, id := range []string{s, d} {
		if _, ok := c.nodes[id]; !ok {
			if err := c.AddNode("", id, nil); err != nil {
				return err
			}
		}
	}
	c.edges = append(c.edges, graph.Edge{Src: s, Dst: d})
	return nil
}

func (c *dotCollector) AddPortEdge(src, _, dst, _ string, directed bool, attrs map[string]string) error {
	return c.AddEdge(src, dst, directed, attrs)
}

func (c *dotCollector) AddAttr(_ string, _, _ string) error { return nil }

func (c *dotCollector) AddSubGraph(_, _ string, _ map[string]string) error { return nil }

// unquote strips surrounding double quotes from a DOT identifier or value.
func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}
