package graph

import (
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"os"

	gographviz "github.com/awalterschulze/gographviz"
)

const graphMLNamespace = "http://graphml.graphdrawing.org/xmlns"

type graphMLDoc struct {
	XMLName xml.Name     `xml:"graphml"`
	XMLNS   string       `xml:"xmlns,attr"`
	Graph   graphMLGraph `xml:"graph"`
}

type graphMLGraph struct {
	ID          string        `xml:"id,attr"`
	EdgeDefault string        `xml:"edgedefault,attr"`
	Nodes       []graphMLNode `xml:"node"`
	Edges       []graphMLEdge `xml:"edge"`
}

type graphMLNode struct {
	ID string `xml:"id,attr"`
}

type graphMLEdge struct {
	ID     string `xml:"id,attr"`
	Source string `xml:"source,attr"`
	Target string `xml:"target,attr"`
}

// ExportGraphML writes the graph as a GraphML document.
func (d *DirectedGraph) ExportGraphML(w io.Writer) error {
	doc := graphMLDoc{
		XMLNS: graphMLNamespace,
		Graph: graphMLGraph{ID: "G", EdgeDefault: "directed"},
	}
	for _, n := range d.Nodes() {
		doc.Graph.Nodes = append(doc.Graph.Nodes, graphMLNode{ID: n})
	}
	for i, e := range d.Edges() {
		doc.Graph.Edges = append(doc.Graph.Edges, graphMLEdge{
			ID:     fmt.Sprintf("e%d", i),
			Source: e.Src,
			Target: e.Dst,
		})
	}
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode graphml: %w", err)
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// Export writes the graph to path as GraphML and reports whether it
// succeeded. Failures are logged.
func (d *DirectedGraph) Export(path string) bool {
	f, err := os.Create(path)
	if err != nil {
		slog.Error("export graph", "path", path, "err", err)
		return false
	}
	if err := d.ExportGraphML(f); err != nil {
		_ = f.Close()
		slog.Error("export graph", "path", path, "err", err)
		return false
	}
	if err := f.Close(); err != nil {
		slog.Error("export graph", "path", path, "err", err)
		return false
	}
	return true
}

// ImportGraphML reads a document written by ExportGraphML.
func ImportGraphML(r io.Reader) (*DirectedGraph, error) {
	var doc graphMLDoc
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode graphml: %w", err)
	}
	g := New()
	for _, n := range doc.Graph.Nodes {
		g.AddNode(n.ID)
	}
	for _, e := range doc.Graph.Edges {
		g.AddEdge(e.Source, e.Target)
	}
	return g, nil
}

// ExportDOT writes the graph as a Graphviz digraph named name.
func (d *DirectedGraph) ExportDOT(w io.Writer, name string) error {
	if name == "" {
		name = "dag"
	}
	out := gographviz.NewEscape()
	if err := out.SetName(name); err != nil {
		return fmt.Errorf("dot name: %w", err)
	}
	if err := out.SetDir(true); err != nil {
		return fmt.Errorf("dot dir: %w", err)
	}
	for _, n := range d.Nodes() {
		if err := out.AddNode(name, n, nil); err != nil {
			return fmt.Errorf("dot node %q: %w", n, err)
		}
	}
	for _, e := range d.Edges() {
		if err := out.AddEdge(e.Src, e.Dst, true, nil); err != nil {
			return fmt.Errorf("dot edge %s: %w", e, err)
		}
	}
	_, err := io.WriteString(w, out.String())
	return err
}
