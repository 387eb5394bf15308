package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ravi-parthasarathy/workbench/pkg/project"
)

func graphCmd(g *globals) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "graph <project>",
		Short: "Print the items and connections of a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := g.openProject(args[0])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			switch strings.ToLower(format) {
			case "text", "":
				_, err = io.WriteString(w, renderText(p))
				return err
			case "dot", "graphml":
				gr, err := p.Graph()
				if err != nil {
					return err
				}
				if strings.EqualFold(format, "dot") {
					return gr.ExportDOT(w, p.Name())
				}
				return gr.ExportGraphML(w)
			default:
				return fmt.Errorf("unknown format %q: use text, dot or graphml", format)
			}
		},
	}

	cmd.Flags().StringVar(&format, "format", "text", "output format: text, dot or graphml")
	return cmd
}

// executionOrder lists items DAG by DAG in the order they would execute.
// Items of a cyclic DAG are listed in insertion order.
func executionOrder(p *project.Project) []string {
	var order []string
	for _, d := range p.DAGs() {
		if topo, ok := d.TopologicalOrder(); ok {
			order = append(order, topo...)
			continue
		}
		order = append(order, d.Nodes()...)
	}
	return order
}

// truncate shortens s to maxLen runes, appending "…" if needed.
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "…"
}

// renderText produces the human-readable text summary.
func renderText(p *project.Project) string {
	var sb strings.Builder
	f := p.File()
	specs := make(map[string]int, len(f.Items))
	maxName := 4
	for i, s := range f.Items {
		specs[s.Name] = i
		maxName = max(maxName, len(s.Name))
	}

	dags := p.DAGs()
	fmt.Fprintf(&sb, "Project: %s  (%d items, %d connections, %d dags)\n",
		p.Name(), len(f.Items), len(f.Connections), len(dags))

	fmt.Fprintf(&sb, "\nItems:\n")
	for _, name := range executionOrder(p) {
		s := f.Items[specs[name]]
		keys := make([]string, 0, len(s.Attrs))
		for k := range s.Attrs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+"="+truncate(s.Attrs[k], 60))
		}
		fmt.Fprintf(&sb, "  %-*s  %-15s  %s\n", maxName, name, s.Type, strings.Join(parts, " "))
	}

	fmt.Fprintf(&sb, "\nConnections:\n")
	maxSrc := 4
	for _, e := range f.Connections {
		maxSrc = max(maxSrc, len(e.Src))
	}
	for _, e := range f.Connections {
		fmt.Fprintf(&sb, "  %-*s  →  %s\n", maxSrc, e.Src, e.Dst)
	}

	for _, d := range dags {
		if !d.IsAcyclic() {
			fmt.Fprintf(&sb, "\nWarning: dag %s has a cycle through %s\n", d.ID, strings.Join(d.Nodes(), ", "))
		}
	}
	return sb.String()
}
