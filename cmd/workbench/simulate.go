package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ravi-parthasarathy/workbench/pkg/execution"
	"github.com/ravi-parthasarathy/workbench/pkg/item"
	"github.com/ravi-parthasarathy/workbench/pkg/project"
	"github.com/ravi-parthasarathy/workbench/pkg/resource"
)

func simulateCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "simulate <project>",
		Short: "Show the rank and the resources each item would receive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := g.openProject(args[0])
			if err != nil {
				return err
			}
			return renderSimulation(cmd.OutOrStdout(), p)
		},
	}
}

// renderSimulation simulates every DAG of p and prints, per item, its rank
// and the forward resources available to it.
func renderSimulation(w io.Writer, p *project.Project) error {
	for _, d := range p.DAGs() {
		fmt.Fprintf(w, "dag %s\n", d.ID)
		order, ok := d.TopologicalOrder()
		if !ok {
			edges := d.EdgesBreakingCycles()
			parts := make([]string, len(edges))
			for i, e := range edges {
				parts[i] = e.String()
			}
			fmt.Fprintf(w, "  cycle: remove %s\n", strings.Join(parts, ", "))
			continue
		}
		if err := execution.Simulate(d, p); err != nil && !errors.Is(err, execution.ErrCycleDetected) {
			return err
		}

		pools := make(map[string][]resource.Resource)
		for rank, name := range order {
			it, _ := p.Item(name)
			fmt.Fprintf(w, "  %d  %s (%s)\n", rank, name, it.ItemType())
			for _, r := range pools[name] {
				fmt.Fprintf(w, "       <- %s\n", r)
			}
			out := resource.Merge(pools[name], it.OutputResources(item.Forward))
			for _, s := range d.Successors(name) {
				pools[s] = resource.Merge(pools[s], out)
			}
		}
	}
	return nil
}
