package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ravi-parthasarathy/workbench/pkg/project"
)

func lintCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "lint <project>",
		Short: "Validate a project without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := g.openProject(args[0])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			failed := 0
			for _, e := range p.Lint() {
				fmt.Fprintln(w, e.Error())
				if e.Severity == project.SeverityError {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("project %q: %d lint error(s)", p.Name(), failed)
			}
			fmt.Fprintf(w, "OK: project %q is valid (%d items, %d dags)\n",
				p.Name(), len(p.ItemNames()), len(p.DAGs()))
			return nil
		},
	}
}
