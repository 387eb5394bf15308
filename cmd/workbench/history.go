package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/ravi-parthasarathy/workbench/pkg/history"
)

func historyCmd(g *globals) *cobra.Command {
	var (
		dsn   string
		runID string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded runs, or the items of one run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("dsn") {
				g.cfg.History.DSN = dsn
			}
			if cmd.Flags().Changed("limit") {
				g.cfg.History.Limit = limit
			}
			if g.cfg.History.DSN == "" {
				return errors.New("no history database: set --dsn or history.dsn")
			}
			store, err := history.Open(cmd.Context(), g.cfg.History.DSN)
			if err != nil {
				return err
			}
			defer store.Close()

			w := cmd.OutOrStdout()
			if runID != "" {
				nodes, err := store.Nodes(cmd.Context(), runID)
				if err != nil {
					return fmt.Errorf("run %s: %w", runID, err)
				}
				printNodes(w, nodes)
				return nil
			}
			runs, err := store.Runs(cmd.Context(), g.cfg.History.Limit)
			if err != nil {
				return err
			}
			printRuns(w, runs)
			return nil
		},
	}

	cmd.Flags().StringVar(&dsn, "dsn", "", "postgres DSN of the history database")
	cmd.Flags().StringVar(&runID, "run", "", "show the items of this run")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs to list")
	return cmd
}

func printRuns(w io.Writer, runs []history.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "no runs recorded")
		return
	}
	for _, r := range runs {
		fmt.Fprintf(w, "%s  %-20s  %-14s  %d dags  %s  %s\n",
			r.ID, r.Project, r.Status, r.DAGs,
			r.Started.Local().Format(time.DateTime), r.Finished.Sub(r.Started).Round(time.Millisecond))
	}
}

func printNodes(w io.Writer, nodes []history.NodeRecord) {
	for _, n := range nodes {
		state := "skipped"
		switch {
		case n.Error != "":
			state = "failed"
		case n.Executed:
			state = "ok"
		}
		fmt.Fprintf(w, "%s  %3d  %-20s  %-7s  %s", n.DAG, n.Rank, n.Node, state, n.Duration.Round(time.Millisecond))
		if n.Error != "" {
			fmt.Fprintf(w, "  %s", n.Error)
		}
		fmt.Fprintln(w)
	}
}
