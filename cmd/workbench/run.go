package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ravi-parthasarathy/workbench/pkg/execution"
	"github.com/ravi-parthasarathy/workbench/pkg/history"
	"github.com/ravi-parthasarathy/workbench/pkg/project"
)

func runCmd(g *globals) *cobra.Command {
	var (
		only          []string
		cancelOnError bool
		concurrency   int
		reportPath    string
		historyDSN    string
	)

	cmd := &cobra.Command{
		Use:   "run <project>",
		Short: "Execute every DAG of a project",
		Long: `Execute the DAGs of a project (JSON, or Graphviz .dot/.gv).

With --only, forward execution is limited to the named items; the other
items of their DAGs still advertise their resources.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("cancel-on-error") {
				g.cfg.Execution.CancelOnError = cancelOnError
			}
			if cmd.Flags().Changed("concurrent") {
				g.cfg.Execution.Concurrency = concurrency
			}
			if cmd.Flags().Changed("history-dsn") {
				g.cfg.History.DSN = historyDSN
			}

			p, err := g.openProject(args[0])
			if err != nil {
				return err
			}

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			opts := project.ExecuteOptions{
				Selected:      only,
				CancelOnError: g.cfg.Execution.CancelOnError,
				Concurrency:   g.cfg.Execution.Concurrency,
			}
			if dsn := g.cfg.History.DSN; dsn != "" {
				store, err := history.Open(ctx, dsn)
				if err != nil {
					return err
				}
				defer store.Close()
				opts.Listeners = append(opts.Listeners, history.NewRecorder(store, p.Name(), nil))
			}

			res, err := p.Execute(ctx, opts)
			if err != nil {
				return err
			}
			printSummary(cmd.OutOrStdout(), res)
			if err := writeReport(reportPath, res); err != nil {
				return err
			}
			if res.Status != execution.StatusSucceeded {
				cause := res.Err()
				if cause == nil {
					cause = execution.ErrCancelled
				}
				return fmt.Errorf("run %s %s: %w", res.RunID, res.Status, cause)
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&only, "only", nil, "run only these items (comma separated)")
	cmd.Flags().BoolVar(&cancelOnError, "cancel-on-error", false, "stop a DAG at its first failed item")
	cmd.Flags().IntVar(&concurrency, "concurrent", 1, "number of DAGs executed at the same time")
	cmd.Flags().StringVar(&reportPath, "report", "", "write the run result as JSON to this path")
	cmd.Flags().StringVar(&historyDSN, "history-dsn", "", "postgres DSN to record the run in")
	return cmd
}

// printSummary writes one line per DAG and a line per failed item.
func printSummary(w io.Writer, res *execution.BatchResult) {
	fmt.Fprintf(w, "Run %s: %s (%d dags, %s)\n", res.RunID, res.Status, len(res.DAGs),
		res.Finished.Sub(res.Started).Round(time.Millisecond))
	for _, d := range res.DAGs {
		executed := 0
		for _, n := range d.Nodes {
			if n.Executed {
				executed++
			}
		}
		fmt.Fprintf(w, "  dag %s  %-14s %d/%d items executed\n", d.DAG, d.Status, executed, len(d.Nodes))
		if len(d.CycleEdges) > 0 {
			parts := make([]string, len(d.CycleEdges))
			for i, e := range d.CycleEdges {
				parts[i] = e.String()
			}
			fmt.Fprintf(w, "    cycle: remove %s\n", strings.Join(parts, ", "))
		}
		for _, f := range d.Failures {
			fmt.Fprintf(w, "    %s failed (%s): %v\n", f.Node, f.Direction, f.Err)
		}
	}
}

// runReport is the JSON form of a run written by --report.
type runReport struct {
	*execution.BatchResult
	Errors map[string]string `json:"errors,omitempty"`
}

// writeReport serialises res to path. An empty path is a no-op.
func writeReport(path string, res *execution.BatchResult) error {
	if path == "" {
		return nil
	}
	rep := runReport{BatchResult: res}
	for _, d := range res.DAGs {
		for _, n := range d.Nodes {
			if n.Err == nil {
				continue
			}
			if rep.Errors == nil {
				rep.Errors = make(map[string]string)
			}
			rep.Errors[n.Node] = n.Err.Error()
		}
	}
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
