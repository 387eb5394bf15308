package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/ravi-parthasarathy/workbench/pkg/project"
)

func watchCmd(g *globals) *cobra.Command {
	var execute bool

	cmd := &cobra.Command{
		Use:   "watch <project>",
		Short: "Re-validate a project every time its file changes",
		Long: `Watch a project file. On every change the project is reloaded, linted
and simulated; with --run it is also executed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			w := cmd.OutOrStdout()
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			check := func() {
				p, err := g.openProject(path)
				if err != nil {
					fmt.Fprintf(w, "error: %v\n", err)
					return
				}
				for _, e := range p.Lint() {
					fmt.Fprintln(w, e.Error())
				}
				if err := renderSimulation(w, p); err != nil {
					fmt.Fprintf(w, "error: %v\n", err)
					return
				}
				if !execute {
					return
				}
				res, err := p.Execute(ctx, project.ExecuteOptions{
					CancelOnError: g.cfg.Execution.CancelOnError,
					Concurrency:   g.cfg.Execution.Concurrency,
				})
				if err != nil {
					fmt.Fprintf(w, "error: %v\n", err)
					return
				}
				printSummary(w, res)
			}

			check()
			return watchFile(ctx, path, g.cfg.Watch.Debounce, check)
		},
	}

	cmd.Flags().BoolVar(&execute, "run", false, "execute the project after each change")
	return cmd
}

// watchFile calls onChange after path is written, created or renamed into
// place. Bursts of events within debounce collapse into one call. It returns
// when ctx is done.
func watchFile(ctx context.Context, path string, debounce time.Duration, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// Editors often replace the file, so watch its directory.
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	slog.Info("watching project", "path", abs)

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			slog.Debug("project file changed", "path", ev.Name, "op", ev.Op.String())
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			onChange()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watch error", "error", err)
		}
	}
}
