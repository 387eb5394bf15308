package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ravi-parthasarathy/workbench/pkg/config"
	"github.com/ravi-parthasarathy/workbench/pkg/items"
	"github.com/ravi-parthasarathy/workbench/pkg/project"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// globals holds the settings shared by every subcommand.
type globals struct {
	configPath string
	logLevel   string
	logFormat  string
	workdir    string
	split      bool

	cfg *config.Config
}

func rootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:   "workbench",
		Short: "Workbench: DAG workflow runner",
		Long: `Workbench executes projects whose items (tools, data connections,
data stores, views) are connected into directed acyclic graphs.

Each DAG runs in dependency order. Items exchange resources such as files
and database URLs along their connections.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return g.load(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "", "config file (default: ./workbench.yaml if present)")
	pf.StringVar(&g.logLevel, "log-level", "info", "log level: debug, info, warn or error")
	pf.StringVar(&g.logFormat, "log-format", "text", "log format: text or json")
	pf.StringVar(&g.workdir, "workdir", "", "directory relative item paths resolve against (default: project file directory)")
	pf.BoolVar(&g.split, "split-on-remove", false, "split a DAG when a removal disconnects it")

	root.AddCommand(runCmd(g))
	root.AddCommand(lintCmd(g))
	root.AddCommand(graphCmd(g))
	root.AddCommand(simulateCmd(g))
	root.AddCommand(watchCmd(g))
	root.AddCommand(historyCmd(g))
	return root
}

// load reads the config and lets explicitly set flags override it.
func (g *globals) load(cmd *cobra.Command) error {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Log.Level = g.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = g.logFormat
	}
	if flags.Changed("workdir") {
		cfg.Workdir = g.workdir
	}
	if flags.Changed("split-on-remove") {
		cfg.DAG.SplitOnRemove = g.split
	}
	if err := initLogger(cfg.Log.Level, cfg.Log.Format); err != nil {
		return err
	}
	g.cfg = cfg
	return nil
}

// openProject loads and builds the project at path.
func (g *globals) openProject(path string) (*project.Project, error) {
	f, err := project.Load(path)
	if err != nil {
		return nil, err
	}
	if f.Name == "" {
		f.Name = projectName(path)
	}
	workdir := g.cfg.Workdir
	if workdir == "" {
		workdir = filepath.Dir(path)
	}
	opts := []project.Option{project.WithRegistry(items.DefaultRegistry(workdir))}
	if g.cfg.DAG.SplitOnRemove {
		opts = append(opts, project.WithSplitOnRemove())
	}
	p, err := project.FromFile(f, opts...)
	if err != nil {
		return nil, fmt.Errorf("load project %s: %w", path, err)
	}
	return p, nil
}

func projectName(path string) string {
	base := filepath.Base(path)
	return base[:len(base)-len(filepath.Ext(base))]
}

// signalContext returns a context that is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(ch)
		select {
		case <-ch:
			fmt.Fprintln(os.Stderr, "\n[workbench] interrupted, stopping execution")
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
