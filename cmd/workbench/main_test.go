package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ravi-parthasarathy/workbench/pkg/execution"
)

const etlProject = `{
  "version": 2,
  "name": "etl",
  "items": [
    {"name": "gen", "type": "tool", "attrs": {"cmd": "echo hello > out.txt", "outputs": "out.txt"}},
    {"name": "count", "type": "tool", "attrs": {"cmd": "wc -l < {{index .Files 0}} > count.txt", "requires": "out.txt"}},
    {"name": "show", "type": "view"}
  ],
  "connections": [
    {"src": "gen", "dst": "count"},
    {"src": "count", "dst": "show"}
  ]
}`

func writeProject(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "project.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := rootCmd()
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(&out)
	err := root.ExecuteContext(t.Context())
	return out.String(), err
}

// ─── writeReport ──────────────────────────────────────────────────────────────

func TestWriteReport_WritesJSON(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "report.json")

	res := &execution.BatchResult{
		RunID:  "r1",
		Status: execution.StatusFailed,
		DAGs: []execution.DAGResult{{
			DAG:    "d1",
			Status: execution.StatusFailed,
			Nodes: []execution.NodeResult{
				{Node: "a", Executed: true},
				{Node: "b", Executed: true, Err: errors.New("boom")},
			},
		}},
	}
	if err := writeReport(out, res); err != nil {
		t.Fatalf("writeReport: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got["run_id"] != "r1" {
		t.Errorf("run_id = %v, want r1", got["run_id"])
	}
	if got["status"] != "failed" {
		t.Errorf("status = %v, want failed", got["status"])
	}
	errs, _ := got["errors"].(map[string]any)
	if errs["b"] != "boom" {
		t.Errorf("errors = %v, want b: boom", got["errors"])
	}
}

func TestWriteReport_NoOp(t *testing.T) {
	if err := writeReport("", &execution.BatchResult{}); err != nil {
		t.Fatalf("expected no error for empty path, got: %v", err)
	}
}

func TestWriteReport_BadPath(t *testing.T) {
	err := writeReport("/nonexistent/dir/report.json", &execution.BatchResult{})
	if err == nil {
		t.Fatal("expected error writing to bad path")
	}
}

// ─── initLogger ───────────────────────────────────────────────────────────────

func TestInitLogger_ValidLevels(t *testing.T) {
	for _, lvl := range []string{"debug", "info", "warn", "error", "DEBUG", "INFO"} {
		if err := initLogger(lvl, "text"); err != nil {
			t.Errorf("initLogger(%q, text): unexpected error: %v", lvl, err)
		}
	}
}

func TestInitLogger_ValidFormats(t *testing.T) {
	for _, f := range []string{"text", "json", "TEXT", "JSON"} {
		if err := initLogger("info", f); err != nil {
			t.Errorf("initLogger(info, %q): unexpected error: %v", f, err)
		}
	}
}

func TestInitLogger_InvalidLevel(t *testing.T) {
	if err := initLogger("verbose", "text"); err == nil {
		t.Fatal("expected error for unknown log level")
	}
}

func TestInitLogger_InvalidFormat(t *testing.T) {
	if err := initLogger("info", "xml"); err == nil {
		t.Fatal("expected error for unknown log format")
	}
}

// ─── commands ─────────────────────────────────────────────────────────────────

func TestRunCommand(t *testing.T) {
	path := writeProject(t, etlProject)
	report := filepath.Join(t.TempDir(), "report.json")

	out, err := execute(t, "run", path, "--report", report, "--log-level", "error")
	if err != nil {
		t.Fatalf("run: %v\n%s", err, out)
	}
	if !strings.Contains(out, "succeeded") {
		t.Errorf("summary missing status:\n%s", out)
	}
	count, err := os.ReadFile(filepath.Join(filepath.Dir(path), "count.txt"))
	if err != nil {
		t.Fatalf("count.txt not written: %v", err)
	}
	if got := strings.TrimSpace(string(count)); got != "1" {
		t.Errorf("count = %q, want 1", got)
	}
	if _, err := os.Stat(report); err != nil {
		t.Errorf("report not written: %v", err)
	}
}

func TestRunCommandOnly(t *testing.T) {
	path := writeProject(t, etlProject)
	out, err := execute(t, "run", path, "--only", "gen", "--log-level", "error")
	if err != nil {
		t.Fatalf("run: %v\n%s", err, out)
	}
	if !strings.Contains(out, "1/3 items executed") {
		t.Errorf("expected only gen to execute:\n%s", out)
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(path), "count.txt")); !os.IsNotExist(err) {
		t.Errorf("count should not have run: %v", err)
	}
}

func TestRunCommandFailure(t *testing.T) {
	path := writeProject(t, `{"version":2,"items":[{"name":"bad","type":"tool","attrs":{"cmd":"exit 2"}}]}`)
	out, err := execute(t, "run", path, "--log-level", "error")
	if err == nil {
		t.Fatal("expected error for failing project")
	}
	if !strings.Contains(out, "bad failed") {
		t.Errorf("summary missing failure:\n%s", out)
	}
}

func TestLintCommand(t *testing.T) {
	path := writeProject(t, etlProject)
	out, err := execute(t, "lint", path, "--log-level", "error")
	if err != nil {
		t.Fatalf("lint: %v\n%s", err, out)
	}
	if !strings.Contains(out, `OK: project "etl" is valid (3 items, 1 dags)`) {
		t.Errorf("unexpected output:\n%s", out)
	}

	cyclic := writeProject(t, `{"version":2,"items":[
		{"name":"a","type":"view"},{"name":"b","type":"view"}],
		"connections":[{"src":"a","dst":"b"},{"src":"b","dst":"a"}]}`)
	out, err = execute(t, "lint", cyclic, "--log-level", "error")
	if err == nil {
		t.Fatalf("expected lint error for cycle:\n%s", out)
	}
	if !strings.Contains(out, "cycle") {
		t.Errorf("cycle not reported:\n%s", out)
	}
}

func TestGraphCommand(t *testing.T) {
	path := writeProject(t, etlProject)

	out, err := execute(t, "graph", path, "--log-level", "error")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Project: etl", "gen", "count", "→"} {
		if !strings.Contains(out, want) {
			t.Errorf("text output missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "gen ") > strings.Index(out, "show ") {
		t.Errorf("items should be listed in execution order:\n%s", out)
	}

	out, err = execute(t, "graph", path, "--format", "dot", "--log-level", "error")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "digraph") || !strings.Contains(out, "->") {
		t.Errorf("dot output:\n%s", out)
	}

	out, err = execute(t, "graph", path, "--format", "graphml", "--log-level", "error")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "<graphml") {
		t.Errorf("graphml output:\n%s", out)
	}

	if _, err := execute(t, "graph", path, "--format", "svg"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestSimulateCommand(t *testing.T) {
	path := writeProject(t, etlProject)
	out, err := execute(t, "simulate", path, "--log-level", "error")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "2  show (view)") {
		t.Errorf("show should have rank 2:\n%s", out)
	}
	if !strings.Contains(out, "out.txt") {
		t.Errorf("count should see gen's future output:\n%s", out)
	}
}

func TestHistoryRequiresDSN(t *testing.T) {
	if _, err := execute(t, "history", "--log-level", "error"); err == nil {
		t.Fatal("expected error without a history database")
	}
}

func TestWatchFile(t *testing.T) {
	path := writeProject(t, etlProject)
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	changed := make(chan struct{}, 1)
	done := make(chan error, 1)
	go func() {
		done <- watchFile(ctx, path, 10*time.Millisecond, func() {
			select {
			case changed <- struct{}{}:
			default:
			}
		})
	}()

	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for waiting := true; waiting; {
		select {
		case <-tick.C:
			// Keep touching the file until the watcher is up.
			if err := os.WriteFile(path, []byte(etlProject), 0o644); err != nil {
				t.Fatal(err)
			}
		case <-changed:
			waiting = false
		case <-deadline:
			t.Fatal("change not observed")
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("watchFile: %v", err)
	}
}
