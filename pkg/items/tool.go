package items

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ravi-parthasarathy/workbench/pkg/item"
	"github.com/ravi-parthasarathy/workbench/pkg/resource"
)

// pipeWaitDelay bounds how long a cancelled command may keep its output
// pipes open.
const pipeWaitDelay = time.Second

// Tool runs a shell command. The command is a Go template rendered with the
// forward resources: {{.Files}}, {{.Databases}}, {{.URLs}} and {{.Name}}.
type Tool struct {
	*item.Base

	Command string
	Workdir string
	Timeout time.Duration
	// OutputFiles are the files the command writes, relative to Workdir.
	OutputFiles []string
	// RequiredFiles are base names the tool expects among its input files.
	RequiredFiles []string
	FailOnError   bool

	mu      sync.Mutex
	cancel  context.CancelFunc
	stdout  string
	stderr  string
	missing []string
}

// NewTool returns a Tool that fails on a non-zero exit code.
func NewTool(name, command string) *Tool {
	return &Tool{
		Base:        item.NewBase(name, TypeTool, item.CategoryTools),
		Command:     command,
		FailOnError: true,
	}
}

// NewToolFromSpec builds a Tool from its attributes: cmd, workdir, timeout,
// outputs, requires and fail_on_error.
func NewToolFromSpec(s Spec, workdir string) (*Tool, error) {
	cmd := s.Attrs["cmd"]
	if cmd == "" {
		return nil, fmt.Errorf("tool %q: missing 'cmd' attribute", s.Name)
	}
	timeout, err := s.Duration("timeout")
	if err != nil {
		return nil, err
	}
	t := NewTool(s.Name, cmd)
	t.Workdir = workdir
	if wd := s.Attrs["workdir"]; wd != "" {
		t.Workdir = resolve(workdir, wd)
	}
	t.Timeout = timeout
	t.OutputFiles = s.List("outputs")
	t.RequiredFiles = s.List("requires")
	t.FailOnError = s.Bool("fail_on_error", true)
	return t, nil
}

func (t *Tool) ExecuteForward(ctx context.Context, rs []resource.Resource) error {
	name := t.Name()
	rendered, err := renderTemplate(t.Command, newTemplateData(name, rs))
	if err != nil {
		return fmt.Errorf("tool %q: cmd template error: %w", name, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if t.Timeout > 0 {
		var tcancel context.CancelFunc
		runCtx, tcancel = context.WithTimeout(runCtx, t.Timeout)
		defer tcancel()
	}
	t.mu.Lock()
	t.cancel = cancel
	t.mu.Unlock()
	defer func() {
		t.mu.Lock()
		t.cancel = nil
		t.mu.Unlock()
	}()

	cmd := exec.CommandContext(runCtx, "/bin/sh", "-c", rendered)
	killGroupOnCancel(cmd)
	cmd.WaitDelay = pipeWaitDelay
	if t.Workdir != "" {
		cmd.Dir = t.Workdir
	}
	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	slog.Debug("running tool", "item", name, "cmd", rendered, "workdir", t.Workdir)
	runErr := cmd.Run()

	t.mu.Lock()
	t.stdout, t.stderr = stdoutBuf.String(), stderrBuf.String()
	t.mu.Unlock()

	exitCode := 0
	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
	}
	if runCtx.Err() != nil {
		return fmt.Errorf("tool %q: %w", name, runCtx.Err())
	}
	if exitCode != 0 && t.FailOnError {
		msg := fmt.Sprintf("tool %q: command exited with code %d", name, exitCode)
		if firstLine := strings.SplitN(strings.TrimSpace(stderrBuf.String()), "\n", 2)[0]; firstLine != "" {
			msg += ": " + firstLine
		}
		return errors.New(msg)
	}
	return nil
}

// OutputResources advertises the declared output files forward. Files that
// do not exist yet are flagged future.
func (t *Tool) OutputResources(dir item.Direction) []resource.Resource {
	if dir != item.Forward {
		return nil
	}
	out := make([]resource.Resource, 0, len(t.OutputFiles))
	for _, f := range t.OutputFiles {
		out = append(out, fileResource(t.Name(), resolve(t.Workdir, f)))
	}
	return out
}

// HandleDAGChanged records which required input files are not provided.
func (t *Tool) HandleDAGChanged(rank int, rs []resource.Resource) {
	t.Base.HandleDAGChanged(rank, rs)
	have := make(map[string]bool)
	for _, r := range resource.FilterType(rs, resource.TypeFile) {
		if p, err := r.Path(); err == nil {
			have[filepath.Base(p)] = true
		}
	}
	var missing []string
	for _, req := range t.RequiredFiles {
		if !have[req] {
			missing = append(missing, req)
		}
	}
	t.mu.Lock()
	t.missing = missing
	t.mu.Unlock()
	if len(missing) > 0 {
		slog.Warn("tool inputs not available", "item", t.Name(), "missing", missing)
	}
}

// StopExecution kills a running command and every process it started.
func (t *Tool) StopExecution() {
	t.mu.Lock()
	cancel := t.cancel
	t.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Output returns stdout and stderr of the last run.
func (t *Tool) Output() (stdout, stderr string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stdout, t.stderr
}

// MissingInputs returns the required files absent at the last simulation.
func (t *Tool) MissingInputs() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.missing...)
}
