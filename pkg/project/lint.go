package project

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ravi-parthasarathy/workbench/pkg/execution"
)

// Severity ranks a lint finding.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// LintError describes a structural problem in a project.
type LintError struct {
	Item     string
	Severity Severity
	Message  string
}

func (e LintError) Error() string {
	if e.Item != "" {
		return fmt.Sprintf("%s: item %q: %s", e.Severity, e.Item, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Severity, e.Message)
}

type missingInputs interface{ MissingInputs() []string }

type missingFiles interface{ MissingFiles() []string }

// Lint simulates the project and reports every problem found. Cycles are
// errors; unconnected items and inputs no upstream item provides are
// warnings.
func (p *Project) Lint() []LintError {
	var errs []LintError

	for _, d := range p.DAGs() {
		if d.IsAcyclic() {
			continue
		}
		edges := d.EdgesBreakingCycles()
		parts := make([]string, len(edges))
		for i, e := range edges {
			parts[i] = e.String()
		}
		errs = append(errs, LintError{
			Severity: SeverityError,
			Message:  fmt.Sprintf("cycle among %s; remove %s", strings.Join(d.Nodes(), ", "), strings.Join(parts, ", ")),
		})
	}

	// Refresh ranks and resource views before inspecting items. Cycles were
	// reported above.
	for _, d := range p.DAGs() {
		err := execution.Simulate(d, p)
		if err == nil || errors.Is(err, execution.ErrCycleDetected) {
			continue
		}
		p.log.Error("simulate dag", "dag", d.ID, "error", err)
		errs = append(errs, LintError{Severity: SeverityError, Message: err.Error()})
	}

	for _, name := range p.ItemNames() {
		it, ok := p.Item(name)
		if !ok {
			continue
		}
		if d := p.DAGOf(name); d != nil && d.IsNodeIsolated(name, true) && p.itemCount() > 1 {
			errs = append(errs, LintError{Item: name, Severity: SeverityWarning, Message: "item is not connected"})
		}
		if mi, ok := it.(missingInputs); ok {
			for _, f := range mi.MissingInputs() {
				errs = append(errs, LintError{Item: name, Severity: SeverityWarning,
					Message: fmt.Sprintf("required file %q is not provided upstream", f)})
			}
		}
		if mf, ok := it.(missingFiles); ok {
			for _, f := range mf.MissingFiles() {
				errs = append(errs, LintError{Item: name, Severity: SeverityWarning,
					Message: fmt.Sprintf("file %q does not exist", f)})
			}
		}
	}
	return errs
}

// LintErr calls Lint and returns nil unless an error-severity finding exists,
// in which case every finding is listed.
func (p *Project) LintErr() error {
	errs := p.Lint()
	failed := false
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
		failed = failed || e.Severity == SeverityError
	}
	if !failed {
		return nil
	}
	return fmt.Errorf("project validation failed:\n  %s", strings.Join(msgs, "\n  "))
}

func (p *Project) itemCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.items)
}
