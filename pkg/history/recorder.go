package history

import (
	"context"
	"log/slog"

	"github.com/ravi-parthasarathy/workbench/pkg/execution"
)

// Recorder is an execution.Listener that saves every finished run to a Store.
type Recorder struct {
	execution.NopListener

	store   Store
	project string
	log     *slog.Logger
}

// NewRecorder returns a Recorder saving runs of project to store.
func NewRecorder(store Store, project string, log *slog.Logger) *Recorder {
	if log == nil {
		log = slog.Default()
	}
	return &Recorder{store: store, project: project, log: log}
}

// RunFinished saves the run. The save outlives cancellation of the run so
// that stopped runs are recorded too.
func (r *Recorder) RunFinished(ctx context.Context, res *execution.BatchResult) {
	if err := r.store.SaveRun(context.WithoutCancel(ctx), r.project, res); err != nil {
		r.log.Error("save run history", "run", res.RunID, "error", err)
		return
	}
	r.log.Debug("run history saved", "run", res.RunID, "status", res.Status)
}
