package execution

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/ravi-parthasarathy/workbench/pkg/execution"

type instruments struct {
	nodes       metric.Int64Counter
	dags        metric.Int64Counter
	dagDuration metric.Float64Histogram
}

// newInstruments registers the execution instruments with the global meter
// provider. Registration failures leave the affected instrument as a no-op.
func newInstruments(log *slog.Logger) instruments {
	meter := otel.Meter(meterName)
	var ins instruments
	var err error
	if ins.nodes, err = meter.Int64Counter("workbench.node.executions",
		metric.WithDescription("Project item hook executions by outcome.")); err != nil {
		log.Warn("register metric", "name", "workbench.node.executions", "err", err)
	}
	if ins.dags, err = meter.Int64Counter("workbench.dag.runs",
		metric.WithDescription("DAG execution passes by outcome.")); err != nil {
		log.Warn("register metric", "name", "workbench.dag.runs", "err", err)
	}
	if ins.dagDuration, err = meter.Float64Histogram("workbench.dag.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Wall time of a DAG execution pass.")); err != nil {
		log.Warn("register metric", "name", "workbench.dag.duration", "err", err)
	}
	return ins
}

func (ins instruments) recordNode(ctx context.Context, res NodeResult) {
	if ins.nodes == nil {
		return
	}
	outcome := "skipped"
	switch {
	case res.Err != nil:
		outcome = "failed"
	case res.Executed:
		outcome = "succeeded"
	}
	ins.nodes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (ins instruments) recordDAG(ctx context.Context, res DAGResult) {
	attrs := metric.WithAttributes(attribute.String("status", string(res.Status)))
	if ins.dags != nil {
		ins.dags.Add(ctx, 1, attrs)
	}
	if ins.dagDuration != nil {
		ins.dagDuration.Record(ctx, res.Finished.Sub(res.Started).Seconds(), attrs)
	}
}
