package execution

import "context"

// Listener observes an execution pass. With concurrent DAGs enabled the
// methods may be called from several goroutines.
type Listener interface {
	RunStarted(ctx context.Context, runID string)
	NodeStarted(ctx context.Context, dagID, node string)
	NodeFinished(ctx context.Context, dagID string, res NodeResult)
	DAGFinished(ctx context.Context, res DAGResult)
	RunFinished(ctx context.Context, res *BatchResult)
}

// NopListener ignores every event. Embed it to implement a subset.
type NopListener struct{}

func (NopListener) RunStarted(context.Context, string)               {}
func (NopListener) NodeStarted(context.Context, string, string)      {}
func (NopListener) NodeFinished(context.Context, string, NodeResult) {}
func (NopListener) DAGFinished(context.Context, DAGResult)           {}
func (NopListener) RunFinished(context.Context, *BatchResult)        {}

// Listeners fans events out in order.
type Listeners []Listener

func (ls Listeners) RunStarted(ctx context.Context, runID string) {
	for _, l := range ls {
		l.RunStarted(ctx, runID)
	}
}

func (ls Listeners) NodeStarted(ctx context.Context, dagID, node string) {
	for _, l := range ls {
		l.NodeStarted(ctx, dagID, node)
	}
}

func (ls Listeners) NodeFinished(ctx context.Context, dagID string, res NodeResult) {
	for _, l := range ls {
		l.NodeFinished(ctx, dagID, res)
	}
}

func (ls Listeners) DAGFinished(ctx context.Context, res DAGResult) {
	for _, l := range ls {
		l.DAGFinished(ctx, res)
	}
}

func (ls Listeners) RunFinished(ctx context.Context, res *BatchResult) {
	for _, l := range ls {
		l.RunFinished(ctx, res)
	}
}
