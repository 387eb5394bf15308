package execution

import (
	"fmt"

	"github.com/ravi-parthasarathy/workbench/pkg/dag"
	"github.com/ravi-parthasarathy/workbench/pkg/item"
	"github.com/ravi-parthasarathy/workbench/pkg/resource"
)

// Simulate tells every item of d its execution rank and the resources it
// would receive, without running any hook. Items of a cyclic DAG get rank -1
// and no resources, and a *CycleError is returned.
func Simulate(d *dag.DAG, items Items) error {
	order, ok := d.TopologicalOrder()
	if !ok {
		for _, n := range d.Nodes() {
			if it, found := items.Item(n); found {
				it.HandleDAGChanged(-1, nil)
			}
		}
		return &CycleError{DAG: d.ID, Edges: d.EdgesBreakingCycles()}
	}

	pools := make(map[string][]resource.Resource, len(order))
	for rank, name := range order {
		it, found := items.Item(name)
		if !found {
			return fmt.Errorf("simulate dag %s: node %q: %w", d.ID, name, ErrUnknownItem)
		}
		inputs := pools[name]
		it.HandleDAGChanged(rank, inputs)
		forwarded := resource.Merge(inputs, it.OutputResources(item.Forward))
		for _, s := range d.Successors(name) {
			pools[s] = resource.Merge(pools[s], forwarded)
		}
	}
	return nil
}
