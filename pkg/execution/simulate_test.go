package execution_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ravi-parthasarathy/workbench/pkg/execution"
)

func TestSimulateRanksAndResources(t *testing.T) {
	t.Parallel()
	f := newFixture([2]string{"A", "B"}, [2]string{"B", "C"}, [2]string{"A", "C"})
	require.NoError(t, execution.Simulate(f.dag, f.items))

	assert.Equal(t, []int{0}, f.rec("A").Ranks())
	assert.Equal(t, []int{1}, f.rec("B").Ranks())
	assert.Equal(t, []int{2}, f.rec("C").Ranks())
	assert.Equal(t, 2, f.rec("C").Rank())
	assert.Empty(t, f.log.Calls(), "simulation runs no hooks")
}

func TestSimulateCycle(t *testing.T) {
	t.Parallel()
	f := newFixture([2]string{"A", "B"}, [2]string{"B", "A"})
	err := execution.Simulate(f.dag, f.items)
	assert.ErrorIs(t, err, execution.ErrCycleDetected)
	assert.Equal(t, []int{-1}, f.rec("A").Ranks())
	assert.Equal(t, []int{-1}, f.rec("B").Ranks())
}

func TestSimulateUnknownItem(t *testing.T) {
	t.Parallel()
	f := newFixture([2]string{"A", "B"})
	delete(f.items, "B")
	assert.ErrorIs(t, execution.Simulate(f.dag, f.items), execution.ErrUnknownItem)
}
