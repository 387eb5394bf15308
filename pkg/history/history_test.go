package history_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ravi-parthasarathy/workbench/pkg/execution"
	"github.com/ravi-parthasarathy/workbench/pkg/history"
	"github.com/ravi-parthasarathy/workbench/pkg/item/itemtest"
	"github.com/ravi-parthasarathy/workbench/pkg/project"
)

func runProject(t *testing.T, store history.Store) *execution.BatchResult {
	t.Helper()
	p := project.New("demo")
	a := itemtest.New("a", nil)
	b := itemtest.New("b", nil)
	b.FailWith = errors.New("boom")
	require.NoError(t, p.AddProjectItem(a))
	require.NoError(t, p.AddProjectItem(b))
	require.NoError(t, p.Connect("a", "b"))

	res, err := p.Execute(t.Context(), project.ExecuteOptions{
		Listeners: []execution.Listener{history.NewRecorder(store, p.Name(), nil)},
	})
	require.NoError(t, err)
	return res
}

func TestRecorderSavesRuns(t *testing.T) {
	t.Parallel()
	store := history.NewMemoryStore()
	first := runProject(t, store)
	second := runProject(t, store)

	runs, err := store.Runs(t.Context(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second.RunID, runs[0].ID, "newest first")
	assert.Equal(t, first.RunID, runs[1].ID)
	assert.Equal(t, "demo", runs[0].Project)
	assert.Equal(t, execution.StatusFailed, runs[0].Status)
	assert.Equal(t, 1, runs[0].DAGs)

	limited, err := store.Runs(t.Context(), 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	nodes, err := store.Nodes(t.Context(), first.RunID)
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, "a", nodes[0].Node)
	assert.Empty(t, nodes[0].Error)
	assert.Equal(t, "b", nodes[1].Node)
	assert.Contains(t, nodes[1].Error, "boom")
	assert.Equal(t, 1, nodes[1].Rank)

	_, err = store.Nodes(t.Context(), "missing")
	assert.ErrorIs(t, err, history.ErrRunNotFound)
}
