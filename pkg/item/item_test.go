package item_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ravi-parthasarathy/workbench/pkg/item"
)

func TestBaseDefaults(t *testing.T) {
	t.Parallel()
	var it item.ProjectItem = item.NewBase("a", "tool", item.CategoryTools)
	assert.Equal(t, "a", it.Name())
	assert.Equal(t, "tool", it.ItemType())
	assert.Equal(t, item.CategoryTools, it.Category())
	assert.NoError(t, it.ExecuteForward(t.Context(), nil))
	assert.NoError(t, it.ExecuteBackward(t.Context(), nil))
	assert.Empty(t, it.OutputResources(item.Forward))
	assert.Empty(t, it.OutputResources(item.Backward))
	it.StopExecution()
}

func TestBaseRenameAndRank(t *testing.T) {
	t.Parallel()
	b := item.NewBase("a", "view", item.CategoryViews)
	assert.Equal(t, -1, b.Rank())
	b.HandleDAGChanged(3, nil)
	assert.Equal(t, 3, b.Rank())
	require.NoError(t, b.Rename("b"))
	assert.Equal(t, "b", b.Name())
}

func TestDirectionString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "forward", item.Forward.String())
	assert.Equal(t, "backward", item.Backward.String())
}
