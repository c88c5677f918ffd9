package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/prism/internal/errdefs"
	"github.com/thebtf/prism/pkg/models"
)

func testHierarchy() []models.Cluster {
	return []models.Cluster{
		{ID: "r1", Name: "Software development", Count: 30},
		{ID: "r2", Name: "Creative writing", Count: 12},
		{ID: "c1", Name: "Debugging help", Count: 18, ParentID: "r1"},
		{ID: "c2", Name: "Code review", Count: 12, ParentID: "r1"},
		{ID: "c3", Name: "Short stories", Count: 12, ParentID: "r2"},
	}
}

func TestBuildTree(t *testing.T) {
	tree, err := BuildTree(testHierarchy())
	require.NoError(t, err)

	assert.Equal(t, []string{"r1", "r2"}, tree.Roots)
	assert.Equal(t, []string{"c1", "c2"}, tree.Nodes["r1"].Children)
	assert.Equal(t, []string{"c3"}, tree.Nodes["r2"].Children)
	assert.Empty(t, tree.Nodes["c1"].Children)
}

func TestBuildTree_DuplicateID(t *testing.T) {
	_, err := BuildTree([]models.Cluster{{ID: "a"}, {ID: "a"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, errdefs.ErrValidation)
}

func TestBuildTree_MissingParent(t *testing.T) {
	_, err := BuildTree([]models.Cluster{{ID: "a", ParentID: "ghost"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, errdefs.ErrValidation)
}

func TestBuildTree_CycleDetected(t *testing.T) {
	_, err := BuildTree([]models.Cluster{
		{ID: "a", ParentID: "b"},
		{ID: "b", ParentID: "a"},
		{ID: "root"},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, errdefs.ErrValidation)
}

func TestRenderTree(t *testing.T) {
	rendered, err := RenderTree(testHierarchy())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(rendered, "\n"), "\n")
	require.Len(t, lines, 6)

	// Synthetic root aggregates the top-level counts.
	assert.Equal(t, "Clusters (42 conversations)", lines[0])
	assert.Equal(t, "╠══ Software development (30 conversations)", lines[1])
	assert.Equal(t, "║   ╠══ Debugging help (18 conversations)", lines[2])
	assert.Equal(t, "║   ╚══ Code review (12 conversations)", lines[3])
	assert.Equal(t, "╚══ Creative writing (12 conversations)", lines[4])
	assert.Equal(t, "    ╚══ Short stories (12 conversations)", lines[5])
}

func TestRenderTree_Empty(t *testing.T) {
	rendered, err := RenderTree(nil)
	require.NoError(t, err)
	assert.Equal(t, "Clusters (0 conversations)\n", rendered)
}
