package genai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/prism/internal/metacluster"
	"github.com/thebtf/prism/pkg/models"
)

func TestSchemaFor_FlatStruct(t *testing.T) {
	schema := schemaFor[models.GeneratedCluster]()

	assert.Equal(t, "object", schema["type"])
	assert.Equal(t, false, schema["additionalProperties"])

	properties, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, properties, "name")
	assert.Contains(t, properties, "summary")

	required, ok := schema["required"].([]string)
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"name", "summary"}, required)
}

func TestSchemaFor_NestedArrayOfObjects(t *testing.T) {
	type proposed struct {
		Labels []metacluster.ProposedLabel `json:"labels"`
	}
	schema := schemaFor[proposed]()

	properties := schema["properties"].(map[string]any)
	labels, ok := properties["labels"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "array", labels["type"])

	items, ok := labels["items"].(map[string]any)
	require.True(t, ok)
	// Strict mode closes nested objects too.
	assert.Equal(t, false, items["additionalProperties"])
	required, ok := items["required"].([]string)
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"name", "description"}, required)
}
