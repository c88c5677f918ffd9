package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/prism/internal/errdefs"
	"github.com/thebtf/prism/pkg/models"
)

func summaryWithMetadata(t *testing.T, chatID string, props ...models.ExtractedProperty) models.ConversationSummary {
	t.Helper()
	set := models.NewPropertySet()
	for _, p := range props {
		require.NoError(t, set.Add(p))
	}
	return models.ConversationSummary{ChatID: chatID, Summary: "s", Metadata: set}
}

func TestCombineMetadata_Scalars(t *testing.T) {
	members := []models.ConversationSummary{
		summaryWithMetadata(t, "a",
			models.ExtractedProperty{Name: "language", Value: "en"},
			models.ExtractedProperty{Name: "turns", Value: int64(2)},
		),
		summaryWithMetadata(t, "b",
			models.ExtractedProperty{Name: "language", Value: "fr"},
			models.ExtractedProperty{Name: "turns", Value: int64(5)},
		),
	}

	combined, err := CombineMetadata(members)
	require.NoError(t, err)

	assert.Equal(t, []string{"language", "turns"}, combined.Names())
	v, _ := combined.Get("language")
	assert.Equal(t, []string{"en", "fr"}, v)
	v, _ = combined.Get("turns")
	assert.Equal(t, []int64{2, 5}, v)
}

func TestCombineMetadata_ListsConcatenated(t *testing.T) {
	members := []models.ConversationSummary{
		summaryWithMetadata(t, "a", models.ExtractedProperty{Name: "tags", Value: []string{"x", "y"}}),
		summaryWithMetadata(t, "b", models.ExtractedProperty{Name: "tags", Value: []string{"z"}}),
	}

	combined, err := CombineMetadata(members)
	require.NoError(t, err)
	v, _ := combined.Get("tags")
	assert.Equal(t, []string{"x", "y", "z"}, v)
}

func TestCombineMetadata_MissingKeyRejected(t *testing.T) {
	members := []models.ConversationSummary{
		summaryWithMetadata(t, "a", models.ExtractedProperty{Name: "language", Value: "en"}),
		summaryWithMetadata(t, "b", models.ExtractedProperty{Name: "turns", Value: int64(3)}),
	}

	_, err := CombineMetadata(members)
	require.Error(t, err)
	assert.ErrorIs(t, err, errdefs.ErrValidation)
}

func TestCombineMetadata_ExtraKeyRejected(t *testing.T) {
	members := []models.ConversationSummary{
		summaryWithMetadata(t, "a", models.ExtractedProperty{Name: "language", Value: "en"}),
		summaryWithMetadata(t, "b",
			models.ExtractedProperty{Name: "language", Value: "fr"},
			models.ExtractedProperty{Name: "turns", Value: int64(3)},
		),
	}

	_, err := CombineMetadata(members)
	require.Error(t, err)
	assert.ErrorIs(t, err, errdefs.ErrValidation)
}

func TestCombineMetadata_MixedTypesRejected(t *testing.T) {
	members := []models.ConversationSummary{
		summaryWithMetadata(t, "a", models.ExtractedProperty{Name: "turns", Value: int64(2)}),
		summaryWithMetadata(t, "b", models.ExtractedProperty{Name: "turns", Value: "three"}),
	}

	_, err := CombineMetadata(members)
	require.Error(t, err)
	assert.ErrorIs(t, err, errdefs.ErrValidation)
}

func TestCombineMetadata_BoolsAggregatedAsStrings(t *testing.T) {
	members := []models.ConversationSummary{
		summaryWithMetadata(t, "a", models.ExtractedProperty{Name: "resolved", Value: true}),
		summaryWithMetadata(t, "b", models.ExtractedProperty{Name: "resolved", Value: false}),
	}

	combined, err := CombineMetadata(members)
	require.NoError(t, err)
	v, _ := combined.Get("resolved")
	assert.Equal(t, []string{"true", "false"}, v)
}

func TestCombineMetadata_BoolMixedWithOtherTypeRejected(t *testing.T) {
	members := []models.ConversationSummary{
		summaryWithMetadata(t, "a", models.ExtractedProperty{Name: "resolved", Value: true}),
		summaryWithMetadata(t, "b", models.ExtractedProperty{Name: "resolved", Value: "yes"}),
	}

	_, err := CombineMetadata(members)
	require.Error(t, err)
	assert.ErrorIs(t, err, errdefs.ErrValidation)
}

func TestCombineMetadata_NoMetadata(t *testing.T) {
	members := []models.ConversationSummary{
		{ChatID: "a", Summary: "s"},
		{ChatID: "b", Summary: "s"},
	}

	combined, err := CombineMetadata(members)
	require.NoError(t, err)
	assert.Nil(t, combined)
}

func TestCombineClusterMetadata(t *testing.T) {
	childA := models.Cluster{ID: "a"}
	setA := models.NewPropertySet()
	require.NoError(t, setA.Add(models.ExtractedProperty{Name: "language", Value: []string{"en", "fr"}}))
	childA.Metadata = setA

	childB := models.Cluster{ID: "b"}
	setB := models.NewPropertySet()
	require.NoError(t, setB.Add(models.ExtractedProperty{Name: "language", Value: []string{"de"}}))
	childB.Metadata = setB

	combined, err := CombineClusterMetadata([]models.Cluster{childA, childB})
	require.NoError(t, err)
	v, _ := combined.Get("language")
	assert.Equal(t, []string{"en", "fr", "de"}, v)
}

func TestCombineClusterMetadata_NoMetadata(t *testing.T) {
	combined, err := CombineClusterMetadata([]models.Cluster{{ID: "a"}, {ID: "b"}})
	require.NoError(t, err)
	assert.Nil(t, combined)
}
