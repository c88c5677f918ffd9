package models

import (
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/prism/internal/errdefs"
)

func TestPropertySet_Add(t *testing.T) {
	set := NewPropertySet()
	require.NoError(t, set.Add(ExtractedProperty{Name: "language", Value: "en"}))
	require.NoError(t, set.Add(ExtractedProperty{Name: "turns", Value: int64(4)}))

	assert.Equal(t, []string{"language", "turns"}, set.Names())
	v, ok := set.Get("turns")
	require.True(t, ok)
	assert.Equal(t, int64(4), v)
}

func TestPropertySet_DuplicateName(t *testing.T) {
	set := NewPropertySet()
	require.NoError(t, set.Add(ExtractedProperty{Name: "language", Value: "en"}))

	err := set.Add(ExtractedProperty{Name: "language", Value: "fr"})
	require.Error(t, err)
	assert.ErrorIs(t, err, errdefs.ErrConfiguration)
}

func TestExtractedProperty_Validate(t *testing.T) {
	tests := []struct {
		name    string
		value   any
		wantErr bool
	}{
		{name: "string", value: "x"},
		{name: "int64", value: int64(1)},
		{name: "float64", value: 1.5},
		{name: "bool", value: true},
		{name: "string slice", value: []string{"a"}},
		{name: "int64 slice", value: []int64{1, 2}},
		{name: "float64 slice", value: []float64{0.1}},
		{name: "plain int rejected", value: 1, wantErr: true},
		{name: "map rejected", value: map[string]string{}, wantErr: true},
		{name: "nil rejected", value: nil, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ExtractedProperty{Name: "p", Value: tt.value}.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, errdefs.ErrValidation)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPropertySet_JSONRoundTrip(t *testing.T) {
	set := NewPropertySet()
	require.NoError(t, set.Add(ExtractedProperty{Name: "zeta", Value: "last alphabetically"}))
	require.NoError(t, set.Add(ExtractedProperty{Name: "alpha", Value: int64(7)}))
	require.NoError(t, set.Add(ExtractedProperty{Name: "ratio", Value: 0.25}))
	require.NoError(t, set.Add(ExtractedProperty{Name: "tags", Value: []string{"a", "b"}}))

	data, err := json.Marshal(set)
	require.NoError(t, err)
	// Insertion order survives encoding, not map order.
	assert.Equal(t, `{"zeta":"last alphabetically","alpha":7,"ratio":0.25,"tags":["a","b"]}`, string(data))

	var decoded PropertySet
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, set.Names(), decoded.Names())

	v, ok := decoded.Get("alpha")
	require.True(t, ok)
	assert.Equal(t, int64(7), v)
	v, ok = decoded.Get("ratio")
	require.True(t, ok)
	assert.Equal(t, 0.25, v)
	v, ok = decoded.Get("tags")
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, v)
}

func TestPropertySet_UnmarshalMixedNumbers(t *testing.T) {
	var set PropertySet
	require.NoError(t, json.Unmarshal([]byte(`{"values":[1,2.5,3]}`), &set))

	v, ok := set.Get("values")
	require.True(t, ok)
	assert.Equal(t, []float64{1, 2.5, 3}, v)
}

func TestPropertySet_UnmarshalRejectsNonObject(t *testing.T) {
	var set PropertySet
	err := json.Unmarshal([]byte(`[1,2]`), &set)
	require.Error(t, err)
}

func TestPropertySet_MarshalEmpty(t *testing.T) {
	data, err := json.Marshal(NewPropertySet())
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))
}
