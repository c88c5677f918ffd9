package cluster

import (
	"fmt"
	"strconv"

	"github.com/thebtf/prism/internal/errdefs"
	"github.com/thebtf/prism/pkg/models"
)

// CombineMetadata aggregates member summary metadata into cluster metadata:
// each property name maps to the list of member values in member order.
// Every member must carry the same property names.
func CombineMetadata(members []models.ConversationSummary) (*models.PropertySet, error) {
	first := firstMetadata(members)
	if first == nil {
		return nil, nil
	}

	names := first.Names()
	combined := models.NewPropertySet()
	for _, name := range names {
		values := make([]any, 0, len(members))
		for _, member := range members {
			v, ok := member.Metadata.Get(name)
			if !ok {
				return nil, fmt.Errorf("summary %s missing metadata key %q: %w", member.ChatID, name, errdefs.ErrValidation)
			}
			values = append(values, v)
		}
		aggregated, err := aggregateValues(name, values)
		if err != nil {
			return nil, err
		}
		if err := combined.Add(models.ExtractedProperty{Name: name, Value: aggregated}); err != nil {
			return nil, err
		}
	}

	// Extra keys on later members are as much an error as missing ones.
	for _, member := range members {
		if member.Metadata.Len() != len(names) {
			return nil, fmt.Errorf("summary %s has mismatched metadata keys: %w", member.ChatID, errdefs.ErrValidation)
		}
	}
	return combined, nil
}

// CombineClusterMetadata aggregates already-aggregated metadata from child
// clusters into parent metadata by concatenating the per-key lists.
func CombineClusterMetadata(children []models.Cluster) (*models.PropertySet, error) {
	var names []string
	for _, child := range children {
		if child.Metadata.Len() > 0 {
			names = child.Metadata.Names()
			break
		}
	}
	if names == nil {
		return nil, nil
	}

	combined := models.NewPropertySet()
	for _, name := range names {
		var values []any
		for _, child := range children {
			v, ok := child.Metadata.Get(name)
			if !ok {
				continue
			}
			values = append(values, v)
		}
		aggregated, err := concatLists(name, values)
		if err != nil {
			return nil, err
		}
		if err := combined.Add(models.ExtractedProperty{Name: name, Value: aggregated}); err != nil {
			return nil, err
		}
	}
	return combined, nil
}

func firstMetadata(members []models.ConversationSummary) *models.PropertySet {
	for _, member := range members {
		if member.Metadata.Len() > 0 {
			return member.Metadata
		}
	}
	return nil
}

// aggregateValues turns a list of scalar member values into a single typed
// slice. Slice-valued members are concatenated instead.
func aggregateValues(name string, values []any) (any, error) {
	switch values[0].(type) {
	case string:
		out := make([]string, 0, len(values))
		for _, v := range values {
			s, ok := v.(string)
			if !ok {
				return nil, mixedTypeErr(name)
			}
			out = append(out, s)
		}
		return out, nil
	case int64:
		out := make([]int64, 0, len(values))
		for _, v := range values {
			i, ok := v.(int64)
			if !ok {
				return nil, mixedTypeErr(name)
			}
			out = append(out, i)
		}
		return out, nil
	case float64:
		out := make([]float64, 0, len(values))
		for _, v := range values {
			f, ok := v.(float64)
			if !ok {
				return nil, mixedTypeErr(name)
			}
			out = append(out, f)
		}
		return out, nil
	case bool:
		// The property union has no bool list, so bools aggregate as their
		// string forms.
		out := make([]string, 0, len(values))
		for _, v := range values {
			b, ok := v.(bool)
			if !ok {
				return nil, mixedTypeErr(name)
			}
			out = append(out, strconv.FormatBool(b))
		}
		return out, nil
	case []string, []int64, []float64:
		return concatLists(name, values)
	default:
		return nil, fmt.Errorf("metadata key %q has non-aggregatable type %T: %w", name, values[0], errdefs.ErrValidation)
	}
}

// concatLists concatenates homogeneous slice values into one slice.
func concatLists(name string, values []any) (any, error) {
	switch values[0].(type) {
	case []string:
		var out []string
		for _, v := range values {
			s, ok := v.([]string)
			if !ok {
				return nil, mixedTypeErr(name)
			}
			out = append(out, s...)
		}
		return out, nil
	case []int64:
		var out []int64
		for _, v := range values {
			s, ok := v.([]int64)
			if !ok {
				return nil, mixedTypeErr(name)
			}
			out = append(out, s...)
		}
		return out, nil
	case []float64:
		var out []float64
		for _, v := range values {
			s, ok := v.([]float64)
			if !ok {
				return nil, mixedTypeErr(name)
			}
			out = append(out, s...)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("metadata key %q has non-list type %T: %w", name, values[0], errdefs.ErrValidation)
	}
}

func mixedTypeErr(name string) error {
	return fmt.Errorf("metadata key %q mixes value types across members: %w", name, errdefs.ErrValidation)
}
