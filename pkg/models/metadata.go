package models

import (
	"bytes"
	"fmt"

	json "github.com/goccy/go-json"

	"github.com/thebtf/prism/internal/errdefs"
)

// ExtractedProperty is a single named metadata value produced by an
// extractor. Value is restricted to a closed set of types: string, int64,
// float64, bool, []string, []int64, []float64.
type ExtractedProperty struct {
	Name  string
	Value any
}

// Validate checks that Value is one of the permitted types.
func (p ExtractedProperty) Validate() error {
	switch p.Value.(type) {
	case string, int64, float64, bool, []string, []int64, []float64:
		return nil
	default:
		return fmt.Errorf("property %q has unsupported type %T: %w", p.Name, p.Value, errdefs.ErrValidation)
	}
}

// PropertySet is an insertion-ordered collection of extracted properties.
// Adding a name twice is a configuration error.
type PropertySet struct {
	names  []string
	values map[string]any
}

// NewPropertySet returns an empty property set.
func NewPropertySet() *PropertySet {
	return &PropertySet{values: make(map[string]any)}
}

// Add appends a property, rejecting duplicates and unsupported value types.
func (s *PropertySet) Add(p ExtractedProperty) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if s.values == nil {
		s.values = make(map[string]any)
	}
	if _, ok := s.values[p.Name]; ok {
		return fmt.Errorf("duplicate property name %q: %w", p.Name, errdefs.ErrConfiguration)
	}
	s.names = append(s.names, p.Name)
	s.values[p.Name] = p.Value
	return nil
}

// Get returns the value for name, if present.
func (s *PropertySet) Get(name string) (any, bool) {
	if s == nil || s.values == nil {
		return nil, false
	}
	v, ok := s.values[name]
	return v, ok
}

// Names returns the property names in insertion order.
func (s *PropertySet) Names() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Len returns the number of properties.
func (s *PropertySet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.names)
}

// MarshalJSON encodes the set as a JSON object preserving insertion order.
func (s *PropertySet) MarshalJSON() ([]byte, error) {
	if s == nil || len(s.names) == 0 {
		return []byte("{}"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range s.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(s.values[name])
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, preserving key order from the document.
func (s *PropertySet) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("property set must be a JSON object: %w", errdefs.ErrValidation)
	}

	s.names = nil
	s.values = make(map[string]any)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("property set key is not a string: %w", errdefs.ErrValidation)
		}
		var raw any
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		value, err := coerceProperty(key, raw)
		if err != nil {
			return err
		}
		s.names = append(s.names, key)
		s.values[key] = value
	}
	_, err = dec.Token() // closing brace
	return err
}

// coerceProperty narrows decoded JSON values into the closed property union.
func coerceProperty(name string, raw any) (any, error) {
	switch v := raw.(type) {
	case string, bool:
		return v, nil
	case json.Number:
		return coerceNumber(v)
	case []any:
		return coerceSlice(name, v)
	default:
		return nil, fmt.Errorf("property %q has unsupported JSON type %T: %w", name, raw, errdefs.ErrValidation)
	}
}

func coerceNumber(n json.Number) (any, error) {
	if i, err := n.Int64(); err == nil {
		return i, nil
	}
	return n.Float64()
}

func coerceSlice(name string, items []any) (any, error) {
	if len(items) == 0 {
		return []string{}, nil
	}
	switch items[0].(type) {
	case string:
		out := make([]string, len(items))
		for i, item := range items {
			v, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("property %q mixes element types: %w", name, errdefs.ErrValidation)
			}
			out[i] = v
		}
		return out, nil
	case json.Number:
		ints := make([]int64, 0, len(items))
		floats := make([]float64, 0, len(items))
		allInts := true
		for _, item := range items {
			n, ok := item.(json.Number)
			if !ok {
				return nil, fmt.Errorf("property %q mixes element types: %w", name, errdefs.ErrValidation)
			}
			if i, err := n.Int64(); err == nil && allInts {
				ints = append(ints, i)
			} else {
				allInts = false
			}
			f, err := n.Float64()
			if err != nil {
				return nil, err
			}
			floats = append(floats, f)
		}
		if allInts {
			return ints, nil
		}
		return floats, nil
	default:
		return nil, fmt.Errorf("property %q has unsupported element type %T: %w", name, items[0], errdefs.ErrValidation)
	}
}
