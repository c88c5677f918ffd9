package genai

import (
	"github.com/invopop/jsonschema"

	json "github.com/goccy/go-json"
)

// schemaFor derives an OpenAI-strict JSON schema from T: no references, no
// additional properties, every field required.
func schemaFor[T any]() map[string]any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties:  false,
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
	}
	var v T
	schema := reflector.Reflect(v)

	raw, err := schema.MarshalJSON()
	if err != nil {
		panic(err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		panic(err)
	}
	makeStrict(m)
	return m
}

// makeStrict walks the schema marking every object closed and every
// property required, which the strict structured-output mode demands.
func makeStrict(schema map[string]any) {
	if t, ok := schema["type"].(string); ok && t == "object" {
		schema["additionalProperties"] = false
		if properties, ok := schema["properties"].(map[string]any); ok {
			required := make([]string, 0, len(properties))
			for name := range properties {
				required = append(required, name)
			}
			if len(required) > 0 {
				schema["required"] = required
			}
		}
	}
	if properties, ok := schema["properties"].(map[string]any); ok {
		for _, prop := range properties {
			if m, ok := prop.(map[string]any); ok {
				makeStrict(m)
			}
		}
	}
	if items, ok := schema["items"].(map[string]any); ok {
		makeStrict(items)
	}
}
