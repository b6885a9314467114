package bridge

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/kaptinlin/jsonrepair"

	"github.com/MrWong99/aibridge/pkg/provider/llm"
)

// schemaNameSanitizer replaces characters the backends reject in schema names.
var schemaNameSanitizer = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// structuredSchema is the schema derived from a Go type, in both the form sent
// to the backend and the resolved form used for validation.
type structuredSchema struct {
	format   *llm.ResponseFormat
	resolved *jsonschema.Resolved
}

// schemaFor derives the JSON schema of T.
func schemaFor[T any]() (*structuredSchema, error) {
	s, err := jsonschema.For[T](nil)
	if err != nil {
		return nil, fmt.Errorf("bridge: derive schema for %T: %w", *new(T), err)
	}
	resolved, err := s.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("bridge: resolve schema for %T: %w", *new(T), err)
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("bridge: encode schema for %T: %w", *new(T), err)
	}
	var generic map[string]any
	if err := json.Unmarshal(b, &generic); err != nil {
		return nil, fmt.Errorf("bridge: decode schema for %T: %w", *new(T), err)
	}

	name := schemaNameSanitizer.ReplaceAllString(fmt.Sprintf("%T", *new(T)), "_")
	name = strings.Trim(name, "_")
	if name == "" {
		name = "response"
	}
	return &structuredSchema{
		format: &llm.ResponseFormat{
			Name:   name,
			Schema: generic,
			Strict: allRequired(s),
		},
		resolved: resolved,
	}, nil
}

// allRequired reports whether every object in s lists all of its properties
// as required, which is what strict backends demand.
func allRequired(s *jsonschema.Schema) bool {
	if s == nil {
		return true
	}
	if len(s.Properties) > 0 && len(s.Required) != len(s.Properties) {
		return false
	}
	for _, p := range s.Properties {
		if !allRequired(p) {
			return false
		}
	}
	return allRequired(s.Items)
}

// parseStructured decodes text into T. Markdown fences are stripped, invalid
// JSON is repaired when possible, and when resolved is non-nil the value must
// validate against it. Every failure wraps [ErrStructuredParse].
func parseStructured[T any](text string, resolved *jsonschema.Resolved) (T, error) {
	var out T
	raw := stripFences(text)
	if raw == "" {
		return out, fmt.Errorf("%w: empty response", ErrStructuredParse)
	}
	if !json.Valid([]byte(raw)) {
		repaired, err := jsonrepair.JSONRepair(raw)
		if err != nil {
			return out, fmt.Errorf("%w: invalid JSON and repair failed: %v", ErrStructuredParse, err)
		}
		raw = repaired
	}

	if resolved != nil {
		var generic any
		if err := json.Unmarshal([]byte(raw), &generic); err != nil {
			return out, fmt.Errorf("%w: %v", ErrStructuredParse, err)
		}
		if err := resolved.Validate(generic); err != nil {
			return out, fmt.Errorf("%w: schema validation: %v", ErrStructuredParse, err)
		}
	}

	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return out, fmt.Errorf("%w: decode into %T: %v", ErrStructuredParse, out, err)
	}
	return out, nil
}

// stripFences removes a surrounding ```json ... ``` block if present.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[i+1:]
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}
