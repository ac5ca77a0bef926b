package params

import (
	"fmt"
	"sort"
	"strings"
)

// Field describes one declared parameter.
type Field struct {
	Type     Type
	Optional bool
}

// Schema maps parameter names to their declaration.
type Schema map[string]Field

// Required declares a mandatory parameter.
func Required(t Type) Field { return Field{Type: t} }

// Optional declares a parameter that may be omitted.
func Optional(t Type) Field { return Field{Type: t, Optional: true} }

// ParseSchema builds a Schema from type names, e.g. {"to": "string", "cc": "[string]?"}.
func ParseSchema(raw map[string]string) (Schema, error) {
	out := make(Schema, len(raw))
	for key, name := range raw {
		optional := strings.HasSuffix(name, "?")
		t, err := ParseType(strings.TrimSuffix(name, "?"))
		if err != nil {
			return nil, fmt.Errorf("param %s: %w", key, err)
		}
		out[key] = Field{Type: t, Optional: optional}
	}
	return out, nil
}

// Validate checks values against the schema and reports every problem at once.
// A nil schema accepts anything.
func Validate(schema Schema, values map[string]any) error {
	if schema == nil {
		return nil
	}

	var errs []error

	for _, key := range sortedKeys(schema) {
		field := schema[key]
		value, ok := values[key]
		if !ok || value == nil {
			if !field.Optional {
				errs = append(errs, &ValidationError{Key: key, Reason: "required"})
			}
			continue
		}
		if err := field.Type.Check(value); err != nil {
			errs = append(errs, &ValidationError{Key: key, Reason: err.Error(), Value: value})
		}
	}

	for _, key := range sortedKeys(values) {
		if _, declared := schema[key]; !declared {
			errs = append(errs, &ValidationError{Key: key, Reason: "unknown param", Value: values[key]})
		}
	}

	if len(errs) > 0 {
		return &AggregateError{Errors: errs}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
