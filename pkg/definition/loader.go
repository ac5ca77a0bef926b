package definition

import (
	"fmt"
	"os"
	"reflect"

	"github.com/aretw0/fsmtask/pkg/domain"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// ParseSchema decodes a YAML or JSON document into a Schema without validating it.
func ParseSchema(data []byte) (domain.Schema, error) {
	var s domain.Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return domain.Schema{}, fmt.Errorf("failed to parse machine schema: %w", err)
	}
	return s, nil
}

// Parse decodes a YAML or JSON document and builds a Definition.
func Parse(data []byte) (*Definition, error) {
	s, err := ParseSchema(data)
	if err != nil {
		return nil, err
	}
	return New(s)
}

// LoadFile reads a schema file (.yaml, .yml or .json) and builds a Definition.
func LoadFile(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read machine schema: %w", err)
	}
	def, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return def, nil
}

// DecodeSchema converts a loosely typed map (decoded JSON, MCP arguments, front matter) into a Schema.
func DecodeSchema(raw map[string]any) (domain.Schema, error) {
	var s domain.Schema
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      &s,
		ErrorUnused: true,
		DecodeHook:  hookNameHook,
	})
	if err != nil {
		return domain.Schema{}, err
	}
	if err := dec.Decode(raw); err != nil {
		return domain.Schema{}, fmt.Errorf("failed to decode machine schema: %w", err)
	}
	return s, nil
}

var hookSpecType = reflect.TypeOf(domain.HookSpec{})

// hookNameHook expands a bare guard or action name into {name: <name>}.
func hookNameHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to != hookSpecType {
		return data, nil
	}
	return map[string]any{"name": reflect.ValueOf(data).String()}, nil
}

// FromMap decodes raw with DecodeSchema and builds a Definition.
func FromMap(raw map[string]any) (*Definition, error) {
	s, err := DecodeSchema(raw)
	if err != nil {
		return nil, err
	}
	return New(s)
}
