package params

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// Type validates a single parameter value.
type Type interface {
	Name() string
	Check(value any) error
}

type scalar struct {
	name  string
	check func(any) bool
}

func (s scalar) Name() string { return s.name }

func (s scalar) Check(value any) error {
	if !s.check(value) {
		return fmt.Errorf("expected %s, got %T", s.name, value)
	}
	return nil
}

type list struct {
	elem Type
}

func (l list) Name() string { return "[" + l.elem.Name() + "]" }

func (l list) Check(value any) error {
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return fmt.Errorf("expected list, got %T", value)
	}
	for i := range rv.Len() {
		if err := l.elem.Check(rv.Index(i).Interface()); err != nil {
			return fmt.Errorf("item %d: %w", i, err)
		}
	}
	return nil
}

// String accepts string values.
func String() Type {
	return scalar{name: "string", check: func(v any) bool { _, ok := v.(string); return ok }}
}

// Number accepts any integer or floating point value.
func Number() Type {
	return scalar{name: "number", check: func(v any) bool {
		switch n := v.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
			return true
		case json.Number:
			_, err := n.Float64()
			return err == nil
		}
		return false
	}}
}

// Integer accepts integers, including whole floats produced by JSON decoding.
func Integer() Type {
	return scalar{name: "integer", check: func(v any) bool {
		switch n := v.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			return true
		case float64:
			return n == float64(int64(n))
		case json.Number:
			// strict decoders hand numbers over untyped
			_, err := n.Int64()
			return err == nil
		}
		return false
	}}
}

// Boolean accepts bool values.
func Boolean() Type {
	return scalar{name: "boolean", check: func(v any) bool { _, ok := v.(bool); return ok }}
}

// Any accepts every non-nil value.
func Any() Type {
	return scalar{name: "any", check: func(v any) bool { return v != nil }}
}

// List accepts slices whose items all satisfy elem.
func List(elem Type) Type {
	return list{elem: elem}
}

// ParseType converts a type name into a Type.
func ParseType(name string) (Type, error) {
	name = strings.TrimSpace(name)
	if len(name) > 2 && strings.HasPrefix(name, "[") && strings.HasSuffix(name, "]") {
		elem, err := ParseType(name[1 : len(name)-1])
		if err != nil {
			return nil, err
		}
		return List(elem), nil
	}

	switch name {
	case "string":
		return String(), nil
	case "number", "float":
		return Number(), nil
	case "integer", "int":
		return Integer(), nil
	case "boolean", "bool":
		return Boolean(), nil
	case "any":
		return Any(), nil
	default:
		return nil, fmt.Errorf("unsupported param type: %q", name)
	}
}
