package domain

import (
	"fmt"
	"maps"
)

// Object is a caller-owned record managed by a machine.
// Only the state field is interpreted; everything else is copied forward as is.
type Object map[string]any

// Clone returns a shallow copy. A nil Object clones to an empty one.
func (o Object) Clone() Object {
	out := make(Object, len(o)+1)
	maps.Copy(out, o)
	return out
}

// String returns the field as a string, or "" when it is missing or not a string.
func (o Object) String(field string) string {
	s, _ := o[field].(string)
	return s
}

// ID returns the identity stored under field.
// Non-string identities (e.g. numbers decoded from JSON) are formatted with %v.
func (o Object) ID(field string) (string, bool) {
	v, ok := o[field]
	if !ok || v == nil {
		return "", false
	}
	id := fmt.Sprint(v)
	return id, id != ""
}

// Matches reports whether every param equals the object's field of the same name.
// Values are compared by their printed form so that 3 and 3.0 decoded from JSON agree.
func (o Object) Matches(params map[string]any) bool {
	for k, want := range params {
		got, ok := o[k]
		if !ok {
			return false
		}
		if fmt.Sprint(got) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}
