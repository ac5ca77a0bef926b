/*
Package params validates the named parameters that a machine schema passes to guards and actions.

A registered guard or action may declare a Schema. Parameters written in a machine definition are
checked against it once, when the machine is built, so that a typo in a definition fails early
instead of at the first event.

	s, _ := params.ParseSchema(map[string]string{"threshold": "number", "tags": "[string]?"})
	err := params.Validate(s, map[string]any{"threshold": 10})

Type names: string, number, integer, boolean, any, and [T] for lists. A trailing "?" marks the
parameter as optional. Keys not present in the schema are rejected.
*/
package params
