/*
Package definition holds validated, immutable machine definitions.

A Definition is built once from a domain.Schema and answers structural questions:
which state an object is in, which transition an event triggers, which states are final.
It never evaluates guards or runs actions; that is the machine's job.

	def, err := definition.LoadFile("order.yaml")
	if err != nil {
		// err is a *domain.DefinitionError for schema problems
	}
	tr, ok := def.FindTransition("new", "pay")
*/
package definition
