package definition

import (
	"slices"

	"github.com/aretw0/fsmtask/pkg/domain"
)

// DefaultObjectStateFieldName is the object field that stores the state when a schema omits
// objectStateFieldName.
const DefaultObjectStateFieldName = "status"

type transitionKey struct {
	from  string
	event string
}

// Definition is a validated machine schema. It is immutable and safe for concurrent use.
type Definition struct {
	schema      domain.Schema
	stateField  string
	states      []string
	finalStates map[string]bool
	transitions []domain.Transition
	index       map[transitionKey]int
}

// New validates schema and builds a Definition.
// Every problem found is reported in a single *domain.DefinitionError.
func New(schema domain.Schema) (*Definition, error) {
	if err := validate(schema); err != nil {
		return nil, &domain.DefinitionError{Machine: schema.Name, Err: err}
	}

	d := &Definition{
		schema:      cloneSchema(schema),
		stateField:  schema.ObjectStateFieldName,
		finalStates: make(map[string]bool, len(schema.FinalStates)),
		transitions: make([]domain.Transition, 0, len(schema.Transitions)),
		index:       make(map[transitionKey]int, len(schema.Transitions)),
	}
	if d.stateField == "" {
		d.stateField = DefaultObjectStateFieldName
	}
	for _, s := range schema.FinalStates {
		d.finalStates[s] = true
	}
	for i, spec := range schema.Transitions {
		d.transitions = append(d.transitions, domain.NewTransition(spec))
		d.index[transitionKey{spec.From, spec.Event}] = i
	}
	d.states = stateSet(schema)

	return d, nil
}

// Name returns the machine name.
func (d *Definition) Name() string { return d.schema.Name }

// InitialState returns the state assigned by start.
func (d *Definition) InitialState() string { return d.schema.InitialState }

// ObjectStateFieldName returns the configured (or default) state field.
func (d *Definition) ObjectStateFieldName() string { return d.stateField }

// FinalStates returns the final states in schema order.
func (d *Definition) FinalStates() []string { return slices.Clone(d.schema.FinalStates) }

// States returns the declared states, or the implied set when the schema declares none.
func (d *Definition) States() []string { return slices.Clone(d.states) }

// IsFinalState reports whether state is final.
func (d *Definition) IsFinalState(state string) bool { return d.finalStates[state] }

// Transitions returns every transition in schema order.
func (d *Definition) Transitions() []domain.Transition {
	return slices.Clone(d.transitions)
}

// Schema returns a copy of the normalized schema, with the state field filled in.
func (d *Definition) Schema() domain.Schema {
	s := cloneSchema(d.schema)
	s.ObjectStateFieldName = d.stateField
	return s
}

// Describe returns the description declared for state, if any.
func (d *Definition) Describe(state string) string {
	for _, s := range d.schema.States {
		if s.Name == state {
			return s.Description
		}
	}
	return ""
}

// FindTransition returns the transition for (from, event). Absence is reported with false.
func (d *Definition) FindTransition(from, event string) (domain.Transition, bool) {
	i, ok := d.index[transitionKey{from, event}]
	if !ok {
		return domain.Transition{}, false
	}
	return d.transitions[i], true
}

// TransitionsFrom returns the transitions leaving state, in schema order.
func (d *Definition) TransitionsFrom(state string) []domain.Transition {
	var out []domain.Transition
	for _, t := range d.transitions {
		if t.From == state {
			out = append(out, t)
		}
	}
	return out
}

// Events returns the events accepted in state, in schema order.
func (d *Definition) Events(state string) []string {
	var out []string
	for _, t := range d.TransitionsFrom(state) {
		out = append(out, t.Event)
	}
	return out
}

// GetObjectState returns the object's current state, or "" when the field is absent.
func (d *Definition) GetObjectState(obj domain.Object) string {
	return obj.String(d.stateField)
}

// CurrentState reports whether obj carries a non-empty state value. Unlike GetObjectState it
// also sees values that are not strings, which are formatted with %v.
func (d *Definition) CurrentState(obj domain.Object) (string, bool) {
	return obj.ID(d.stateField)
}

// SetObjectState returns a copy of obj with the state field set to state.
func (d *Definition) SetObjectState(obj domain.Object, state string) domain.Object {
	out := obj.Clone()
	out[d.stateField] = state
	return out
}

// Reachable returns the states reachable from the initial state, in breadth-first order.
func (d *Definition) Reachable() []string {
	seen := map[string]bool{d.schema.InitialState: true}
	order := []string{d.schema.InitialState}

	for i := 0; i < len(order); i++ {
		for _, t := range d.TransitionsFrom(order[i]) {
			if !seen[t.To] {
				seen[t.To] = true
				order = append(order, t.To)
			}
		}
	}
	return order
}

// Unreachable returns the states that can never be entered from the initial state.
func (d *Definition) Unreachable() []string {
	reach := d.Reachable()
	var out []string
	for _, s := range d.states {
		if !slices.Contains(reach, s) {
			out = append(out, s)
		}
	}
	return out
}

func stateSet(schema domain.Schema) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(s string) {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}

	if len(schema.States) > 0 {
		for _, s := range schema.States {
			add(s.Name)
		}
		return out
	}

	add(schema.InitialState)
	for _, t := range schema.Transitions {
		add(t.From)
		add(t.To)
	}
	for _, s := range schema.FinalStates {
		add(s)
	}
	return out
}

func cloneSchema(s domain.Schema) domain.Schema {
	out := s
	out.FinalStates = slices.Clone(s.FinalStates)
	out.States = slices.Clone(s.States)
	if s.Transitions != nil {
		out.Transitions = make([]domain.TransitionSpec, len(s.Transitions))
		for i, t := range s.Transitions {
			out.Transitions[i] = cloneTransitionSpec(t)
		}
	}
	return out
}

func cloneTransitionSpec(t domain.TransitionSpec) domain.TransitionSpec {
	out := t
	if t.Guard != nil {
		g := cloneHook(*t.Guard)
		out.Guard = &g
	}
	if t.Action != nil {
		a := cloneHook(*t.Action)
		out.Action = &a
	}
	if t.Guards != nil {
		out.Guards = make([]domain.HookSpec, len(t.Guards))
		for i, h := range t.Guards {
			out.Guards[i] = cloneHook(h)
		}
	}
	if t.Actions != nil {
		out.Actions = make([]domain.HookSpec, len(t.Actions))
		for i, h := range t.Actions {
			out.Actions[i] = cloneHook(h)
		}
	}
	return out
}

func cloneHook(h domain.HookSpec) domain.HookSpec {
	h.Params = slices.Clone(h.Params)
	return h
}
