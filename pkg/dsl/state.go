package dsl

import "github.com/aretw0/fsmtask/pkg/domain"

// StateBuilder provides a fluent API for configuring a state.
type StateBuilder struct {
	name        string
	description string
	final       bool
	transitions []*TransitionBuilder
	builder     *Builder
}

// Describe attaches a human readable description.
func (s *StateBuilder) Describe(text string) *StateBuilder {
	s.description = text
	return s
}

// Final marks the state as final. Final states accept no events.
// The schema lists final states in the order Final was called.
func (s *StateBuilder) Final() *StateBuilder {
	if !s.final {
		s.final = true
		s.builder.finals = append(s.builder.finals, s.name)
	}
	return s
}

// On adds a transition from this state to target on event. The target state is declared too.
func (s *StateBuilder) On(event, target string) *TransitionBuilder {
	s.builder.State(target)
	tb := &TransitionBuilder{
		spec:  domain.TransitionSpec{From: s.name, Event: event, To: target},
		state: s,
	}
	s.transitions = append(s.transitions, tb)
	return tb
}

// TransitionBuilder configures the guards and actions of one transition.
type TransitionBuilder struct {
	spec  domain.TransitionSpec
	state *StateBuilder
}

// Param builds a named hook argument.
func Param(name string, value any) domain.Param {
	return domain.Param{Name: name, Value: value}
}

// Guard adds a registered guard.
func (t *TransitionBuilder) Guard(name string, params ...domain.Param) *TransitionBuilder {
	t.spec.Guards = append(t.spec.Guards, domain.HookSpec{Name: name, Params: params})
	return t
}

// When adds an inline expression guard.
func (t *TransitionBuilder) When(expression string) *TransitionBuilder {
	t.spec.Guards = append(t.spec.Guards, domain.HookSpec{Expression: expression})
	return t
}

// Action adds a registered action.
func (t *TransitionBuilder) Action(name string, params ...domain.Param) *TransitionBuilder {
	t.spec.Actions = append(t.spec.Actions, domain.HookSpec{Name: name, Params: params})
	return t
}

// On adds another transition leaving the same state.
func (t *TransitionBuilder) On(event, target string) *TransitionBuilder {
	return t.state.On(event, target)
}
