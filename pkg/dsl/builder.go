package dsl

import (
	"fmt"

	"github.com/aretw0/fsmtask/pkg/adapters/memory"
	"github.com/aretw0/fsmtask/pkg/definition"
	"github.com/aretw0/fsmtask/pkg/domain"
)

// Builder manages the schema construction.
type Builder struct {
	schema domain.Schema
	states map[string]*StateBuilder
	order  []string
	finals []string
}

// New creates a builder for the machine called name.
func New(name string) *Builder {
	return &Builder{
		schema: domain.Schema{Name: name},
		states: make(map[string]*StateBuilder),
	}
}

// StateField sets the object field that holds the state. Defaults to "status".
func (b *Builder) StateField(field string) *Builder {
	b.schema.ObjectStateFieldName = field
	return b
}

// Initial sets the initial state. Without it the first state added is initial.
func (b *Builder) Initial(state string) *Builder {
	b.schema.InitialState = state
	b.State(state)
	return b
}

// State returns the builder for state, creating it on first use.
func (b *Builder) State(name string) *StateBuilder {
	if sb, ok := b.states[name]; ok {
		return sb
	}
	sb := &StateBuilder{name: name, builder: b}
	b.states[name] = sb
	b.order = append(b.order, name)
	return sb
}

// Schema assembles the schema. States are declared in the order they were added,
// final states in the order they were marked.
func (b *Builder) Schema() domain.Schema {
	s := b.schema
	if s.InitialState == "" && len(b.order) > 0 {
		s.InitialState = b.order[0]
	}

	s.States = make([]domain.StateSpec, 0, len(b.order))
	s.FinalStates = append([]string(nil), b.finals...)
	s.Transitions = []domain.TransitionSpec{}
	for _, name := range b.order {
		sb := b.states[name]
		s.States = append(s.States, domain.StateSpec{Name: name, Description: sb.description})
		for _, tb := range sb.transitions {
			s.Transitions = append(s.Transitions, tb.spec)
		}
	}
	return s
}

// Definition validates the schema.
func (b *Builder) Definition() (*definition.Definition, error) {
	return definition.New(b.Schema())
}

// Build compiles the schema into a memory loader.
func (b *Builder) Build() (*memory.Loader, error) {
	loader, err := memory.NewFromSchemas(b.Schema())
	if err != nil {
		return nil, fmt.Errorf("failed to build memory loader: %w", err)
	}
	return loader, nil
}
