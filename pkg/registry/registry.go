package registry

import (
	"context"
	"sort"
	"sync"

	"github.com/aretw0/fsmtask/pkg/domain"
	"github.com/aretw0/fsmtask/pkg/params"
)

// Invocation carries everything a guard or action may inspect.
// Object is the object as it was before the transition for guards, and the transitioned
// object for actions. Implementations must treat it as read-only.
type Invocation struct {
	Object     domain.Object
	Event      string
	Payload    any
	From       string
	To         string
	Params     map[string]any
	Expression string
}

// Guard decides whether a matched transition may proceed.
type Guard func(ctx context.Context, inv Invocation) (bool, error)

// Action is a side effect executed after a transition is accepted.
type Action func(ctx context.Context, inv Invocation) error

// ExpressionEvaluator evaluates inline guard expressions.
// The expression syntax is entirely up to the implementation.
type ExpressionEvaluator func(ctx context.Context, expression string, inv Invocation) (bool, error)

// Entry is a registered guard or action with its optional parameter schema.
type Entry[F any] struct {
	Fn          F
	Params      params.Schema
	Description string
}

// EntryOption configures a registered entry.
type EntryOption func(*entryMeta)

type entryMeta struct {
	params      params.Schema
	description string
}

// WithParams declares the parameters the guard or action accepts.
func WithParams(schema params.Schema) EntryOption {
	return func(m *entryMeta) {
		m.params = schema
	}
}

// WithDescription attaches a human readable description.
func WithDescription(desc string) EntryOption {
	return func(m *entryMeta) {
		m.description = desc
	}
}

// Registry maps the guard and action names used in machine schemas to implementations.
// It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	guards    map[string]Entry[Guard]
	actions   map[string]Entry[Action]
	evaluator ExpressionEvaluator
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		guards:  make(map[string]Entry[Guard]),
		actions: make(map[string]Entry[Action]),
	}
}

// RegisterGuard adds a guard. An existing guard with the same name is overwritten.
func (r *Registry) RegisterGuard(name string, fn Guard, opts ...EntryOption) {
	meta := applyEntryOptions(opts)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.guards[name] = Entry[Guard]{Fn: fn, Params: meta.params, Description: meta.description}
}

// RegisterAction adds an action. An existing action with the same name is overwritten.
func (r *Registry) RegisterAction(name string, fn Action, opts ...EntryOption) {
	meta := applyEntryOptions(opts)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions[name] = Entry[Action]{Fn: fn, Params: meta.params, Description: meta.description}
}

// SetExpressionEvaluator installs the evaluator used for guards declared with an expression.
func (r *Registry) SetExpressionEvaluator(eval ExpressionEvaluator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evaluator = eval
}

// Guard looks up a guard by name.
func (r *Registry) Guard(name string) (Entry[Guard], bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.guards[name]
	return e, ok
}

// Action looks up an action by name.
func (r *Registry) Action(name string) (Entry[Action], bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.actions[name]
	return e, ok
}

// ExpressionEvaluator returns the installed evaluator, or nil.
func (r *Registry) ExpressionEvaluator() ExpressionEvaluator {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.evaluator
}

// GuardNames returns the registered guard names, sorted.
func (r *Registry) GuardNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedNames(r.guards)
}

// ActionNames returns the registered action names, sorted.
func (r *Registry) ActionNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedNames(r.actions)
}

func applyEntryOptions(opts []EntryOption) entryMeta {
	var meta entryMeta
	for _, opt := range opts {
		opt(&meta)
	}
	return meta
}

func sortedNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
