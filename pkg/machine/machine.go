package machine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aretw0/fsmtask/pkg/definition"
	"github.com/aretw0/fsmtask/pkg/domain"
	"github.com/aretw0/fsmtask/pkg/registry"
)

// Machine executes transitions of a single Definition.
type Machine struct {
	def    *definition.Definition
	reg    *registry.Registry
	bound  map[string]map[string]*boundTransition
	hooks  domain.LifecycleHooks
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Machine.
type Option func(*Machine)

// WithRegistry sets the registry used to resolve guard and action names.
func WithRegistry(reg *registry.Registry) Option {
	return func(m *Machine) {
		m.reg = reg
	}
}

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Machine) {
		m.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(m *Machine) {
		m.hooks = hooks
	}
}

// New builds a Machine for def and resolves every guard and action it references.
func New(def *definition.Definition, opts ...Option) (*Machine, error) {
	if def == nil {
		return nil, fmt.Errorf("machine: definition is required")
	}

	m := &Machine{
		def: def,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.reg == nil {
		m.reg = registry.New()
	}
	if m.logger == nil {
		m.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	m.logger = m.logger.With("machine", def.Name())

	bound, err := bind(def, m.reg)
	if err != nil {
		return nil, err
	}
	m.bound = bound

	return m, nil
}

// Definition returns the definition the machine executes.
func (m *Machine) Definition() *definition.Definition {
	return m.def
}

// Start assigns the initial state to an object that has none.
// It fails with *domain.AlreadyStartedError when the state field is already set.
func (m *Machine) Start(ctx context.Context, obj domain.Object) (domain.Object, error) {
	if current, ok := m.def.CurrentState(obj); ok {
		err := &domain.AlreadyStartedError{State: current}
		m.reject(ctx, current, "", err)
		return nil, err
	}

	initial := m.def.InitialState()
	next := m.def.SetObjectState(obj, initial)

	m.logger.Debug("object started", "state", initial)
	m.emit(ctx, m.hooks.OnStart, &domain.TransitionEvent{
		Type: domain.EventStart,
		To:   initial,
	})

	return next, nil
}

// SendEvent applies event to obj and returns the transitioned copy.
//
// It fails with *domain.IllegalTransitionError when the current state has no transition for
// event (which is always the case in a final state), with *domain.GuardRejectedError when a
// guard declines, and with *domain.HookError when a guard or action fails.
func (m *Machine) SendEvent(ctx context.Context, obj domain.Object, event string, payload any) (domain.Object, error) {
	from := m.def.GetObjectState(obj)

	bt, err := m.lookup(from, event)
	if err != nil {
		m.reject(ctx, from, event, err)
		return nil, err
	}

	if err := bt.checkGuards(ctx, obj, payload); err != nil {
		m.reject(ctx, from, event, err)
		return nil, err
	}

	next := m.def.SetObjectState(obj, bt.To)

	if err := bt.runActions(ctx, next, payload); err != nil {
		m.logger.Error("transition action failed", "from", from, "to", bt.To, "event", event, "err", err)
		return nil, err
	}

	m.logger.Debug("transition applied", "from", from, "to", bt.To, "event", event)
	m.emit(ctx, m.hooks.OnTransition, &domain.TransitionEvent{
		Type:  domain.EventTransition,
		From:  from,
		To:    bt.To,
		Event: event,
	})

	return next, nil
}

// AvailableTransitions returns the transitions from the object's current state whose guards
// accept payload. Guard failures are logged and treated as rejections.
func (m *Machine) AvailableTransitions(ctx context.Context, obj domain.Object, payload any) []domain.Transition {
	from := m.def.GetObjectState(obj)
	if m.def.IsFinalState(from) {
		return nil
	}

	var out []domain.Transition
	for _, t := range m.def.TransitionsFrom(from) {
		bt := m.bound[t.From][t.Event]
		if err := bt.checkGuards(ctx, obj, payload); err != nil {
			if domain.IsHookError(err) {
				m.logger.Warn("guard failed while listing transitions", "from", from, "event", t.Event, "err", err)
			}
			continue
		}
		out = append(out, t)
	}
	return out
}

// Can reports whether SendEvent would pass the transition lookup and guards for event.
// Actions are not run.
func (m *Machine) Can(ctx context.Context, obj domain.Object, event string, payload any) bool {
	bt, err := m.lookup(m.def.GetObjectState(obj), event)
	if err != nil {
		return false
	}
	return bt.checkGuards(ctx, obj, payload) == nil
}

// IsInFinalState reports whether the object's current state is final.
func (m *Machine) IsInFinalState(obj domain.Object) bool {
	return m.def.IsFinalState(m.def.GetObjectState(obj))
}

func (m *Machine) lookup(from, event string) (*boundTransition, error) {
	if m.def.IsFinalState(from) {
		return nil, &domain.IllegalTransitionError{State: from, Event: event}
	}
	if _, ok := m.def.FindTransition(from, event); !ok {
		return nil, &domain.IllegalTransitionError{State: from, Event: event}
	}
	return m.bound[from][event], nil
}

func (m *Machine) reject(ctx context.Context, from, event string, err error) {
	m.logger.Debug("event rejected", "state", from, "event", event, "err", err)
	m.emit(ctx, m.hooks.OnReject, &domain.TransitionEvent{
		Type:  domain.EventReject,
		From:  from,
		Event: event,
		Err:   err,
	})
}

func (m *Machine) emit(ctx context.Context, hook func(context.Context, *domain.TransitionEvent), ev *domain.TransitionEvent) {
	if hook == nil {
		return
	}
	ev.Timestamp = m.now()
	ev.Machine = m.def.Name()
	hook(ctx, ev)
}
