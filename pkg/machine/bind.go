package machine

import (
	"context"
	"errors"
	"fmt"

	"github.com/aretw0/fsmtask/pkg/definition"
	"github.com/aretw0/fsmtask/pkg/domain"
	"github.com/aretw0/fsmtask/pkg/params"
	"github.com/aretw0/fsmtask/pkg/registry"
)

type boundGuard struct {
	spec   domain.HookSpec
	params map[string]any
	fn     registry.Guard
}

type boundAction struct {
	spec   domain.HookSpec
	params map[string]any
	fn     registry.Action
}

type boundTransition struct {
	domain.Transition
	guards  []boundGuard
	actions []boundAction
}

// bind resolves every hook of def against reg and reports all failures as a DefinitionError.
func bind(def *definition.Definition, reg *registry.Registry) (map[string]map[string]*boundTransition, error) {
	out := make(map[string]map[string]*boundTransition)
	var errs []error

	for i, t := range def.Transitions() {
		bt := &boundTransition{Transition: t}

		for j, g := range t.Guards {
			fn, err := resolveGuard(reg, g)
			if err != nil {
				errs = append(errs, fmt.Errorf("transition %d guard %d: %w", i, j, err))
				continue
			}
			bt.guards = append(bt.guards, boundGuard{spec: g, params: g.ParamMap(), fn: fn})
		}

		for j, a := range t.Actions {
			entry, ok := reg.Action(a.Name)
			if !ok {
				errs = append(errs, fmt.Errorf("transition %d action %d: %w: %s", i, j, domain.ErrUnknownAction, a.Name))
				continue
			}
			if err := params.Validate(entry.Params, a.ParamMap()); err != nil {
				errs = append(errs, fmt.Errorf("transition %d action %q: %w: %w", i, a.Name, domain.ErrInvalidParams, err))
				continue
			}
			bt.actions = append(bt.actions, boundAction{spec: a, params: a.ParamMap(), fn: entry.Fn})
		}

		if out[t.From] == nil {
			out[t.From] = make(map[string]*boundTransition)
		}
		out[t.From][t.Event] = bt
	}

	if len(errs) > 0 {
		return nil, &domain.DefinitionError{Machine: def.Name(), Err: errors.Join(errs...)}
	}
	return out, nil
}

func resolveGuard(reg *registry.Registry, spec domain.HookSpec) (registry.Guard, error) {
	if spec.Name == "" {
		eval := reg.ExpressionEvaluator()
		if eval == nil {
			return nil, fmt.Errorf("%w: %q", domain.ErrNoExpressionEvaluator, spec.Expression)
		}
		expr := spec.Expression
		return func(ctx context.Context, inv registry.Invocation) (bool, error) {
			return eval(ctx, expr, inv)
		}, nil
	}

	entry, ok := reg.Guard(spec.Name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownGuard, spec.Name)
	}
	if err := params.Validate(entry.Params, spec.ParamMap()); err != nil {
		return nil, fmt.Errorf("guard %q: %w: %w", spec.Name, domain.ErrInvalidParams, err)
	}
	return entry.Fn, nil
}

// checkGuards evaluates guards in order and stops at the first that does not accept.
func (bt *boundTransition) checkGuards(ctx context.Context, obj domain.Object, payload any) error {
	for _, g := range bt.guards {
		inv := bt.invocation(obj, payload, g.params, g.spec.Expression)
		ok, err := safeGuard(ctx, g.fn, inv)
		if err != nil {
			return &domain.HookError{Kind: domain.HookGuard, Name: g.spec.Label(), State: bt.From, Event: bt.Event, Err: err}
		}
		if !ok {
			return &domain.GuardRejectedError{State: bt.From, Event: bt.Event, Guard: g.spec.Label()}
		}
	}
	return nil
}

// runActions executes actions in order against the transitioned object.
func (bt *boundTransition) runActions(ctx context.Context, next domain.Object, payload any) error {
	for _, a := range bt.actions {
		inv := bt.invocation(next, payload, a.params, "")
		if err := safeAction(ctx, a.fn, inv); err != nil {
			return &domain.HookError{Kind: domain.HookAction, Name: a.spec.Name, State: bt.From, Event: bt.Event, Err: err}
		}
	}
	return nil
}

func (bt *boundTransition) invocation(obj domain.Object, payload any, p map[string]any, expr string) registry.Invocation {
	return registry.Invocation{
		Object:     obj.Clone(),
		Event:      bt.Event,
		Payload:    payload,
		From:       bt.From,
		To:         bt.To,
		Params:     p,
		Expression: expr,
	}
}

func safeGuard(ctx context.Context, fn registry.Guard, inv registry.Invocation) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			ok, err = false, fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx, inv)
}

func safeAction(ctx context.Context, fn registry.Action, inv registry.Invocation) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx, inv)
}
