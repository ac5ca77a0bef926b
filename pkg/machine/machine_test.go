package machine_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/fsmtask/pkg/definition"
	"github.com/aretw0/fsmtask/pkg/domain"
	"github.com/aretw0/fsmtask/pkg/machine"
	"github.com/aretw0/fsmtask/pkg/params"
	"github.com/aretw0/fsmtask/pkg/registry"
	"github.com/neilotoole/slogt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMachine(t *testing.T, opts ...machine.Option) *machine.Machine {
	t.Helper()
	def, err := definition.New(domain.Schema{
		Name:                 "test",
		InitialState:         "init",
		FinalStates:          []string{"finished"},
		ObjectStateFieldName: "status",
		Transitions: []domain.TransitionSpec{
			{From: "init", Event: "finish", To: "finished"},
		},
	})
	require.NoError(t, err)

	opts = append([]machine.Option{machine.WithLogger(slogt.New(t))}, opts...)
	m, err := machine.New(def, opts...)
	require.NoError(t, err)
	return m
}

func TestStart(t *testing.T) {
	m := newTestMachine(t)
	ctx := context.Background()

	t.Run("empty state field", func(t *testing.T) {
		obj := domain.Object{"status": ""}
		started, err := m.Start(ctx, obj)
		require.NoError(t, err)
		assert.Equal(t, "init", started["status"])
		assert.Equal(t, "", obj["status"], "input must not be mutated")
	})

	t.Run("absent state field", func(t *testing.T) {
		started, err := m.Start(ctx, domain.Object{"id": "t-1"})
		require.NoError(t, err)
		assert.Equal(t, "init", started["status"])
		assert.Equal(t, "t-1", started["id"])
	})

	t.Run("already started", func(t *testing.T) {
		_, err := m.Start(ctx, domain.Object{"status": "init"})
		var started *domain.AlreadyStartedError
		require.ErrorAs(t, err, &started)
		assert.Equal(t, "init", started.State)
	})

	t.Run("non-string state", func(t *testing.T) {
		obj := domain.Object{"status": float64(3)}
		_, err := m.Start(ctx, obj)
		var started *domain.AlreadyStartedError
		require.ErrorAs(t, err, &started)
		assert.Equal(t, "3", started.State)
		assert.Equal(t, float64(3), obj["status"])
	})
}

func TestSendEvent_Scenario(t *testing.T) {
	m := newTestMachine(t)
	ctx := context.Background()

	started, err := m.Start(ctx, domain.Object{"status": ""})
	require.NoError(t, err)

	finished, err := m.SendEvent(ctx, started, "finish", nil)
	require.NoError(t, err)
	assert.Equal(t, "finished", finished["status"])
	assert.Equal(t, "init", started["status"])

	again, err := m.SendEvent(ctx, started, "finish", nil)
	require.NoError(t, err)
	assert.Equal(t, finished, again, "same input yields the same output")

	_, err = m.SendEvent(ctx, finished, "finish", nil)
	assert.True(t, domain.IsIllegalTransitionError(err), "re-sending after a transition is not deduplicated")
}

func TestSendEvent_FinalStateRejectsEverything(t *testing.T) {
	m := newTestMachine(t)
	obj := domain.Object{"status": "finished"}

	for _, event := range []string{"finish", "start", "reopen", ""} {
		_, err := m.SendEvent(context.Background(), obj, event, nil)
		var illegal *domain.IllegalTransitionError
		require.ErrorAs(t, err, &illegal, "event %q", event)
		assert.Equal(t, "finished", illegal.State)
		assert.Equal(t, event, illegal.Event)
	}
	assert.Equal(t, domain.Object{"status": "finished"}, obj)
	assert.True(t, m.IsInFinalState(obj))
}

func TestSendEvent_UnknownEvent(t *testing.T) {
	m := newTestMachine(t)
	obj := domain.Object{"status": "init", "note": "keep"}

	_, err := m.SendEvent(context.Background(), obj, "explode", nil)
	assert.True(t, domain.IsIllegalTransitionError(err))
	assert.Equal(t, domain.Object{"status": "init", "note": "keep"}, obj)
}

func guardedDefinition(t *testing.T) *definition.Definition {
	t.Helper()
	def, err := definition.New(domain.Schema{
		Name:         "order",
		InitialState: "new",
		FinalStates:  []string{"shipped"},
		Transitions: []domain.TransitionSpec{
			{
				From: "new", Event: "pay", To: "paid",
				Guard:  &domain.HookSpec{Name: "minTotal", Params: []domain.Param{{Name: "amount", Value: 10}}},
				Action: &domain.HookSpec{Name: "record"},
			},
			{From: "paid", Event: "ship", To: "shipped", Guard: &domain.HookSpec{Expression: "payload == 'ok'"}},
		},
	})
	require.NoError(t, err)
	return def
}

func guardedRegistry(recorded *[]registry.Invocation) *registry.Registry {
	reg := registry.New()
	reg.RegisterGuard("minTotal", func(_ context.Context, inv registry.Invocation) (bool, error) {
		total, _ := inv.Object["total"].(int)
		return total >= inv.Params["amount"].(int), nil
	}, registry.WithParams(params.Schema{"amount": params.Required(params.Integer())}))
	reg.RegisterAction("record", func(_ context.Context, inv registry.Invocation) error {
		*recorded = append(*recorded, inv)
		return nil
	})
	reg.SetExpressionEvaluator(func(_ context.Context, expr string, inv registry.Invocation) (bool, error) {
		return expr == "payload == 'ok'" && inv.Payload == "ok", nil
	})
	return reg
}

func TestSendEvent_Guards(t *testing.T) {
	var recorded []registry.Invocation
	m, err := machine.New(guardedDefinition(t), machine.WithRegistry(guardedRegistry(&recorded)))
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("guard rejects", func(t *testing.T) {
		_, err := m.SendEvent(ctx, domain.Object{"status": "new", "total": 5}, "pay", nil)
		var rejected *domain.GuardRejectedError
		require.ErrorAs(t, err, &rejected)
		assert.Equal(t, "minTotal", rejected.Guard)
		assert.False(t, domain.IsIllegalTransitionError(err))
		assert.Empty(t, recorded, "actions must not run when a guard rejects")
	})

	t.Run("guard accepts and action runs on the new object", func(t *testing.T) {
		next, err := m.SendEvent(ctx, domain.Object{"status": "new", "total": 20}, "pay", "card")
		require.NoError(t, err)
		assert.Equal(t, "paid", next["status"])

		require.Len(t, recorded, 1)
		assert.Equal(t, "paid", recorded[0].Object["status"])
		assert.Equal(t, "card", recorded[0].Payload)
		assert.Equal(t, "new", recorded[0].From)
		assert.Equal(t, "pay", recorded[0].Event)
	})

	t.Run("expression guard", func(t *testing.T) {
		_, err := m.SendEvent(ctx, domain.Object{"status": "paid"}, "ship", "nope")
		assert.True(t, domain.IsGuardRejectedError(err))

		next, err := m.SendEvent(ctx, domain.Object{"status": "paid"}, "ship", "ok")
		require.NoError(t, err)
		assert.True(t, m.IsInFinalState(next))
	})
}

func TestSendEvent_HookFailures(t *testing.T) {
	def, err := definition.New(domain.Schema{
		Name:         "hooks",
		InitialState: "a",
		Transitions: []domain.TransitionSpec{
			{From: "a", Event: "guard-err", To: "b", Guard: &domain.HookSpec{Name: "broken"}},
			{From: "a", Event: "guard-panic", To: "b", Guard: &domain.HookSpec{Name: "panics"}},
			{From: "a", Event: "action-err", To: "b", Action: &domain.HookSpec{Name: "fails"}},
		},
	})
	require.NoError(t, err)

	cause := errors.New("backend unavailable")
	reg := registry.New()
	reg.RegisterGuard("broken", func(context.Context, registry.Invocation) (bool, error) { return false, cause })
	reg.RegisterGuard("panics", func(context.Context, registry.Invocation) (bool, error) { panic("boom") })
	reg.RegisterAction("fails", func(context.Context, registry.Invocation) error { return cause })

	m, err := machine.New(def, machine.WithRegistry(reg))
	require.NoError(t, err)
	obj := domain.Object{"status": "a"}

	_, err = m.SendEvent(context.Background(), obj, "guard-err", nil)
	assert.ErrorIs(t, err, cause)
	assert.True(t, domain.IsHookError(err))

	_, err = m.SendEvent(context.Background(), obj, "guard-panic", nil)
	var hookErr *domain.HookError
	require.ErrorAs(t, err, &hookErr)
	assert.Equal(t, domain.HookGuard, hookErr.Kind)
	assert.Contains(t, err.Error(), "boom")

	_, err = m.SendEvent(context.Background(), obj, "action-err", nil)
	require.ErrorAs(t, err, &hookErr)
	assert.Equal(t, domain.HookAction, hookErr.Kind)
	assert.Equal(t, "a", obj["status"])
}

func TestNew_ResolvesHooksUpFront(t *testing.T) {
	def := guardedDefinition(t)

	_, err := machine.New(def)
	require.Error(t, err)
	assert.True(t, domain.IsDefinitionError(err))
	assert.ErrorIs(t, err, domain.ErrUnknownGuard)
	assert.ErrorIs(t, err, domain.ErrUnknownAction)
	assert.ErrorIs(t, err, domain.ErrNoExpressionEvaluator)

	reg := registry.New()
	reg.RegisterGuard("minTotal", func(context.Context, registry.Invocation) (bool, error) { return true, nil },
		registry.WithParams(params.Schema{"amount": params.Required(params.String())}))
	reg.RegisterAction("record", func(context.Context, registry.Invocation) error { return nil })
	reg.SetExpressionEvaluator(func(context.Context, string, registry.Invocation) (bool, error) { return true, nil })

	_, err = machine.New(def, machine.WithRegistry(reg))
	assert.ErrorIs(t, err, domain.ErrInvalidParams)
}

func TestAvailableTransitionsAndCan(t *testing.T) {
	var recorded []registry.Invocation
	m, err := machine.New(guardedDefinition(t), machine.WithRegistry(guardedRegistry(&recorded)))
	require.NoError(t, err)
	ctx := context.Background()

	poor := domain.Object{"status": "new", "total": 1}
	rich := domain.Object{"status": "new", "total": 100}

	assert.Empty(t, m.AvailableTransitions(ctx, poor, nil))
	avail := m.AvailableTransitions(ctx, rich, nil)
	require.Len(t, avail, 1)
	assert.Equal(t, "paid", avail[0].To)

	assert.False(t, m.Can(ctx, poor, "pay", nil))
	assert.True(t, m.Can(ctx, rich, "pay", nil))
	assert.False(t, m.Can(ctx, rich, "ship", nil))
	assert.Empty(t, recorded, "Can and AvailableTransitions never run actions")
}

func TestLifecycleHooks(t *testing.T) {
	var events []domain.TransitionEvent
	record := func(_ context.Context, ev *domain.TransitionEvent) { events = append(events, *ev) }

	m := newTestMachine(t, machine.WithLifecycleHooks(domain.LifecycleHooks{
		OnStart:      record,
		OnTransition: record,
		OnReject:     record,
	}))
	ctx := context.Background()

	started, err := m.Start(ctx, domain.Object{})
	require.NoError(t, err)
	finished, err := m.SendEvent(ctx, started, "finish", nil)
	require.NoError(t, err)
	_, _ = m.SendEvent(ctx, finished, "finish", nil)

	require.Len(t, events, 3)
	assert.Equal(t, domain.EventStart, events[0].Type)
	assert.Equal(t, "init", events[0].To)
	assert.Equal(t, domain.EventTransition, events[1].Type)
	assert.Equal(t, "init", events[1].From)
	assert.Equal(t, "finished", events[1].To)
	assert.Equal(t, domain.EventReject, events[2].Type)
	assert.True(t, domain.IsIllegalTransitionError(events[2].Err))
	assert.Equal(t, "test", events[2].Machine)
	assert.False(t, events[2].Timestamp.IsZero())
}
