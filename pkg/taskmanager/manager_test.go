package taskmanager_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/fsmtask/pkg/adapters/memory"
	"github.com/aretw0/fsmtask/pkg/definition"
	"github.com/aretw0/fsmtask/pkg/domain"
	"github.com/aretw0/fsmtask/pkg/machine"
	"github.com/aretw0/fsmtask/pkg/ports"
	"github.com/aretw0/fsmtask/pkg/registry"
	"github.com/aretw0/fsmtask/pkg/taskmanager"
	"github.com/neilotoole/slogt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMachine(t *testing.T, reg *registry.Registry) *machine.Machine {
	t.Helper()
	def, err := definition.New(domain.Schema{
		Name:                 "test",
		InitialState:         "init",
		FinalStates:          []string{"finished"},
		ObjectStateFieldName: "status",
		Transitions: []domain.TransitionSpec{
			{From: "init", Event: "finish", To: "finished"},
			{From: "init", Event: "review", To: "reviewed", Guard: &domain.HookSpec{Name: "approved"}},
			{From: "reviewed", Event: "finish", To: "finished"},
		},
	})
	require.NoError(t, err)

	if reg == nil {
		reg = registry.New()
	}
	if _, ok := reg.Guard("approved"); !ok {
		reg.RegisterGuard("approved", func(ctx context.Context, inv registry.Invocation) (bool, error) {
			return inv.Object["approved"] == true, nil
		})
	}

	m, err := machine.New(def, machine.WithRegistry(reg), machine.WithLogger(slogt.New(t)))
	require.NoError(t, err)
	return m
}

// recorder is a search/update pair that counts calls.
type recorder struct {
	searches atomic.Int32
	updates  atomic.Int32
	updated  []domain.Object
	mu       sync.Mutex
	err      error
}

func (r *recorder) search(ctx context.Context, req domain.SearchRequest) ([]domain.Object, error) {
	r.searches.Add(1)
	return []domain.Object{{"id": "t-1", "status": "init"}}, nil
}

func (r *recorder) update(ctx context.Context, obj domain.Object) (domain.UpdateResult, error) {
	r.updates.Add(1)
	if r.err != nil {
		return domain.UpdateResult{}, r.err
	}
	r.mu.Lock()
	r.updated = append(r.updated, obj)
	r.mu.Unlock()

	stored := obj.Clone()
	stored["version"] = 2
	return domain.UpdateResult{Object: stored}, nil
}

func newManager(t *testing.T, rec *recorder, opts ...taskmanager.Option) *taskmanager.Manager {
	t.Helper()
	opts = append([]taskmanager.Option{taskmanager.WithLogger(slogt.New(t))}, opts...)
	mgr, err := taskmanager.New(newMachine(t, nil), rec.search, rec.update, opts...)
	require.NoError(t, err)
	return mgr
}

func TestNew_RequiresDependencies(t *testing.T) {
	m := newMachine(t, nil)
	rec := &recorder{}

	_, err := taskmanager.New(nil, rec.search, rec.update)
	assert.Error(t, err)
	_, err = taskmanager.New(m, nil, rec.update)
	assert.Error(t, err)
	_, err = taskmanager.New(m, rec.search, nil)
	assert.Error(t, err)
	_, err = taskmanager.NewWithStore(m, nil)
	assert.Error(t, err)
}

func TestStart_DoesNotPersist(t *testing.T) {
	rec := &recorder{}
	mgr := newManager(t, rec)
	ctx := context.Background()

	started, err := mgr.Start(ctx, domain.Object{"id": "t-1"})
	require.NoError(t, err)
	assert.Equal(t, "init", started["status"])

	assert.Zero(t, rec.searches.Load(), "Start must not search")
	assert.Zero(t, rec.updates.Load(), "Start must not update")

	_, err = mgr.Start(ctx, started)
	assert.True(t, domain.IsAlreadyStartedError(err))
}

func TestSendEvent_ReturnsUpdateResult(t *testing.T) {
	rec := &recorder{}
	mgr := newManager(t, rec)

	out, err := mgr.SendEvent(context.Background(), domain.Object{"id": "t-1", "status": "init"}, "finish", nil)
	require.NoError(t, err)

	assert.Equal(t, "finished", out["status"])
	assert.Equal(t, 2, out["version"], "result comes from update, not the local copy")
	require.Len(t, rec.updated, 1)
	assert.Equal(t, "finished", rec.updated[0]["status"])
	assert.Zero(t, rec.searches.Load())
}

func TestSendEvent_RefusedTransitionsSkipUpdate(t *testing.T) {
	rec := &recorder{}
	mgr := newManager(t, rec)
	ctx := context.Background()

	tests := []struct {
		name  string
		obj   domain.Object
		event string
		check func(error) bool
	}{
		{"unknown event", domain.Object{"id": "1", "status": "init"}, "explode", domain.IsIllegalTransitionError},
		{"final state", domain.Object{"id": "1", "status": "finished"}, "finish", domain.IsIllegalTransitionError},
		{"guard rejects", domain.Object{"id": "1", "status": "init", "approved": false}, "review", domain.IsGuardRejectedError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := mgr.SendEvent(ctx, tt.obj, tt.event, nil)
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error: %v", err)
			assert.Nil(t, out)
		})
	}
	assert.Zero(t, rec.updates.Load())
}

func TestSendEvent_StorageErrorPropagates(t *testing.T) {
	errDown := errors.New("store is down")
	rec := &recorder{err: errDown}
	mgr := newManager(t, rec)

	_, err := mgr.SendEvent(context.Background(), domain.Object{"id": "t-1", "status": "init"}, "finish", nil)
	assert.ErrorIs(t, err, errDown)
	assert.Equal(t, int32(1), rec.updates.Load())
}

func TestManager_WithStore(t *testing.T) {
	store := memory.NewStore()
	mgr, err := taskmanager.NewWithStore(newMachine(t, nil), store, taskmanager.WithLogger(slogt.New(t)))
	require.NoError(t, err)
	ctx := context.Background()

	started, err := mgr.Start(ctx, domain.Object{"id": "t-1", "approved": true})
	require.NoError(t, err)
	_, err = store.Update(ctx, started)
	require.NoError(t, err)

	t.Run("list and find", func(t *testing.T) {
		all, err := mgr.List(ctx, nil)
		require.NoError(t, err)
		assert.Len(t, all, 1)

		_, err = mgr.Find(ctx, map[string]any{"id": "missing"})
		assert.ErrorIs(t, err, domain.ErrTaskNotFound)
	})

	t.Run("available transitions", func(t *testing.T) {
		obj, err := mgr.Find(ctx, map[string]any{"id": "t-1"})
		require.NoError(t, err)

		var events []string
		for _, tr := range mgr.AvailableTransitions(ctx, obj, nil) {
			events = append(events, tr.Event)
		}
		assert.ElementsMatch(t, []string{"finish", "review"}, events)
	})

	t.Run("send event to", func(t *testing.T) {
		out, err := mgr.SendEventTo(ctx, map[string]any{"id": "t-1"}, "review", nil)
		require.NoError(t, err)
		assert.Equal(t, "reviewed", out["status"])

		stored, err := mgr.Find(ctx, map[string]any{"id": "t-1"})
		require.NoError(t, err)
		assert.Equal(t, "reviewed", stored["status"])

		_, err = mgr.SendEventTo(ctx, map[string]any{"id": "nope"}, "finish", nil)
		assert.ErrorIs(t, err, domain.ErrTaskNotFound)
	})
}

func TestSendEventTo_EntityLockSerializes(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	var actions atomic.Int32
	reg := registry.New()
	reg.RegisterAction("count", func(ctx context.Context, inv registry.Invocation) error {
		actions.Add(1)
		return nil
	})
	def, err := definition.New(domain.Schema{
		Name:         "once",
		InitialState: "a",
		FinalStates:  []string{"b"},
		Transitions:  []domain.TransitionSpec{{From: "a", Event: "go", To: "b", Action: &domain.HookSpec{Name: "count"}}},
	})
	require.NoError(t, err)
	m, err := machine.New(def, machine.WithRegistry(reg))
	require.NoError(t, err)

	mgr, err := taskmanager.NewWithStore(m, store, taskmanager.WithEntityLock(nil))
	require.NoError(t, err)

	_, err = store.Update(ctx, domain.Object{"id": "shared", "status": "a"})
	require.NoError(t, err)

	const callers = 20
	var wg sync.WaitGroup
	var ok, illegal atomic.Int32
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := mgr.SendEventTo(ctx, map[string]any{"id": "shared"}, "go", nil)
			switch {
			case err == nil:
				ok.Add(1)
			case domain.IsIllegalTransitionError(err):
				illegal.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), ok.Load(), "exactly one caller wins")
	assert.Equal(t, int32(callers-1), illegal.Load())
	assert.Equal(t, int32(1), actions.Load())
}

func TestSendEvent_EntityLockRequiresKey(t *testing.T) {
	rec := &recorder{}
	mgr := newManager(t, rec, taskmanager.WithEntityLock(nil))

	_, err := mgr.SendEvent(context.Background(), domain.Object{"status": "init"}, "finish", nil)
	assert.Error(t, err)
	assert.Zero(t, rec.updates.Load())
}

// fakeLocker records lock calls.
type fakeLocker struct {
	mu     sync.Mutex
	locked []string
	ttls   []time.Duration
	freed  int
	err    error
}

func (f *fakeLocker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.locked = append(f.locked, key)
	f.ttls = append(f.ttls, ttl)
	return func(ctx context.Context) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.freed++
		return nil
	}, nil
}

func TestSendEvent_DistributedLocker(t *testing.T) {
	t.Run("locks by id with default ttl", func(t *testing.T) {
		locker := &fakeLocker{}
		mgr := newManager(t, &recorder{}, taskmanager.WithDistributedLocker(locker, 0))

		_, err := mgr.SendEvent(context.Background(), domain.Object{"id": "t-9", "status": "init"}, "finish", nil)
		require.NoError(t, err)

		assert.Equal(t, []string{"t-9"}, locker.locked)
		assert.Equal(t, []time.Duration{taskmanager.DefaultLockTTL}, locker.ttls)
		assert.Equal(t, 1, locker.freed)
	})

	t.Run("custom key", func(t *testing.T) {
		locker := &fakeLocker{}
		mgr := newManager(t, &recorder{},
			taskmanager.WithEntityLock(func(obj domain.Object) string { return "tenant:" + obj.String("tenant") }),
			taskmanager.WithDistributedLocker(locker, time.Second),
		)

		_, err := mgr.SendEvent(context.Background(), domain.Object{"id": "t-1", "tenant": "acme", "status": "init"}, "finish", nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"tenant:acme"}, locker.locked)
	})

	t.Run("lock failure skips the transition", func(t *testing.T) {
		rec := &recorder{}
		locker := &fakeLocker{err: errors.New("redis unavailable")}
		mgr := newManager(t, rec, taskmanager.WithDistributedLocker(locker, time.Second))

		_, err := mgr.SendEvent(context.Background(), domain.Object{"id": "t-1", "status": "init"}, "finish", nil)
		assert.ErrorContains(t, err, "redis unavailable")
		assert.Zero(t, rec.updates.Load())
	})
}

func TestSendEventBatch(t *testing.T) {
	store := memory.NewStore()
	mgr, err := taskmanager.NewWithStore(newMachine(t, nil), store, taskmanager.WithBatchConcurrency(4))
	require.NoError(t, err)
	ctx := context.Background()

	var reqs []taskmanager.EventRequest
	for i := range 10 {
		reqs = append(reqs, taskmanager.EventRequest{
			Object: domain.Object{"id": fmt.Sprintf("t-%02d", i), "status": "init"},
			Event:  "finish",
		})
	}
	reqs[3].Event = "explode"

	results := mgr.SendEventBatch(ctx, reqs)
	require.Len(t, results, len(reqs))

	for i, res := range results {
		if i == 3 {
			assert.True(t, domain.IsIllegalTransitionError(res.Err))
			continue
		}
		require.NoError(t, res.Err)
		assert.Equal(t, reqs[i].Object["id"], res.Object["id"], "results keep request order")
		assert.Equal(t, "finished", res.Object["status"])
	}
	assert.Equal(t, 9, store.Len())

	assert.Empty(t, mgr.SendEventBatch(ctx, nil))
}

func TestSendEventBatch_CancelledContext(t *testing.T) {
	rec := &recorder{}
	mgr := newManager(t, rec)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := mgr.SendEventBatch(ctx, []taskmanager.EventRequest{
		{Object: domain.Object{"id": "1", "status": "init"}, Event: "finish"},
	})
	assert.ErrorIs(t, results[0].Err, context.Canceled)
	assert.Zero(t, rec.updates.Load())
}
