package taskmanager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/fsmtask/internal/logging"
	"github.com/aretw0/fsmtask/pkg/domain"
	"github.com/aretw0/fsmtask/pkg/machine"
	"github.com/aretw0/fsmtask/pkg/ports"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/aretw0/fsmtask/pkg/taskmanager"

// DefaultLockTTL bounds how long a distributed lock outlives a crashed holder.
const DefaultLockTTL = 30 * time.Second

// KeyFunc derives the serialization key of an object.
type KeyFunc func(obj domain.Object) string

// IDKey keys objects by their "id" field.
func IDKey(obj domain.Object) string {
	id, _ := obj.ID(domain.DefaultIDField)
	return id
}

// Manager couples a Machine with search and update functions.
type Manager struct {
	machine *machine.Machine
	search  ports.SearchFunc
	update  ports.UpdateFunc

	keyFunc KeyFunc
	locks   *entityLocks
	locker  ports.DistributedLocker
	lockTTL time.Duration

	workers int
	logger  *slog.Logger
	tracer  trace.Tracer
}

// Option configures the Manager.
type Option func(*Manager)

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithTracerProvider overrides the global OpenTelemetry tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(m *Manager) {
		m.tracer = tp.Tracer(tracerName)
	}
}

// WithEntityLock serializes transitions per key inside this process.
// A nil keyFunc keys objects by id.
func WithEntityLock(keyFunc KeyFunc) Option {
	return func(m *Manager) {
		if keyFunc == nil {
			keyFunc = IDKey
		}
		m.keyFunc = keyFunc
		m.locks = newEntityLocks()
	}
}

// WithDistributedLocker adds a cross-replica lock on top of the entity lock.
// It enables entity locking by id when WithEntityLock was not given.
func WithDistributedLocker(locker ports.DistributedLocker, ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl <= 0 {
			ttl = DefaultLockTTL
		}
		m.locker = locker
		m.lockTTL = ttl
		if m.locks == nil {
			m.keyFunc = IDKey
			m.locks = newEntityLocks()
		}
	}
}

// WithBatchConcurrency sets the worker count used by SendEventBatch (default 8).
func WithBatchConcurrency(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.workers = n
		}
	}
}

// New creates a Manager from plain search and update functions.
func New(m *machine.Machine, search ports.SearchFunc, update ports.UpdateFunc, opts ...Option) (*Manager, error) {
	if m == nil {
		return nil, errors.New("taskmanager: machine is required")
	}
	if search == nil || update == nil {
		return nil, errors.New("taskmanager: search and update are required")
	}

	mgr := &Manager{
		machine: m,
		search:  search,
		update:  update,
		workers: 8,
		logger:  logging.NewNop(),
		tracer:  otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(mgr)
	}
	if mgr.logger == nil {
		mgr.logger = logging.NewNop()
	}
	mgr.logger = mgr.logger.With("machine", m.Definition().Name())
	return mgr, nil
}

// NewWithStore creates a Manager backed by a TaskStore.
func NewWithStore(m *machine.Machine, store ports.TaskStore, opts ...Option) (*Manager, error) {
	if store == nil {
		return nil, errors.New("taskmanager: store is required")
	}
	return New(m, store.Search, store.Update, opts...)
}

// Machine returns the underlying machine.
func (m *Manager) Machine() *machine.Machine {
	return m.machine
}

// Start puts obj in the initial state. It does not touch the store: persisting the
// started object is left to the caller.
func (m *Manager) Start(ctx context.Context, obj domain.Object) (domain.Object, error) {
	return m.machine.Start(ctx, obj)
}

// SendEvent applies event to obj, persists the result through update and returns
// update's result. update is never called when the transition is refused.
func (m *Manager) SendEvent(ctx context.Context, obj domain.Object, event string, payload any) (domain.Object, error) {
	key := ""
	if m.keyFunc != nil {
		key = m.keyFunc(obj)
	}

	var out domain.Object
	err := m.withLock(ctx, key, func(ctx context.Context) error {
		var err error
		out, err = m.transition(ctx, obj, event, payload)
		return err
	})
	return out, err
}

// SendEventTo looks the object up with searchParams and sends event to the first match.
// With entity locking the object is re-read inside the lock, so concurrent callers
// always transition the latest stored version.
func (m *Manager) SendEventTo(ctx context.Context, searchParams map[string]any, event string, payload any) (domain.Object, error) {
	obj, err := m.Find(ctx, searchParams)
	if err != nil {
		return nil, err
	}
	if m.locks == nil {
		return m.transition(ctx, obj, event, payload)
	}

	var out domain.Object
	err = m.withLock(ctx, m.keyFunc(obj), func(ctx context.Context) error {
		fresh, err := m.Find(ctx, searchParams)
		if err != nil {
			return err
		}
		out, err = m.transition(ctx, fresh, event, payload)
		return err
	})
	return out, err
}

func (m *Manager) transition(ctx context.Context, obj domain.Object, event string, payload any) (domain.Object, error) {
	def := m.machine.Definition()
	from := def.GetObjectState(obj)

	ctx, span := m.tracer.Start(ctx, "taskmanager.send_event",
		trace.WithAttributes(
			attribute.String("fsm.machine", def.Name()),
			attribute.String("fsm.event", event),
			attribute.String("fsm.from", from),
		),
	)
	defer span.End()

	fail := func(err error) (domain.Object, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	next, err := m.machine.SendEvent(ctx, obj, event, payload)
	if err != nil {
		return fail(err)
	}
	span.SetAttributes(attribute.String("fsm.to", def.GetObjectState(next)))

	res, err := m.update(ctx, next)
	if err != nil {
		m.logger.Error("failed to persist transition",
			"event", event,
			"from", from,
			"err", err,
		)
		return fail(err)
	}

	m.logger.Debug("transition persisted",
		"event", event,
		"from", from,
		"to", def.GetObjectState(next),
	)
	span.SetStatus(codes.Ok, "")
	return res.Object, nil
}

// List returns every stored object matching searchParams.
func (m *Manager) List(ctx context.Context, searchParams map[string]any) ([]domain.Object, error) {
	return m.search(ctx, domain.SearchRequest{SearchParams: searchParams})
}

// Find returns the first object matching searchParams, or domain.ErrTaskNotFound.
func (m *Manager) Find(ctx context.Context, searchParams map[string]any) (domain.Object, error) {
	found, err := m.List(ctx, searchParams)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, fmt.Errorf("%w: %v", domain.ErrTaskNotFound, searchParams)
	}
	return found[0], nil
}

// AvailableTransitions lists the transitions obj could take right now.
func (m *Manager) AvailableTransitions(ctx context.Context, obj domain.Object, payload any) []domain.Transition {
	return m.machine.AvailableTransitions(ctx, obj, payload)
}
