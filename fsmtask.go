package fsmtask

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aretw0/fsmtask/internal/logging"
	"github.com/aretw0/fsmtask/internal/presentation/graph"
	"github.com/aretw0/fsmtask/internal/presentation/tui"
	loamAdapter "github.com/aretw0/fsmtask/pkg/adapters/loam"
	"github.com/aretw0/fsmtask/pkg/adapters/memory"
	"github.com/aretw0/fsmtask/pkg/adapters/process"
	"github.com/aretw0/fsmtask/pkg/definition"
	"github.com/aretw0/fsmtask/pkg/domain"
	"github.com/aretw0/fsmtask/pkg/machine"
	"github.com/aretw0/fsmtask/pkg/observability"
	"github.com/aretw0/fsmtask/pkg/persistence/middleware"
	"github.com/aretw0/fsmtask/pkg/ports"
	"github.com/aretw0/fsmtask/pkg/registry"
	"github.com/aretw0/fsmtask/pkg/taskmanager"
	"github.com/prometheus/client_golang/prometheus"
)

// Version is the release version, overridden at build time with -ldflags.
var Version = "0.1.0-dev"

// ErrAmbiguousMachine is returned when a repository holds several machines and none was named.
var ErrAmbiguousMachine = errors.New("repository holds several machines, pick one with WithMachineName")

// describer is implemented by loaders that keep prose next to each schema.
type describer interface {
	Describe(ctx context.Context, name string) (string, error)
}

// Engine bundles a machine definition with the registry, store and task manager that drive it.
// It is the entry point used by the CLI, the HTTP API and the MCP server.
type Engine struct {
	def         *definition.Definition
	description string
	registry    *registry.Registry
	machine     *machine.Machine
	manager     *taskmanager.Manager
	store       ports.TaskStore
	metrics     *observability.Metrics
	gatherer    prometheus.Gatherer
	logger      *slog.Logger

	loader      ports.DefinitionLoader
	machineName string
	idField     string
	hooksPath   string
	hooks       domain.LifecycleHooks
	metricsReg  *prometheus.Registry
	managerOpts []taskmanager.Option
	storeMws    []middleware.Middleware
	encryption  *middleware.EncryptionConfig
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithLoader injects a DefinitionLoader, bypassing file and Loam resolution of the source.
func WithLoader(l ports.DefinitionLoader) Option {
	return func(e *Engine) {
		e.loader = l
	}
}

// WithMachineName selects a machine inside a repository holding several.
func WithMachineName(name string) Option {
	return func(e *Engine) {
		e.machineName = name
	}
}

// WithIDField sets the object field Create uses to detect tasks that are already stored.
// Defaults to "id".
func WithIDField(field string) Option {
	return func(e *Engine) {
		e.idField = field
	}
}

// WithRegistry sets the registry used to resolve guards and actions.
func WithRegistry(reg *registry.Registry) Option {
	return func(e *Engine) {
		e.registry = reg
	}
}

// WithHooksFile registers the external process guards and actions listed in path.
// A missing file registers nothing.
func WithHooksFile(path string) Option {
	return func(e *Engine) {
		e.hooksPath = path
	}
}

// WithLifecycleHooks registers observability hooks in addition to the built-in logging.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithStore sets the task store. The default is an in-memory store.
func WithStore(store ports.TaskStore) Option {
	return func(e *Engine) {
		e.store = store
	}
}

// WithStoreMiddleware wraps the store. The first middleware is the outermost.
func WithStoreMiddleware(mws ...middleware.Middleware) Option {
	return func(e *Engine) {
		e.storeMws = append(e.storeMws, mws...)
	}
}

// WithEncryption encrypts stored objects with AES-GCM. Unset IDField and StateField are taken
// from the engine, so the machine's state field stays searchable.
func WithEncryption(cfg middleware.EncryptionConfig) Option {
	return func(e *Engine) {
		e.encryption = &cfg
	}
}

// WithMetricsRegistry enables Prometheus metrics registered on reg.
func WithMetricsRegistry(reg *prometheus.Registry) Option {
	return func(e *Engine) {
		e.metricsReg = reg
	}
}

// WithManagerOptions forwards options to the underlying task manager.
func WithManagerOptions(opts ...taskmanager.Option) Option {
	return func(e *Engine) {
		e.managerOpts = append(e.managerOpts, opts...)
	}
}

// New builds an Engine. source is either a schema file (.yaml, .yml, .json) or a Loam
// directory of machine documents. When WithLoader is given, source names the machine instead.
func New(source string, opts ...Option) (*Engine, error) {
	e := &Engine{idField: domain.DefaultIDField}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = logging.NewNop()
	}

	def, description, err := loadDefinition(context.Background(), e.loader, source, e.machineName)
	if err != nil {
		return nil, err
	}
	e.def = def
	e.description = description
	e.logger = e.logger.With("machine", e.def.Name())

	if e.registry == nil {
		e.registry = registry.New()
	}
	if e.hooksPath != "" {
		if err := e.registerProcessHooks(); err != nil {
			return nil, err
		}
	}

	hooks := []domain.LifecycleHooks{observability.LoggingHooks(e.logger), e.hooks}
	if e.metricsReg != nil {
		e.metrics = observability.NewMetrics(e.metricsReg)
		e.gatherer = e.metricsReg
		hooks = append(hooks, e.metrics.Hooks())
	}

	m, err := machine.New(e.def,
		machine.WithRegistry(e.registry),
		machine.WithLogger(e.logger),
		machine.WithLifecycleHooks(domain.CombineHooks(hooks...)),
	)
	if err != nil {
		return nil, err
	}
	e.machine = m

	if e.store == nil {
		e.store = memory.NewStore()
	}
	mws := append([]middleware.Middleware{}, e.storeMws...)
	if e.encryption != nil {
		cfg := *e.encryption
		if cfg.IDField == "" {
			cfg.IDField = e.idField
		}
		if cfg.StateField == "" {
			cfg.StateField = e.def.ObjectStateFieldName()
		}
		enc, err := middleware.NewEncryptionMiddleware(cfg)
		if err != nil {
			return nil, err
		}
		mws = append(mws, enc)
	}
	if e.metrics != nil {
		mws = append(mws, middleware.NewMetricsMiddleware(e.metrics))
	}
	mws = append(mws, middleware.NewLoggingMiddleware(e.logger))
	e.store = middleware.Chain(e.store, mws...)

	managerOpts := append([]taskmanager.Option{taskmanager.WithLogger(e.logger)}, e.managerOpts...)
	e.manager, err = taskmanager.NewWithStore(m, e.store, managerOpts...)
	if err != nil {
		return nil, err
	}

	return e, nil
}

// LoadDefinition resolves source the way New does without building a machine, so schemas whose
// guards are not registered can still be inspected. It also returns the prose stored next to the
// schema, if any.
func LoadDefinition(ctx context.Context, source, machineName string) (*definition.Definition, string, error) {
	return loadDefinition(ctx, nil, source, machineName)
}

func loadDefinition(ctx context.Context, loader ports.DefinitionLoader, source, name string) (*definition.Definition, string, error) {
	if loader == nil {
		if source == "" {
			return nil, "", fmt.Errorf("source is required when no custom loader is provided")
		}
		info, err := os.Stat(source)
		if err != nil {
			return nil, "", fmt.Errorf("invalid source: %w", err)
		}
		if !info.IsDir() {
			def, err := definition.LoadFile(source)
			return def, "", err
		}
		l, err := loamAdapter.Open(source)
		if err != nil {
			return nil, "", err
		}
		loader = l
		source = ""
	}

	if name == "" {
		name = source
	}
	if name == "" {
		names, err := loader.List(ctx)
		if err != nil {
			return nil, "", fmt.Errorf("failed to list machines: %w", err)
		}
		switch len(names) {
		case 0:
			return nil, "", fmt.Errorf("%w: repository is empty", domain.ErrDefinitionNotFound)
		case 1:
			name = names[0]
		default:
			return nil, "", fmt.Errorf("%w: %v", ErrAmbiguousMachine, names)
		}
	}

	schema, err := loader.Load(ctx, name)
	if err != nil {
		return nil, "", err
	}
	def, err := definition.New(schema)
	if err != nil {
		return nil, "", err
	}

	var description string
	if d, ok := loader.(describer); ok {
		if desc, err := d.Describe(ctx, name); err == nil {
			description = desc
		}
	}
	return def, description, nil
}

func (e *Engine) registerProcessHooks() error {
	cfg, err := process.LoadHooks(e.hooksPath)
	if err != nil {
		return err
	}
	runner := process.NewRunner(
		process.WithBaseDir(filepath.Dir(e.hooksPath)),
		process.WithLogger(e.logger),
	)
	if err := runner.Register(e.registry, cfg); err != nil {
		return fmt.Errorf("failed to register hooks from %s: %w", e.hooksPath, err)
	}
	return nil
}

// Name returns the machine name.
func (e *Engine) Name() string { return e.def.Name() }

// Definition returns the validated machine definition.
func (e *Engine) Definition() *definition.Definition { return e.def }

// Machine returns the underlying machine.
func (e *Engine) Machine() *machine.Machine { return e.machine }

// Manager returns the task manager bound to the engine's store.
func (e *Engine) Manager() *taskmanager.Manager { return e.manager }

// Store returns the task store, wrapped in the configured middleware.
func (e *Engine) Store() ports.TaskStore { return e.store }

// Registry returns the guard and action registry.
func (e *Engine) Registry() *registry.Registry { return e.registry }

// Metrics returns the metrics collectors, or nil when metrics are disabled.
func (e *Engine) Metrics() *observability.Metrics { return e.metrics }

// Gatherer returns the metrics registry, or nil when metrics are disabled.
func (e *Engine) Gatherer() prometheus.Gatherer { return e.gatherer }

// Start assigns the initial state to obj. Like the task manager it never persists.
func (e *Engine) Start(ctx context.Context, obj domain.Object) (domain.Object, error) {
	return e.manager.Start(ctx, obj)
}

// Create starts obj and saves it. This is the explicit save Start leaves to the caller.
// Stores upsert, so when obj carries an id that is already stored Create refuses with
// *domain.AlreadyStartedError holding the stored state instead of resetting the task.
func (e *Engine) Create(ctx context.Context, obj domain.Object) (domain.Object, error) {
	if _, ok := obj.ID(e.idField); ok {
		existing, err := e.manager.Find(ctx, map[string]any{e.idField: obj[e.idField]})
		switch {
		case err == nil:
			state, _ := e.def.CurrentState(existing)
			return nil, &domain.AlreadyStartedError{State: state}
		case !errors.Is(err, domain.ErrTaskNotFound):
			return nil, err
		}
	}

	started, err := e.manager.Start(ctx, obj)
	if err != nil {
		return nil, err
	}
	res, err := e.store.Update(ctx, started)
	if err != nil {
		return nil, err
	}
	return res.Object, nil
}

// SendEvent transitions obj and persists the result.
func (e *Engine) SendEvent(ctx context.Context, obj domain.Object, event string, payload any) (domain.Object, error) {
	return e.manager.SendEvent(ctx, obj, event, payload)
}

// SendEventTo loads the object matching searchParams, transitions it and persists the result.
func (e *Engine) SendEventTo(ctx context.Context, searchParams map[string]any, event string, payload any) (domain.Object, error) {
	return e.manager.SendEventTo(ctx, searchParams, event, payload)
}

// List returns the stored objects matching searchParams.
func (e *Engine) List(ctx context.Context, searchParams map[string]any) ([]domain.Object, error) {
	return e.manager.List(ctx, searchParams)
}

// Find returns the first stored object matching searchParams.
func (e *Engine) Find(ctx context.Context, searchParams map[string]any) (domain.Object, error) {
	return e.manager.Find(ctx, searchParams)
}

// AvailableTransitions lists the transitions obj could take with payload.
func (e *Engine) AvailableTransitions(ctx context.Context, obj domain.Object, payload any) []domain.Transition {
	return e.manager.AvailableTransitions(ctx, obj, payload)
}

// Graph renders the machine as a Mermaid state diagram, highlighting current when set.
func (e *Engine) Graph(current string) string {
	var overlay *graph.GraphOverlay
	if current != "" {
		overlay = &graph.GraphOverlay{CurrentState: current}
	}
	return graph.GenerateMermaid(e.def, overlay)
}

// Describe renders the machine as Markdown: the repository prose followed by states and transitions.
func (e *Engine) Describe() string {
	return tui.DescribeDefinition(e.def, e.description)
}
