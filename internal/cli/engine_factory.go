package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aretw0/fsmtask"
	"github.com/aretw0/fsmtask/internal/config"
	"github.com/aretw0/fsmtask/internal/logging"
	"github.com/aretw0/fsmtask/pkg/taskmanager"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// EngineOptions selects the machine an engine runs.
type EngineOptions struct {
	// Source is a schema file or a Loam directory.
	Source string
	// Machine picks one machine in a directory holding several.
	Machine string
}

// CreateEngine opens the configured store and builds an engine on top of it.
// The caller must Close the returned backend.
func CreateEngine(ctx context.Context, opts EngineOptions, cfg config.Config, logger *slog.Logger) (*fsmtask.Engine, *Backend, error) {
	backend, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	engineOpts := []fsmtask.Option{
		fsmtask.WithLogger(logger),
		fsmtask.WithStore(backend.Store),
		fsmtask.WithMachineName(opts.Machine),
		fsmtask.WithIDField(cfg.IDField),
	}
	if cfg.HooksPath != "" {
		engineOpts = append(engineOpts, fsmtask.WithHooksFile(cfg.HooksPath))
	}
	if cfg.Metrics {
		engineOpts = append(engineOpts, fsmtask.WithMetricsRegistry(newMetricsRegistry()))
	}
	if cfg.EntityLock {
		managerOpts := []taskmanager.Option{taskmanager.WithEntityLock(taskmanager.IDKey)}
		if backend.Locker != nil {
			managerOpts = append(managerOpts, taskmanager.WithDistributedLocker(backend.Locker, cfg.LockTTL))
		}
		engineOpts = append(engineOpts, fsmtask.WithManagerOptions(managerOpts...))
	}

	engine, err := fsmtask.New(opts.Source, engineOpts...)
	if err != nil {
		_ = backend.Close()
		return nil, nil, fmt.Errorf("error initializing engine: %w", err)
	}
	return engine, backend, nil
}

// CreateLogger builds the stderr logger for level. An unknown level falls back to info.
func CreateLogger(level string) *slog.Logger {
	lvl, err := logging.ParseLevel(level)
	logger := logging.New(lvl)
	if err != nil {
		logger.Warn("falling back to info logging", "err", err)
	}
	return logger
}

func newMetricsRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}
