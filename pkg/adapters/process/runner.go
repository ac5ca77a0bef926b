package process

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/aretw0/fsmtask/pkg/registry"
)

// Runner executes hook commands.
// Only commands listed in the configuration are ever run (allow-listing).
type Runner struct {
	baseDir string
	logger  *slog.Logger
}

// RunnerOption configures the runner.
type RunnerOption func(*Runner)

// WithBaseDir sets the working directory for executed processes.
func WithBaseDir(dir string) RunnerOption {
	return func(r *Runner) {
		r.baseDir = dir
	}
}

// WithLogger sets the logger for command output.
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// NewRunner creates a new process Runner.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return r
}

// Result is the outcome of a single command.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Run executes the hook with the invocation exposed through the environment and stdin.
// A non-zero exit is reported through Result, not as an error; err covers failures to run at all.
//
// Parameters are passed as FSMTASK_PARAM_<NAME> variables instead of command flags so that
// object data never reaches the command line.
func (r *Runner) Run(ctx context.Context, hook HookConfig, inv registry.Invocation) (Result, error) {
	timeout, err := hook.TimeoutDuration()
	if err != nil {
		return Result{}, err
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	stdin, err := json.Marshal(inv.Object)
	if err != nil {
		return Result{}, fmt.Errorf("failed to marshal object: %w", err)
	}

	cmd := exec.CommandContext(ctx, hook.Command, hook.Args...)
	cmd.Dir = r.baseDir
	cmd.Stdin = bytes.NewReader(stdin)
	cmd.Env = append(cmd.Environ(), environment(hook, inv)...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()
	res := Result{
		Stdout: strings.TrimSpace(stdout.String()),
		Stderr: strings.TrimSpace(stderr.String()),
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr) && ctx.Err() == nil:
		res.ExitCode = exitErr.ExitCode()
	default:
		return res, fmt.Errorf("failed to run %s: %w", hook.Name, err)
	}

	r.logger.Debug("hook command finished",
		"hook", hook.Name,
		"exit_code", res.ExitCode,
		"stderr", res.Stderr,
	)
	return res, nil
}

// Guard returns a registry guard backed by the hook. Exit code 0 accepts the transition.
func (r *Runner) Guard(hook HookConfig) registry.Guard {
	return func(ctx context.Context, inv registry.Invocation) (bool, error) {
		res, err := r.Run(ctx, hook, inv)
		if err != nil {
			return false, err
		}
		return res.ExitCode == 0, nil
	}
}

// Action returns a registry action backed by the hook. A non-zero exit is an error.
func (r *Runner) Action(hook HookConfig) registry.Action {
	return func(ctx context.Context, inv registry.Invocation) error {
		res, err := r.Run(ctx, hook, inv)
		if err != nil {
			return err
		}
		if res.ExitCode != 0 {
			return fmt.Errorf("action %s exited with code %d: %s", hook.Name, res.ExitCode, res.Stderr)
		}
		return nil
	}
}

// Register adds every configured hook to reg.
func (r *Runner) Register(reg *registry.Registry, cfg *ConfigFile) error {
	for _, h := range cfg.Guards {
		schema, err := h.ParamSchema()
		if err != nil {
			return fmt.Errorf("guard %s: %w", h.Name, err)
		}
		reg.RegisterGuard(h.Name, r.Guard(h), registry.WithParams(schema), registry.WithDescription(h.Description))
	}
	for _, h := range cfg.Actions {
		schema, err := h.ParamSchema()
		if err != nil {
			return fmt.Errorf("action %s: %w", h.Name, err)
		}
		reg.RegisterAction(h.Name, r.Action(h), registry.WithParams(schema), registry.WithDescription(h.Description))
	}
	return nil
}

func environment(hook HookConfig, inv registry.Invocation) []string {
	env := []string{
		"FSMTASK_HOOK=" + hook.Name,
		"FSMTASK_EVENT=" + inv.Event,
		"FSMTASK_FROM=" + inv.From,
		"FSMTASK_TO=" + inv.To,
	}
	if inv.Payload != nil {
		env = append(env, "FSMTASK_PAYLOAD="+format(inv.Payload))
	}
	for k, v := range inv.Params {
		env = append(env, fmt.Sprintf("FSMTASK_PARAM_%s=%s", strings.ToUpper(k), format(v)))
	}
	for k, v := range hook.Environment {
		env = append(env, k+"="+v)
	}
	return env
}

// format prints primitives as-is and everything else as JSON.
func format(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number, int, int64, float64, bool:
		return fmt.Sprintf("%v", val)
	default:
		if b, err := json.Marshal(v); err == nil {
			return string(b)
		}
		return fmt.Sprintf("%v", val)
	}
}
