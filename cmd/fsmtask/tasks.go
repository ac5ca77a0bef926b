package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aretw0/fsmtask"
	"github.com/aretw0/fsmtask/internal/cli"
	"github.com/aretw0/fsmtask/internal/config"
	"github.com/aretw0/fsmtask/pkg/domain"
	"github.com/spf13/cobra"
)

// withEngine builds an engine on the configured store, runs fn and closes the store.
func withEngine(cmd *cobra.Command, source string, fn func(ctx context.Context, cfg config.Config, engine *fsmtask.Engine) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	machineName, _ := cmd.Flags().GetString("machine")
	logger := cli.CreateLogger(cfg.LogLevel)

	ctx := cmd.Context()
	engine, backend, err := cli.CreateEngine(ctx, cli.EngineOptions{Source: source, Machine: machineName}, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := backend.Close(); err != nil {
			logger.Warn("failed to close store", "err", err)
		}
	}()

	return fn(ctx, cfg, engine)
}

func newStartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start <source> <id>",
		Short: "Create a task in the initial state and save it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, _ := cmd.Flags().GetString("data")
			return withEngine(cmd, args[0], func(ctx context.Context, cfg config.Config, engine *fsmtask.Engine) error {
				obj := domain.Object{}
				if data != "" {
					if err := json.Unmarshal([]byte(data), &obj); err != nil {
						return fmt.Errorf("invalid --data: %w", err)
					}
				}
				obj[cfg.IDField] = args[1]

				created, err := engine.Create(ctx, obj)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), created)
			})
		},
	}
	cmd.Flags().String("data", "", "JSON object with the task fields")
	return cmd
}

func newSendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send <source> <id> <event>",
		Short: "Send an event to a stored task",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			rawPayload, _ := cmd.Flags().GetString("payload")
			return withEngine(cmd, args[0], func(ctx context.Context, cfg config.Config, engine *fsmtask.Engine) error {
				var payload any
				if rawPayload != "" {
					if err := json.Unmarshal([]byte(rawPayload), &payload); err != nil {
						return fmt.Errorf("invalid --payload: %w", err)
					}
				}

				obj, err := engine.SendEventTo(ctx, map[string]any{cfg.IDField: args[1]}, args[2], payload)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), obj)
			})
		},
	}
	cmd.Flags().String("payload", "", "JSON payload passed to guards and actions")
	return cmd
}

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list <source>",
		Short: "List stored tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filters, _ := cmd.Flags().GetStringArray("filter")
			params, err := parseFilters(filters)
			if err != nil {
				return err
			}
			return withEngine(cmd, args[0], func(ctx context.Context, cfg config.Config, engine *fsmtask.Engine) error {
				tasks, err := engine.List(ctx, params)
				if err != nil {
					return err
				}
				if tasks == nil {
					tasks = []domain.Object{}
				}
				return printJSON(cmd.OutOrStdout(), tasks)
			})
		},
	}
	cmd.Flags().StringArray("filter", nil, "field=value filter, repeatable")
	return cmd
}

func newTransitionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "transitions <source> <id>",
		Short: "List the events a stored task accepts right now",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, args[0], func(ctx context.Context, cfg config.Config, engine *fsmtask.Engine) error {
				obj, err := engine.Find(ctx, map[string]any{cfg.IDField: args[1]})
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, t := range engine.AvailableTransitions(ctx, obj, nil) {
					fmt.Fprintf(out, "%s -> %s\n", t.Event, t.To)
				}
				return nil
			})
		},
	}
}

func parseFilters(filters []string) (map[string]any, error) {
	params := make(map[string]any, len(filters))
	for _, f := range filters {
		key, value, ok := strings.Cut(f, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid filter %q, want field=value", f)
		}
		params[key] = value
	}
	return params, nil
}
