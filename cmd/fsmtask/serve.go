package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aretw0/fsmtask"
	"github.com/aretw0/fsmtask/internal/cli"
	"github.com/aretw0/fsmtask/internal/config"
	httpAdapter "github.com/aretw0/fsmtask/pkg/adapters/http"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve <source>",
		Short: "Start the HTTP API",
		Long:  `Serves the task API (/tasks, /machine, /metrics) for one machine until SIGINT or SIGTERM.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc := cli.NewSignalContext(cmd.Context())
			defer sc.Cancel()
			cmd.SetContext(sc)

			return withEngine(cmd, args[0], func(ctx context.Context, cfg config.Config, engine *fsmtask.Engine) error {
				if cmd.Flags().Changed("addr") {
					cfg.HTTPAddr, _ = cmd.Flags().GetString("addr")
				}
				logger := cli.CreateLogger(cfg.LogLevel)

				handler := httpAdapter.NewHandler(engine,
					httpAdapter.WithGatherer(engine.Gatherer()),
					httpAdapter.WithIDField(cfg.IDField),
					httpAdapter.WithLogger(logger),
				)
				srv := &http.Server{
					Addr:              cfg.HTTPAddr,
					Handler:           handler,
					ReadHeaderTimeout: 10 * time.Second,
				}

				// Channel to listen for errors coming from the listener.
				serverErrors := make(chan error, 1)
				go func() {
					logger.Info("starting fsmtask server", "addr", srv.Addr, "machine", engine.Name(), "store", cfg.StoreKind)
					serverErrors <- srv.ListenAndServe()
				}()

				select {
				case err := <-serverErrors:
					if errors.Is(err, http.ErrServerClosed) {
						return nil
					}
					return fmt.Errorf("server error: %w", err)

				case <-ctx.Done():
					logger.Info("shutting down", "signal", sc.Signal())

					// Give outstanding requests a deadline for completion.
					shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
					defer cancel()

					if err := srv.Shutdown(shutdownCtx); err != nil {
						logger.Error("graceful shutdown did not complete", "timeout", cfg.ShutdownTimeout, "err", err)
						if err := srv.Close(); err != nil {
							return fmt.Errorf("error killing server: %w", err)
						}
					}
					logger.Info("server stopped gracefully")
					return nil
				}
			})
		},
	}
	cmd.Flags().String("addr", "", "Address to listen on (env FSMTASK_HTTP_ADDR, default :8080)")
	return cmd
}
