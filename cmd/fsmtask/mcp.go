package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/aretw0/fsmtask"
	"github.com/aretw0/fsmtask/internal/cli"
	"github.com/aretw0/fsmtask/internal/config"
	"github.com/aretw0/fsmtask/pkg/adapters/mcp"
	"github.com/spf13/cobra"
)

func newMCPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp <source>",
		Short: "Run the Model Context Protocol (MCP) server",
		Long: `Exposes the machine and its stored tasks as MCP tools.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP. Ideal for remote agents or debuggers.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			transport, _ := cmd.Flags().GetString("transport")
			addr, _ := cmd.Flags().GetString("addr")

			sc := cli.NewSignalContext(cmd.Context())
			defer sc.Cancel()
			cmd.SetContext(sc)

			return withEngine(cmd, args[0], func(ctx context.Context, cfg config.Config, engine *fsmtask.Engine) error {
				logger := cli.CreateLogger(cfg.LogLevel)
				srv := mcp.NewServer(engine, mcp.WithIDField(cfg.IDField), mcp.WithLogger(logger))

				switch transport {
				case "stdio":
					// Ensure logs don't corrupt JSON-RPC on Stdout
					log.SetOutput(os.Stderr)
					logger.Info("starting fsmtask MCP server (stdio)")
					return srv.ServeStdio()
				case "sse":
					return srv.ServeSSE(ctx, addr, "http://localhost"+addr)
				default:
					return fmt.Errorf("unknown transport: %s. Supported: stdio, sse", transport)
				}
			})
		},
	}
	cmd.Flags().String("transport", "stdio", "Transport protocol to use: 'stdio' or 'sse'")
	cmd.Flags().String("addr", ":8081", "Address to listen on (only for SSE)")
	return cmd
}
