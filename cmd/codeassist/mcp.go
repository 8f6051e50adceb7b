package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/matiasleandrokruk/codeassist/internal/infra/config"
	"github.com/matiasleandrokruk/codeassist/internal/infra/logging"
	"github.com/matiasleandrokruk/codeassist/internal/mcpserver"
)

func newMCPCmd() *cobra.Command {
	var envFiles []string
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the analysis tools over MCP (stdio)",
		Long: `Start a Model Context Protocol server on stdin/stdout.

Tools: analyze_code, analyze_files, chat, test_connection, list_providers,
session_history, clear_session. Logs go to stderr since stdout carries the
protocol.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			config.LoadDotEnv(envFiles...)
			cfg := config.Load()
			logger := newMCPLogger(cmd, cfg.LogLevel)

			a, err := buildApp(cfg, logger)
			if err != nil {
				return err
			}
			defer a.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			go a.run(ctx)

			server := mcpserver.New(a.assistant, a.registry, a.defaultProvider, logger)
			logger.Info("starting MCP server", "transport", "stdio")
			return server.Run(ctx, &mcp.StdioTransport{})
		},
	}
	cmd.Flags().StringSliceVar(&envFiles, "env-file", nil, "Dotenv files to load (default .env)")
	return cmd
}

// newMCPLogger writes to the command's error stream. Stdout belongs to the
// JSON-RPC transport.
func newMCPLogger(cmd *cobra.Command, level string) *slog.Logger {
	return logging.New(cmd.ErrOrStderr(), level, "json")
}
