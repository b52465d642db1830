// The mcp binary serves the question-answering engine over MCP stdio for a
// single client. Logs go to stderr; stdout carries the protocol.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/james-tn/dbx-mcp-copilot/internal/app"
	"github.com/james-tn/dbx-mcp-copilot/internal/config"
	"github.com/james-tn/dbx-mcp-copilot/internal/mcpserver"
)

func main() {
	if err := run(); err != nil {
		slog.Error("mcp server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	if err := config.LoadDotEnv(".env"); err != nil {
		return err
	}
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return err
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)
	for _, w := range cfg.Warnings {
		logger.Warn(w)
	}

	application, err := app.New(context.Background(), cfg, logger)
	if err != nil {
		return err
	}
	defer application.Close()

	return mcpserver.New(application.Expert, application.Registry, logger).ServeStdio()
}

// newLogger builds the process logger: JSON in production, text otherwise.
// Either way it writes to stderr; stdout belongs to the protocol.
func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.IsProduction() {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
