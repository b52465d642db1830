// Package app wires the engine from configuration: context store, identity
// adapter, generator, guardrail, executor, audit trail, and the HTTP
// surface. main() stays thin; everything testable lives here.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/james-tn/dbx-mcp-copilot/internal/api"
	"github.com/james-tn/dbx-mcp-copilot/internal/audit"
	"github.com/james-tn/dbx-mcp-copilot/internal/auth"
	"github.com/james-tn/dbx-mcp-copilot/internal/config"
	"github.com/james-tn/dbx-mcp-copilot/internal/contextstore"
	"github.com/james-tn/dbx-mcp-copilot/internal/domain"
	"github.com/james-tn/dbx-mcp-copilot/internal/executor"
	"github.com/james-tn/dbx-mcp-copilot/internal/expert"
	"github.com/james-tn/dbx-mcp-copilot/internal/generator"
	"github.com/james-tn/dbx-mcp-copilot/internal/guardrail"
	"github.com/james-tn/dbx-mcp-copilot/internal/middleware"
)

// App holds the fully wired engine.
type App struct {
	Registry *contextstore.Registry
	Expert   *expert.Expert
	Handler  http.Handler

	watcher *contextstore.Watcher
	auditDB *sql.DB
	localDB *sql.DB
	logger  *slog.Logger
}

// New builds the engine from configuration. The returned App must be closed.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	// Domain contexts. A load failure of one file must not take down the
	// others, but an empty registry at startup is a configuration error.
	loader := contextstore.NewLoader(cfg.ContextsDir, logger)
	result, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load domain contexts: %w", err)
	}
	registry := contextstore.NewRegistry()
	registered := registry.Apply(result, logger)
	if len(registered) == 0 {
		return nil, fmt.Errorf("no valid domain contexts in %s", cfg.ContextsDir)
	}

	var watcher *contextstore.Watcher
	if cfg.ContextsRescanCron != "" {
		watcher = contextstore.NewWatcher(loader, registry, logger)
		if err := watcher.Start(cfg.ContextsRescanCron); err != nil {
			return nil, fmt.Errorf("start context watcher: %w", err)
		}
	}

	authenticator, err := buildAuthenticator(ctx, cfg)
	if err != nil {
		return nil, err
	}

	gen := generator.New(generator.Config{
		Endpoint: cfg.LLM.Endpoint,
		APIKey:   cfg.LLM.APIKey,
		Model:    cfg.LLM.Model,
		Timeout:  cfg.LLM.Timeout,
	}, logger)

	app := &App{Registry: registry, watcher: watcher, logger: logger}

	exec, err := app.buildExecutor(ctx, cfg)
	if err != nil {
		app.Close()
		return nil, err
	}

	auditDB, err := audit.OpenSQLite(cfg.AuditDBPath)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("open audit store: %w", err)
	}
	app.auditDB = auditDB
	recorder := audit.MultiRecorder{
		audit.NewSlogRecorder(logger),
		audit.NewStore(auditDB),
	}

	app.Expert = expert.New(registry, authenticator, gen,
		guardrail.New(cfg.DefaultRowLimit), exec, recorder,
		expert.Config{MaxGenerationAttempts: cfg.MaxGenerationAttempts}, logger)

	app.Handler = api.NewHandler(app.Expert, registry, logger).Router(api.RouterConfig{
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimit: middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimitRPS,
			Burst:             cfg.RateLimitBurst,
		},
	})

	return app, nil
}

func buildAuthenticator(ctx context.Context, cfg *config.Config) (domain.Authenticator, error) {
	switch {
	case cfg.Auth.IssuerURL != "":
		a, err := auth.NewOIDC(ctx, cfg.Auth.IssuerURL, cfg.Auth.Audience)
		if err != nil {
			return nil, fmt.Errorf("oidc discovery against %s: %w", cfg.Auth.IssuerURL, err)
		}
		return a, nil
	case cfg.Auth.JWKSURL != "":
		return auth.NewOIDCFromJWKS(ctx, cfg.Auth.JWKSURL, cfg.Auth.IssuerURL, cfg.Auth.Audience), nil
	default:
		return auth.NewStructural(cfg.Auth.Audience), nil
	}
}

// buildExecutor prefers the remote warehouse; the local database is a
// development convenience without per-caller access enforcement and config
// validation refuses it in production.
func (a *App) buildExecutor(ctx context.Context, cfg *config.Config) (domain.Executor, error) {
	var remote *executor.RemoteExecutor
	if cfg.Warehouse.Endpoint != "" {
		remote = executor.NewRemote(executor.RemoteConfig{
			Endpoint:       cfg.Warehouse.Endpoint,
			Timeout:        cfg.Warehouse.Timeout,
			MaxResultBytes: cfg.MaxResultBytes,
		})
	}

	var local *executor.LocalExecutor
	if cfg.Warehouse.Endpoint == "" {
		db, err := sql.Open("duckdb", cfg.Warehouse.LocalDBPath)
		if err != nil {
			return nil, fmt.Errorf("open local database: %w", err)
		}
		a.localDB = db
		local = executor.NewLocal(db, cfg.Warehouse.Timeout, cfg.MaxResultBytes)
	}

	return executor.NewResolver(remote, local, a.logger).Resolve(ctx)
}

// Close releases the watcher and database handles.
func (a *App) Close() {
	if a.watcher != nil {
		a.watcher.Stop()
	}
	if a.auditDB != nil {
		if err := a.auditDB.Close(); err != nil {
			a.logger.Warn("closing audit store", "error", err)
		}
	}
	if a.localDB != nil {
		if err := a.localDB.Close(); err != nil {
			a.logger.Warn("closing local database", "error", err)
		}
	}
}
