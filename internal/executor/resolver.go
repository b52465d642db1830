package executor

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/james-tn/dbx-mcp-copilot/internal/domain"
)

// Resolver selects the executor for this deployment: the warehouse gateway
// when one is configured, the embedded database otherwise.
type Resolver struct {
	remote *RemoteExecutor
	local  *LocalExecutor
	logger *slog.Logger
}

// NewResolver creates a Resolver. Either executor may be nil.
func NewResolver(remote *RemoteExecutor, local *LocalExecutor, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{remote: remote, local: local, logger: logger}
}

// Resolve returns the executor to use. When a warehouse endpoint is
// configured it is always preferred; a failing health check is reported but
// does not fall back to local, since local has no access enforcement.
func (r *Resolver) Resolve(ctx context.Context) (domain.Executor, error) {
	if r.remote != nil {
		if err := r.remote.Ping(ctx); err != nil {
			r.logger.Warn("warehouse health check failed", "error", err)
		}
		return r.remote, nil
	}
	if r.local != nil {
		r.logger.Info("executing against embedded database")
		return r.local, nil
	}
	return nil, fmt.Errorf("no executor configured")
}

// Ping performs a health check against the warehouse gateway.
func (e *RemoteExecutor) Ping(ctx context.Context) error {
	endpoint := strings.TrimRight(e.cfg.Endpoint, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"/health", nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}
