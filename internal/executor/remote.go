package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/james-tn/dbx-mcp-copilot/internal/domain"
)

// RemoteConfig configures the warehouse HTTP client.
type RemoteConfig struct {
	Endpoint       string // base URL of the warehouse SQL gateway
	Timeout        time.Duration
	MaxResultBytes int
}

// RemoteExecutor submits statements to the warehouse gateway over HTTP.
// Authorization is the caller's own credential; this process holds no
// warehouse identity of its own.
type RemoteExecutor struct {
	cfg    RemoteConfig
	client *http.Client
}

// NewRemote creates a RemoteExecutor.
func NewRemote(cfg RemoteConfig) *RemoteExecutor {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")
	return &RemoteExecutor{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

type statementRequest struct {
	Statement string `json:"statement"`
	RequestID string `json:"request_id"`
}

type statementResponse struct {
	Columns []string        `json:"columns"`
	Rows    [][]interface{} `json:"rows"`
	Error   string          `json:"error,omitempty"`
}

// Execute implements domain.Executor.
func (e *RemoteExecutor) Execute(ctx context.Context, acceptedText string, identity *domain.CallerIdentity) (*domain.ExecutionResult, error) {
	payload, err := json.Marshal(statementRequest{
		Statement: acceptedText,
		RequestID: uuid.New().String(),
	})
	if err != nil {
		return nil, fmt.Errorf("encode statement: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.Endpoint+"/statements", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build statement request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+identity.RawCredential)

	start := time.Now()
	resp, err := e.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isClientTimeout(err) {
			return nil, domain.ErrExecutionTimeout("warehouse did not answer within %s", e.cfg.Timeout)
		}
		return nil, fmt.Errorf("warehouse request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read warehouse response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, domain.ErrExecutionDenied("warehouse refused the caller's credential (status %d)", resp.StatusCode)
	case http.StatusGatewayTimeout, http.StatusRequestTimeout:
		return nil, domain.ErrExecutionTimeout("warehouse reported a timeout (status %d)", resp.StatusCode)
	default:
		return nil, fmt.Errorf("warehouse returned status %d", resp.StatusCode)
	}

	var parsed statementResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode warehouse response: %w", err)
	}
	if parsed.Error != "" {
		return nil, fmt.Errorf("warehouse execution failed: %s", parsed.Error)
	}

	result := &domain.ExecutionResult{
		Columns: parsed.Columns,
		Elapsed: time.Since(start),
	}
	boundRows(result, zipRows(parsed.Columns, parsed.Rows), e.cfg.MaxResultBytes)
	return result, nil
}

// zipRows converts positional row arrays into column-keyed maps.
func zipRows(columns []string, rows [][]interface{}) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(rows))
	for _, row := range rows {
		m := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			if i < len(row) {
				m[col] = row[i]
			} else {
				m[col] = nil
			}
		}
		out = append(out, m)
	}
	return out
}

func isClientTimeout(err error) bool {
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}

var _ domain.Executor = (*RemoteExecutor)(nil)
