package executor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/james-tn/dbx-mcp-copilot/internal/domain"
)

// LocalExecutor runs accepted statements against an embedded database.
// Development only: there is no per-caller enforcement behind it, so
// production configurations refuse to start with it.
type LocalExecutor struct {
	db             *sql.DB
	timeout        time.Duration
	maxResultBytes int
}

// NewLocal creates a LocalExecutor over db.
func NewLocal(db *sql.DB, timeout time.Duration, maxResultBytes int) *LocalExecutor {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &LocalExecutor{db: db, timeout: timeout, maxResultBytes: maxResultBytes}
}

// Execute implements domain.Executor. The caller identity is accepted for
// interface parity but local execution has no credential to forward.
func (e *LocalExecutor) Execute(ctx context.Context, acceptedText string, _ *domain.CallerIdentity) (*domain.ExecutionResult, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	rows, err := e.db.QueryContext(ctx, acceptedText)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, domain.ErrExecutionTimeout("local query exceeded %s", e.timeout)
		}
		return nil, fmt.Errorf("local query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	var collected []map[string]interface{}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		row := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		collected = append(collected, row)
	}
	if err := rows.Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, domain.ErrExecutionTimeout("local query exceeded %s", e.timeout)
		}
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	result := &domain.ExecutionResult{
		Columns: columns,
		Elapsed: time.Since(start),
	}
	boundRows(result, collected, e.maxResultBytes)
	return result, nil
}

var _ domain.Executor = (*LocalExecutor)(nil)
