package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/james-tn/dbx-mcp-copilot/internal/domain"
)

// Store is the durable AuditRecorder over SQLite.
type Store struct {
	db *sql.DB
}

// NewStore creates a Store over an opened audit database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Record implements domain.AuditRecorder. A zero ID or Timestamp is filled
// in here so callers only describe what happened.
func (s *Store) Record(ctx context.Context, rec *domain.AuditRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_records (id, ts, domain_id, caller_subject, verdict, outcome, row_count, elapsed_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Timestamp, rec.DomainID, rec.CallerSubject, rec.Verdict, rec.Outcome, rec.RowCount, rec.ElapsedMS,
	)
	if err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}

// Recent returns up to limit records, newest first. Used by the operator
// surface; never part of the caller-facing response.
func (s *Store) Recent(ctx context.Context, limit int) ([]domain.AuditRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ts, domain_id, caller_subject, verdict, outcome, row_count, elapsed_ms
		FROM audit_records ORDER BY ts DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit records: %w", err)
	}
	defer rows.Close()

	var records []domain.AuditRecord
	for rows.Next() {
		var rec domain.AuditRecord
		if err := rows.Scan(&rec.ID, &rec.Timestamp, &rec.DomainID, &rec.CallerSubject,
			&rec.Verdict, &rec.Outcome, &rec.RowCount, &rec.ElapsedMS); err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

var _ domain.AuditRecorder = (*Store)(nil)
