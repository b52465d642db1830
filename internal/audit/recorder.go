package audit

import (
	"context"
	"log/slog"

	"github.com/james-tn/dbx-mcp-copilot/internal/domain"
)

// SlogRecorder writes each audit record as one structured log line.
type SlogRecorder struct {
	logger *slog.Logger
}

// NewSlogRecorder creates a SlogRecorder.
func NewSlogRecorder(logger *slog.Logger) *SlogRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogRecorder{logger: logger}
}

// Record implements domain.AuditRecorder.
func (r *SlogRecorder) Record(_ context.Context, rec *domain.AuditRecord) error {
	r.logger.Info("request audited",
		"audit_id", rec.ID,
		"domain", rec.DomainID,
		"subject", rec.CallerSubject,
		"verdict", rec.Verdict,
		"outcome", rec.Outcome,
		"rows", rec.RowCount,
		"elapsed_ms", rec.ElapsedMS,
	)
	return nil
}

// MultiRecorder fans one record out to several recorders. The first error
// is returned after all recorders have been given the record.
type MultiRecorder []domain.AuditRecorder

// Record implements domain.AuditRecorder.
func (m MultiRecorder) Record(ctx context.Context, rec *domain.AuditRecord) error {
	var first error
	for _, r := range m {
		if err := r.Record(ctx, rec); err != nil && first == nil {
			first = err
		}
	}
	return first
}

var (
	_ domain.AuditRecorder = (*SlogRecorder)(nil)
	_ domain.AuditRecorder = (MultiRecorder)(nil)
)
