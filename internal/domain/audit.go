package domain

import (
	"context"
	"time"
)

// AuditRecord is the one record emitted per request. It carries no raw SQL,
// no credential, and no row contents.
type AuditRecord struct {
	ID            string
	Timestamp     time.Time
	DomainID      string
	CallerSubject string
	Verdict       string // final guardrail verdict, or "" when no candidate was validated
	Outcome       string // "completed" or the surface error code
	RowCount      int
	ElapsedMS     int64
}

// OutcomeCompleted is the Outcome of a request that returned rows.
const OutcomeCompleted = "completed"

// AuditRecorder appends audit records. Append-only and independent per
// request; implementations must tolerate concurrent calls.
type AuditRecorder interface {
	Record(ctx context.Context, rec *AuditRecord) error
}
