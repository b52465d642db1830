package domain

import "time"

// CallerIdentity is derived from the inbound credential for exactly one
// request and never persisted. RawCredential is forwarded to the data
// platform unmodified; it must never be logged or stored.
type CallerIdentity struct {
	Subject       string
	Audience      []string
	Expiry        time.Time
	RawCredential string
}

// CandidateQuery is one unvalidated SQL statement proposed by the generator.
// Consumed by the guardrail and discarded; never reused across requests.
type CandidateQuery struct {
	Text     string
	DomainID string
	Attempt  int // 1-based generation attempt
}

// RejectReason is a stable guardrail rejection code.
type RejectReason string

// ReasonMalformedSQL and friends enumerate guardrail rejection codes.
const (
	ReasonMalformedSQL            RejectReason = "MalformedSQL"
	ReasonMultipleStatements      RejectReason = "MultipleStatements"
	ReasonDisallowedStatementType RejectReason = "DisallowedStatementType"
	ReasonSystemObjectAccess      RejectReason = "SystemObjectAccess"
	ReasonUnknownTable            RejectReason = "UnknownTable"
	ReasonUnknownColumn           RejectReason = "UnknownColumn"
	ReasonCartesianProduct        RejectReason = "CartesianProduct"
	ReasonSuspiciousLiteral       RejectReason = "SuspiciousLiteral"
)

// GuardrailVerdict is the guardrail's decision on a candidate. When Accepted
// is true, NormalizedText carries the statement that may be executed (metric
// aliases expanded, row limit applied); Reason and Detail are empty.
type GuardrailVerdict struct {
	Accepted       bool
	NormalizedText string
	Reason         RejectReason
	Detail         string
}

// Accepted builds an accepting verdict.
func Accepted(normalized string) GuardrailVerdict {
	return GuardrailVerdict{Accepted: true, NormalizedText: normalized}
}

// Rejected builds a rejecting verdict.
func Rejected(reason RejectReason, detail string) GuardrailVerdict {
	return GuardrailVerdict{Reason: reason, Detail: detail}
}

// String renders the verdict for audit records. Accepted verdicts carry no
// SQL text here.
func (v GuardrailVerdict) String() string {
	if v.Accepted {
		return "accepted"
	}
	return "rejected:" + string(v.Reason)
}

// ExecutionResult is the bounded result of one executed query. Ephemeral:
// returned to the caller and not retained.
type ExecutionResult struct {
	Columns   []string
	Rows      []map[string]interface{}
	RowCount  int
	Truncated bool
	Elapsed   time.Duration
}
