package domain

import "context"

// Authenticator validates an inbound bearer credential and derives the
// caller identity. Stateless; the raw credential is carried through
// unmodified.
type Authenticator interface {
	Authenticate(ctx context.Context, rawCredential string) (*CallerIdentity, error)
}

// Generator produces one candidate SQL statement for a question grounded in
// a domain context. priorRejection, when non-empty, is the previous
// guardrail rejection fed back as an additional constraint. Generators do
// not self-validate and do not retry internally.
type Generator interface {
	Generate(ctx context.Context, question string, domainCtx *DomainContext, priorRejection string, attempt int) (*CandidateQuery, error)
}

// Executor presents an accepted statement to the data platform under the
// caller's own credential and returns a bounded result.
type Executor interface {
	Execute(ctx context.Context, acceptedText string, identity *CallerIdentity) (*ExecutionResult, error)
}

// ContextRegistry resolves domain IDs to their immutable contexts. Entries
// may be added at runtime but never replaced or removed.
type ContextRegistry interface {
	Lookup(domainID string) (*DomainContext, bool)
	Domains() []string
}
