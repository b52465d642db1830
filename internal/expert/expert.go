// Package expert orchestrates one question through the full pipeline:
// authenticate, load the domain context, generate, validate, execute, audit.
// It owns the regeneration budget and guarantees exactly one audit record
// per request regardless of outcome.
package expert

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/james-tn/dbx-mcp-copilot/internal/domain"
	"github.com/james-tn/dbx-mcp-copilot/internal/guardrail"
)

// Request is one inbound question.
type Request struct {
	DomainID   string
	Question   string
	Credential string
}

// Answer is the successful outcome of a request.
type Answer struct {
	DomainID string
	Result   *domain.ExecutionResult
}

// phase names the processing stages for structured logs.
type phase string

const (
	phaseReceived      phase = "received"
	phaseAuthenticated phase = "authenticated"
	phaseContextLoaded phase = "context_loaded"
	phaseGenerating    phase = "generating"
	phaseValidating    phase = "validating"
	phaseExecuting     phase = "executing"
	phaseCompleted     phase = "completed"
	phaseFailed        phase = "failed"
)

// Config bounds the orchestrator.
type Config struct {
	// MaxGenerationAttempts is the total generation budget per request;
	// zero means the default of 2 (one generation plus one regeneration).
	MaxGenerationAttempts int
}

// Expert answers questions for every registered domain. Stateless across
// requests; all per-request data lives on the stack of Ask.
type Expert struct {
	registry    domain.ContextRegistry
	auth        domain.Authenticator
	generator   domain.Generator
	guard       *guardrail.Guardrail
	executor    domain.Executor
	audit       domain.AuditRecorder
	logger      *slog.Logger
	maxAttempts int
}

// New wires an Expert.
func New(registry domain.ContextRegistry, auth domain.Authenticator, gen domain.Generator,
	guard *guardrail.Guardrail, exec domain.Executor, audit domain.AuditRecorder,
	cfg Config, logger *slog.Logger) *Expert {
	maxAttempts := cfg.MaxGenerationAttempts
	if maxAttempts <= 0 {
		maxAttempts = 2
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Expert{
		registry:    registry,
		auth:        auth,
		generator:   gen,
		guard:       guard,
		executor:    exec,
		audit:       audit,
		logger:      logger,
		maxAttempts: maxAttempts,
	}
}

// Ask processes one question end to end. Exactly one audit record is
// emitted whether the request completes or fails; the record never carries
// SQL text, the credential, or any row data.
func (e *Expert) Ask(ctx context.Context, req Request) (*Answer, error) {
	start := time.Now()
	rec := &domain.AuditRecord{
		Timestamp: start.UTC(),
		DomainID:  req.DomainID,
	}
	defer func() {
		rec.ElapsedMS = time.Since(start).Milliseconds()
		if err := e.audit.Record(context.WithoutCancel(ctx), rec); err != nil {
			e.logger.Error("audit record failed", "domain", req.DomainID, "error", err)
		}
	}()

	answer, err := e.ask(ctx, req, rec)
	if err != nil {
		rec.Outcome = domain.ErrorCode(err)
		e.logger.Info("request failed",
			"phase", phaseFailed, "domain", req.DomainID, "code", rec.Outcome)
		return nil, err
	}
	rec.Outcome = domain.OutcomeCompleted
	rec.RowCount = answer.Result.RowCount
	return answer, nil
}

func (e *Expert) ask(ctx context.Context, req Request, rec *domain.AuditRecord) (*Answer, error) {
	e.logger.Debug("question received", "phase", phaseReceived, "domain", req.DomainID)

	identity, err := e.auth.Authenticate(ctx, req.Credential)
	if err != nil {
		return nil, err
	}
	rec.CallerSubject = identity.Subject
	e.logger.Debug("caller authenticated",
		"phase", phaseAuthenticated, "domain", req.DomainID, "subject", identity.Subject)

	dc, ok := e.registry.Lookup(req.DomainID)
	if !ok {
		return nil, &domain.UnknownDomainError{DomainID: req.DomainID}
	}
	e.logger.Debug("domain context loaded",
		"phase", phaseContextLoaded, "domain", dc.DomainID, "version", dc.Version)

	verdict, err := e.generateAccepted(ctx, req.Question, dc, rec)
	if err != nil {
		return nil, err
	}

	// The caller may have gone away during generation; never start a
	// warehouse query for a request nobody is waiting on.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.logger.Debug("executing accepted statement", "phase", phaseExecuting, "domain", dc.DomainID)
	result, err := e.executor.Execute(ctx, verdict.NormalizedText, identity)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("request completed",
		"phase", phaseCompleted, "domain", dc.DomainID,
		"rows", result.RowCount, "truncated", result.Truncated)
	return &Answer{DomainID: dc.DomainID, Result: result}, nil
}

// generateAccepted runs the bounded generate/validate loop. Each rejection
// is fed back verbatim into the next attempt. Generation transport failures
// spend an attempt too; a request must not hammer an unavailable model.
func (e *Expert) generateAccepted(ctx context.Context, question string, dc *domain.DomainContext, rec *domain.AuditRecord) (domain.GuardrailVerdict, error) {
	var (
		priorRejection string
		lastReason     domain.RejectReason
		lastGenErr     error
	)

	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return domain.GuardrailVerdict{}, err
		}

		e.logger.Debug("generating candidate",
			"phase", phaseGenerating, "domain", dc.DomainID, "attempt", attempt)
		candidate, err := e.generator.Generate(ctx, question, dc, priorRejection, attempt)
		if err != nil {
			var unavailable *domain.GenerationUnavailableError
			if errors.As(err, &unavailable) {
				e.logger.Warn("generation unavailable",
					"domain", dc.DomainID, "attempt", attempt, "error", err)
				lastGenErr = err
				continue
			}
			return domain.GuardrailVerdict{}, err
		}

		e.logger.Debug("validating candidate",
			"phase", phaseValidating, "domain", dc.DomainID, "attempt", attempt)
		verdict := e.guard.Validate(candidate, dc)
		rec.Verdict = verdict.String()
		if verdict.Accepted {
			return verdict, nil
		}

		lastReason = verdict.Reason
		priorRejection = string(verdict.Reason) + ": " + verdict.Detail
		e.logger.Info("candidate rejected",
			"domain", dc.DomainID, "attempt", attempt, "reason", verdict.Reason)
	}

	if lastReason == "" && lastGenErr != nil {
		// Every attempt failed before producing a candidate.
		return domain.GuardrailVerdict{}, lastGenErr
	}
	return domain.GuardrailVerdict{}, &domain.UngeneratableQueryError{
		Attempts:   e.maxAttempts,
		LastReason: lastReason,
	}
}
