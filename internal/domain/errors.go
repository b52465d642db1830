// Package domain defines the core types, ports, and errors of the
// natural-language-to-SQL gateway.
package domain

import (
	"errors"
	"fmt"
)

// Stable error codes surfaced to callers. Every terminal failure maps to
// exactly one of these; internal detail never crosses the boundary.
const (
	CodeAuthenticationFailure = "AUTHENTICATION_FAILURE"
	CodeUnknownDomain         = "UNKNOWN_DOMAIN"
	CodeUngeneratableQuery    = "UNGENERATABLE_QUERY"
	CodeExecutionDenied       = "EXECUTION_DENIED"
	CodeExecutionTimeout      = "EXECUTION_TIMEOUT"
	CodeInternalError         = "INTERNAL_ERROR"
)

// AuthenticationError indicates a malformed, expired, or mis-addressed
// credential. Fatal for the request; no retry.
type AuthenticationError struct {
	Message string
}

func (e *AuthenticationError) Error() string { return e.Message }

// UnknownDomainError indicates the requested domain is not registered.
// No fallback domain is attempted.
type UnknownDomainError struct {
	DomainID string
}

func (e *UnknownDomainError) Error() string {
	return fmt.Sprintf("unknown domain %q", e.DomainID)
}

// GenerationUnavailableError indicates the language-model call could not be
// completed (timeout, quota, malformed response). Recovered by the
// orchestrator's bounded retry, never surfaced under this name.
type GenerationUnavailableError struct {
	Message string
}

func (e *GenerationUnavailableError) Error() string { return e.Message }

// UngeneratableQueryError indicates the regeneration budget was exhausted
// without producing a statement the guardrail accepts.
type UngeneratableQueryError struct {
	Attempts   int
	LastReason RejectReason
}

func (e *UngeneratableQueryError) Error() string {
	return fmt.Sprintf("no acceptable query after %d attempts (last rejection: %s)", e.Attempts, e.LastReason)
}

// ExecutionDeniedError indicates the data platform rejected the caller's
// credential or policy. The platform owns authorization; propagated verbatim
// as access denied.
type ExecutionDeniedError struct {
	Message string
}

func (e *ExecutionDeniedError) Error() string { return e.Message }

// ExecutionTimeoutError indicates the warehouse query exceeded its deadline.
type ExecutionTimeoutError struct {
	Message string
}

func (e *ExecutionTimeoutError) Error() string { return e.Message }

// ErrAuthentication creates an AuthenticationError with a formatted message.
func ErrAuthentication(format string, args ...interface{}) *AuthenticationError {
	return &AuthenticationError{Message: fmt.Sprintf(format, args...)}
}

// ErrGenerationUnavailable creates a GenerationUnavailableError with a
// formatted message.
func ErrGenerationUnavailable(format string, args ...interface{}) *GenerationUnavailableError {
	return &GenerationUnavailableError{Message: fmt.Sprintf(format, args...)}
}

// ErrExecutionDenied creates an ExecutionDeniedError with a formatted message.
func ErrExecutionDenied(format string, args ...interface{}) *ExecutionDeniedError {
	return &ExecutionDeniedError{Message: fmt.Sprintf(format, args...)}
}

// ErrExecutionTimeout creates an ExecutionTimeoutError with a formatted message.
func ErrExecutionTimeout(format string, args ...interface{}) *ExecutionTimeoutError {
	return &ExecutionTimeoutError{Message: fmt.Sprintf(format, args...)}
}

// ErrorCode maps an error to its stable surface code. Anything unrecognized
// is an internal error.
func ErrorCode(err error) string {
	var authErr *AuthenticationError
	var unknownDomain *UnknownDomainError
	var ungeneratable *UngeneratableQueryError
	var denied *ExecutionDeniedError
	var timeout *ExecutionTimeoutError

	switch {
	case errors.As(err, &authErr):
		return CodeAuthenticationFailure
	case errors.As(err, &unknownDomain):
		return CodeUnknownDomain
	case errors.As(err, &ungeneratable):
		return CodeUngeneratableQuery
	case errors.As(err, &denied):
		return CodeExecutionDenied
	case errors.As(err, &timeout):
		return CodeExecutionTimeout
	default:
		return CodeInternalError
	}
}

// UserMessage returns the caller-visible message for an error. Internal
// errors collapse to a generic summary so stack detail and candidate SQL
// never leak.
func UserMessage(err error) string {
	if ErrorCode(err) == CodeInternalError {
		return "internal error while answering the question"
	}
	return err.Error()
}
