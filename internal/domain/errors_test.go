package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorCode(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"authentication", ErrAuthentication("token expired"), CodeAuthenticationFailure},
		{"unknown domain", &UnknownDomainError{DomainID: "hr"}, CodeUnknownDomain},
		{"ungeneratable", &UngeneratableQueryError{Attempts: 2, LastReason: ReasonUnknownTable}, CodeUngeneratableQuery},
		{"denied", ErrExecutionDenied("access denied"), CodeExecutionDenied},
		{"timeout", ErrExecutionTimeout("deadline exceeded"), CodeExecutionTimeout},
		{"generation unavailable is internal", ErrGenerationUnavailable("llm 503"), CodeInternalError},
		{"plain error", errors.New("boom"), CodeInternalError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ErrorCode(tc.err))
		})
	}
}

func TestErrorCode_Wrapped(t *testing.T) {
	err := fmt.Errorf("answering: %w", &UnknownDomainError{DomainID: "sales"})
	assert.Equal(t, CodeUnknownDomain, ErrorCode(err))
}

func TestUserMessage_CollapsesInternalDetail(t *testing.T) {
	err := errors.New("pq: connection refused host=10.0.0.3")
	got := UserMessage(err)
	assert.Equal(t, "internal error while answering the question", got)
	assert.NotContains(t, got, "10.0.0.3")

	// Generation failures carry provider detail; they must collapse too.
	got = UserMessage(ErrGenerationUnavailable("openai 429 org=acme"))
	assert.NotContains(t, got, "acme")
}

func TestUserMessage_SurfacesTerminalErrors(t *testing.T) {
	err := &UngeneratableQueryError{Attempts: 2, LastReason: ReasonUnknownColumn}
	assert.Equal(t, "no acceptable query after 2 attempts (last rejection: UnknownColumn)", UserMessage(err))
}
