// Package generator produces candidate SQL from natural-language questions
// by calling an OpenAI-compatible chat completions endpoint. Output is
// untrusted by construction; nothing here validates the statement.
package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/james-tn/dbx-mcp-copilot/internal/domain"
)

// Config configures the LLM client.
type Config struct {
	Endpoint string // base URL, e.g. https://api.openai.com/v1
	APIKey   string
	Model    string
	Timeout  time.Duration
}

// LLMGenerator is the production domain.Generator.
type LLMGenerator struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger
}

// New creates an LLMGenerator.
func New(cfg Config, logger *slog.Logger) *LLMGenerator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMGenerator{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Generate implements domain.Generator. Failures to reach the endpoint or
// to get a usable completion surface as GenerationUnavailable.
func (g *LLMGenerator) Generate(ctx context.Context, question string, domainCtx *domain.DomainContext, priorRejection string, attempt int) (*domain.CandidateQuery, error) {
	reqBody := chatRequest{
		Model: g.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: buildSystemPrompt(domainCtx)},
			{Role: "user", Content: buildUserPrompt(question, priorRejection)},
		},
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, domain.ErrGenerationUnavailable("encode request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.Endpoint+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, domain.ErrGenerationUnavailable("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)
	}

	start := time.Now()
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, domain.ErrGenerationUnavailable("model endpoint unreachable: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, domain.ErrGenerationUnavailable("read response: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, domain.ErrGenerationUnavailable("model endpoint returned %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, domain.ErrGenerationUnavailable("decode response: %v", err)
	}
	if parsed.Error != nil {
		return nil, domain.ErrGenerationUnavailable("model error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return nil, domain.ErrGenerationUnavailable("model returned no choices")
	}

	text := stripFences(parsed.Choices[0].Message.Content)
	if text == "" {
		return nil, domain.ErrGenerationUnavailable("model returned empty completion")
	}

	g.logger.Debug("candidate generated",
		"domain", domainCtx.DomainID,
		"attempt", attempt,
		"elapsed", time.Since(start),
		"chars", len(text),
	)

	return &domain.CandidateQuery{
		Text:     text,
		DomainID: domainCtx.DomainID,
		Attempt:  attempt,
	}, nil
}

var _ domain.Generator = (*LLMGenerator)(nil)
