// Package api exposes the question-answering engine over HTTP.
//
// The surface is deliberately small: one endpoint to ask a question, one to
// list the registered domains, and a health probe. The caller's bearer
// credential is forwarded to the engine untouched and never logged.
package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/james-tn/dbx-mcp-copilot/internal/domain"
	"github.com/james-tn/dbx-mcp-copilot/internal/expert"
	"github.com/james-tn/dbx-mcp-copilot/internal/middleware"
)

// maxAskBodyBytes bounds the request body; questions are short.
const maxAskBodyBytes = 64 << 10

// Asker answers one natural-language question end to end.
type Asker interface {
	Ask(ctx context.Context, req expert.Request) (*expert.Answer, error)
}

// RouterConfig carries the HTTP-surface knobs.
type RouterConfig struct {
	CORSAllowedOrigins []string
	RateLimit          middleware.RateLimitConfig
}

// Handler serves the ask surface.
type Handler struct {
	asker    Asker
	registry domain.ContextRegistry
	logger   *slog.Logger
}

func NewHandler(asker Asker, registry domain.ContextRegistry, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{asker: asker, registry: registry, logger: logger}
}

// Router assembles the chi router with the shared middleware stack.
func (h *Handler) Router(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.AccessLog(h.logger))
	r.Use(chimw.Recoverer)

	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORSAllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/healthz", h.health)

	r.Route("/v1", func(r chi.Router) {
		if cfg.RateLimit.RequestsPerSecond > 0 {
			r.Use(middleware.RateLimiter(cfg.RateLimit))
		}
		r.Get("/domains", h.listDomains)
		r.Post("/ask", h.ask)
	})

	return r
}

type askRequest struct {
	Domain   string `json:"domain"`
	Question string `json:"question"`
}

type askResponse struct {
	Domain    string                   `json:"domain"`
	Columns   []string                 `json:"columns"`
	Rows      []map[string]interface{} `json:"rows"`
	RowCount  int                      `json:"row_count"`
	Truncated bool                     `json:"truncated"`
}

func (h *Handler) ask(w http.ResponseWriter, r *http.Request) {
	var body askRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxAskBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		writeBadRequest(w, "request body must be JSON with \"domain\" and \"question\"")
		return
	}
	if strings.TrimSpace(body.Domain) == "" || strings.TrimSpace(body.Question) == "" {
		writeBadRequest(w, "both \"domain\" and \"question\" are required")
		return
	}

	answer, err := h.asker.Ask(r.Context(), expert.Request{
		DomainID:   body.Domain,
		Question:   body.Question,
		Credential: bearerToken(r),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	rows := answer.Result.Rows
	if rows == nil {
		rows = []map[string]interface{}{}
	}
	writeJSON(w, http.StatusOK, askResponse{
		Domain:    answer.DomainID,
		Columns:   answer.Result.Columns,
		Rows:      rows,
		RowCount:  answer.Result.RowCount,
		Truncated: answer.Result.Truncated,
	})
}

type domainsResponse struct {
	Domains []string `json:"domains"`
}

func (h *Handler) listDomains(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, domainsResponse{Domains: h.registry.Domains()})
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// bearerToken extracts the credential from the Authorization header. An
// absent or malformed header yields "", which the engine rejects as an
// authentication failure; the surface does not duplicate that check.
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) > len(prefix) && strings.EqualFold(auth[:len(prefix)], prefix) {
		return auth[len(prefix):]
	}
	return ""
}
