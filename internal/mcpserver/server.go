// Package mcpserver exposes the question-answering engine as an MCP server
// so coding agents and chat clients can ask domain questions as tools.
//
// Transport is stdio: the process serves exactly one client, and the
// caller's warehouse credential is taken from the environment at startup.
// The credential is handed to the engine as-is and never written anywhere.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/james-tn/dbx-mcp-copilot/internal/domain"
	"github.com/james-tn/dbx-mcp-copilot/internal/expert"
)

// CredentialEnvVar names the environment variable holding the caller's
// bearer token for stdio sessions.
const CredentialEnvVar = "DBX_COPILOT_TOKEN"

// Version is set at build time via ldflags.
var Version = "dev"

// Asker answers one natural-language question end to end.
type Asker interface {
	Ask(ctx context.Context, req expert.Request) (*expert.Answer, error)
}

// Server wraps the MCP server with the engine dependencies.
type Server struct {
	mcp        *server.MCPServer
	asker      Asker
	registry   domain.ContextRegistry
	credential func() string
	logger     *slog.Logger
}

// New builds the MCP server and registers one ask tool per domain known at
// startup, plus a domain listing tool. Domains registered later by the
// context watcher appear after a restart; MCP clients cache tool lists, so
// a stable set is preferable to churn mid-session.
func New(asker Asker, registry domain.ContextRegistry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		mcp: server.NewMCPServer(
			"dbx-copilot",
			Version,
			server.WithToolCapabilities(true),
			server.WithRecovery(),
		),
		asker:      asker,
		registry:   registry,
		credential: func() string { return os.Getenv(CredentialEnvVar) },
		logger:     logger,
	}

	s.mcp.AddTool(
		mcp.NewTool("list_domains",
			mcp.WithDescription("List the data domains this copilot can answer questions about."),
		),
		s.handleListDomains,
	)

	for _, id := range registry.Domains() {
		dc, ok := registry.Lookup(id)
		if !ok {
			continue
		}
		desc := dc.Description
		if desc == "" {
			desc = fmt.Sprintf("the %s domain", id)
		}
		s.mcp.AddTool(
			mcp.NewTool("ask_"+id,
				mcp.WithDescription(fmt.Sprintf("Answer a natural-language question about %s. Returns tabular data as JSON.", desc)),
				mcp.WithString("question",
					mcp.Required(),
					mcp.Description("The question, in plain language."),
				),
			),
			s.askHandler(id),
		)
	}

	return s
}

// ServeStdio blocks serving the single stdio client.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

func (s *Server) handleListDomains(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(strings.Join(s.registry.Domains(), "\n")), nil
}

func (s *Server) askHandler(domainID string) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := req.RequireString("question")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if strings.TrimSpace(question) == "" {
			return mcp.NewToolResultError("question must not be empty"), nil
		}

		answer, err := s.asker.Ask(ctx, expert.Request{
			DomainID:   domainID,
			Question:   question,
			Credential: s.credential(),
		})
		if err != nil {
			// Tool errors are data for the client model, not protocol
			// failures; internal detail stays collapsed.
			return mcp.NewToolResultError(fmt.Sprintf("%s: %s", domain.ErrorCode(err), domain.UserMessage(err))), nil
		}

		return mcp.NewToolResultText(renderAnswer(answer)), nil
	}
}

type toolAnswer struct {
	Domain    string                   `json:"domain"`
	Columns   []string                 `json:"columns"`
	Rows      []map[string]interface{} `json:"rows"`
	RowCount  int                      `json:"row_count"`
	Truncated bool                     `json:"truncated,omitempty"`
}

func renderAnswer(answer *expert.Answer) string {
	rows := answer.Result.Rows
	if rows == nil {
		rows = []map[string]interface{}{}
	}
	encoded, err := json.MarshalIndent(toolAnswer{
		Domain:    answer.DomainID,
		Columns:   answer.Result.Columns,
		Rows:      rows,
		RowCount:  answer.Result.RowCount,
		Truncated: answer.Result.Truncated,
	}, "", "  ")
	if err != nil {
		return fmt.Sprintf("%d rows (result could not be encoded: %v)", answer.Result.RowCount, err)
	}
	return string(encoded)
}
