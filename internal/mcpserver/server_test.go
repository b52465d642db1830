package mcpserver

import (
	"context"
	"log/slog"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/james-tn/dbx-mcp-copilot/internal/domain"
	"github.com/james-tn/dbx-mcp-copilot/internal/expert"
)

type fakeAsker struct {
	answer  *expert.Answer
	err     error
	lastReq expert.Request
}

func (f *fakeAsker) Ask(_ context.Context, req expert.Request) (*expert.Answer, error) {
	f.lastReq = req
	return f.answer, f.err
}

type fakeRegistry map[string]*domain.DomainContext

func (f fakeRegistry) Lookup(id string) (*domain.DomainContext, bool) {
	dc, ok := f[id]
	return dc, ok
}

func (f fakeRegistry) Domains() []string {
	return []string{"sales"}
}

func newServer(asker *fakeAsker) *Server {
	registry := fakeRegistry{"sales": {
		DomainID:    "sales",
		Description: "retail order data",
	}}
	return New(asker, registry, slog.New(slog.DiscardHandler))
}

func askRequest(question string) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = "ask_sales"
	req.Params.Arguments = map[string]any{"question": question}
	return req
}

func textOf(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.Len(t, result.Content, 1)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")
	return text.Text
}

func TestAskTool_ReturnsRowsAsJSON(t *testing.T) {
	t.Setenv(CredentialEnvVar, "h.p.s")
	asker := &fakeAsker{answer: &expert.Answer{
		DomainID: "sales",
		Result: &domain.ExecutionResult{
			Columns:  []string{"region", "total"},
			Rows:     []map[string]interface{}{{"region": "emea", "total": 42}},
			RowCount: 1,
		},
	}}
	srv := newServer(asker)

	result, err := srv.askHandler("sales")(context.Background(), askRequest("total by region?"))
	require.NoError(t, err)
	require.False(t, result.IsError)

	out := textOf(t, result)
	assert.Contains(t, out, `"domain": "sales"`)
	assert.Contains(t, out, `"emea"`)
	assert.Contains(t, out, `"row_count": 1`)

	assert.Equal(t, "sales", asker.lastReq.DomainID)
	assert.Equal(t, "total by region?", asker.lastReq.Question)
	assert.Equal(t, "h.p.s", asker.lastReq.Credential)
}

func TestAskTool_MissingQuestionIsToolError(t *testing.T) {
	srv := newServer(&fakeAsker{})

	req := mcp.CallToolRequest{}
	req.Params.Name = "ask_sales"
	req.Params.Arguments = map[string]any{}

	result, err := srv.askHandler("sales")(context.Background(), req)
	require.NoError(t, err, "argument errors are tool results, not protocol errors")
	assert.True(t, result.IsError)
}

func TestAskTool_BlankQuestionIsToolError(t *testing.T) {
	asker := &fakeAsker{}
	srv := newServer(asker)

	for _, question := range []string{"", "   ", "\n\t"} {
		result, err := srv.askHandler("sales")(context.Background(), askRequest(question))
		require.NoError(t, err)
		assert.True(t, result.IsError)
		assert.Contains(t, textOf(t, result), "question must not be empty")
	}

	assert.Empty(t, asker.lastReq.DomainID, "blank questions must not reach the engine")
}

func TestAskTool_EngineErrorCollapsed(t *testing.T) {
	asker := &fakeAsker{err: domain.ErrGenerationUnavailable("upstream 502 from llm-gw-3")}
	srv := newServer(asker)

	result, err := srv.askHandler("sales")(context.Background(), askRequest("q"))
	require.NoError(t, err)
	require.True(t, result.IsError)

	out := textOf(t, result)
	assert.Contains(t, out, domain.CodeInternalError)
	assert.NotContains(t, out, "llm-gw-3")
}

func TestListDomainsTool(t *testing.T) {
	srv := newServer(&fakeAsker{})

	result, err := srv.handleListDomains(context.Background(), mcp.CallToolRequest{})
	require.NoError(t, err)
	assert.Equal(t, "sales", textOf(t, result))
}

func TestRenderAnswer_EmptyResult(t *testing.T) {
	out := renderAnswer(&expert.Answer{
		DomainID: "sales",
		Result:   &domain.ExecutionResult{Columns: []string{"n"}},
	})
	assert.Contains(t, out, `"rows": []`)
}
