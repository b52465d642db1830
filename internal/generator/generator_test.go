package generator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/james-tn/dbx-mcp-copilot/internal/domain"
)

func testContext() *domain.DomainContext {
	return &domain.DomainContext{
		DomainID:    "sales",
		Description: "Retail order data.",
		Tables: []domain.TableSpec{
			{
				QualifiedName: "sales.orders",
				Columns: []domain.ColumnSpec{
					{Name: "order_id", Type: "BIGINT"},
					{Name: "amount", Type: "DECIMAL(18,2)", Description: "order total"},
				},
				SensitivityNotes: "amounts are confidential",
			},
		},
		Metrics:  map[string]string{"revenue": "SUM(amount)"},
		Rules:    []string{"Exclude negative amounts."},
		Examples: []domain.Example{{Question: "how many orders?", SQL: "SELECT COUNT(*) FROM sales.orders"}},
	}
}

func completionServer(t *testing.T, content string, capture *chatRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		if capture != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(capture))
		}
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": content}},
			},
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func newTestGenerator(endpoint string) *LLMGenerator {
	return New(Config{Endpoint: endpoint, APIKey: "test-key", Model: "gpt-4o-mini", Timeout: 5 * time.Second}, nil)
}

func TestGenerate_ReturnsCandidate(t *testing.T) {
	var captured chatRequest
	srv := completionServer(t, "SELECT SUM(amount) FROM sales.orders", &captured)
	defer srv.Close()

	cand, err := newTestGenerator(srv.URL).Generate(context.Background(), "total order value?", testContext(), "", 1)
	require.NoError(t, err)
	assert.Equal(t, "SELECT SUM(amount) FROM sales.orders", cand.Text)
	assert.Equal(t, "sales", cand.DomainID)
	assert.Equal(t, 1, cand.Attempt)

	require.Len(t, captured.Messages, 2)
	assert.Equal(t, "system", captured.Messages[0].Role)
	assert.Contains(t, captured.Messages[0].Content, "sales.orders")
	assert.Contains(t, captured.Messages[0].Content, "revenue = SUM(amount)")
	assert.Contains(t, captured.Messages[0].Content, "Exclude negative amounts.")
	assert.Contains(t, captured.Messages[0].Content, "SELECT COUNT(*) FROM sales.orders")
	assert.Equal(t, "total order value?", captured.Messages[1].Content)
}

func TestGenerate_FeedsBackPriorRejection(t *testing.T) {
	var captured chatRequest
	srv := completionServer(t, "SELECT order_id FROM sales.orders", &captured)
	defer srv.Close()

	_, err := newTestGenerator(srv.URL).Generate(context.Background(), "list orders",
		testContext(), `rejected:UnknownColumn column "salary" is not declared by domain "sales"`, 2)
	require.NoError(t, err)

	require.Len(t, captured.Messages, 2)
	assert.Contains(t, captured.Messages[1].Content, "The previous attempt was rejected because:")
	assert.Contains(t, captured.Messages[1].Content, `column "salary" is not declared`)
}

func TestGenerate_StripsCodeFences(t *testing.T) {
	cases := map[string]string{
		"sql fence":   "```sql\nSELECT 1\n```",
		"bare fence":  "```\nSELECT 1\n```",
		"no fence":    "  SELECT 1  ",
		"extra space": "```sql\nSELECT 1\n```\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			srv := completionServer(t, content, nil)
			defer srv.Close()

			cand, err := newTestGenerator(srv.URL).Generate(context.Background(), "q", testContext(), "", 1)
			require.NoError(t, err)
			assert.Equal(t, "SELECT 1", cand.Text)
		})
	}
}

func TestGenerate_EndpointErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestGenerator(srv.URL).Generate(context.Background(), "q", testContext(), "", 1)
	requireUnavailable(t, err)
}

func TestGenerate_UnreachableEndpointIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // connection refused from here on

	_, err := newTestGenerator(srv.URL).Generate(context.Background(), "q", testContext(), "", 1)
	requireUnavailable(t, err)
}

func TestGenerate_EmptyCompletionIsUnavailable(t *testing.T) {
	srv := completionServer(t, "   ", nil)
	defer srv.Close()

	_, err := newTestGenerator(srv.URL).Generate(context.Background(), "q", testContext(), "", 1)
	requireUnavailable(t, err)
}

func TestGenerate_NoChoicesIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	_, err := newTestGenerator(srv.URL).Generate(context.Background(), "q", testContext(), "", 1)
	requireUnavailable(t, err)
}

func requireUnavailable(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	var unavailable *domain.GenerationUnavailableError
	require.True(t, errors.As(err, &unavailable), "got %T: %v", err, err)
}
