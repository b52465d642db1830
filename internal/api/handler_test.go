package api

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/james-tn/dbx-mcp-copilot/internal/domain"
	"github.com/james-tn/dbx-mcp-copilot/internal/expert"
)

type fakeAsker struct {
	answer  *expert.Answer
	err     error
	lastReq expert.Request
	calls   int
}

func (f *fakeAsker) Ask(_ context.Context, req expert.Request) (*expert.Answer, error) {
	f.calls++
	f.lastReq = req
	return f.answer, f.err
}

type fakeRegistry []string

func (f fakeRegistry) Lookup(string) (*domain.DomainContext, bool) { return nil, false }
func (f fakeRegistry) Domains() []string                           { return f }

func newRouter(asker *fakeAsker) http.Handler {
	h := NewHandler(asker, fakeRegistry{"sales", "support"}, slog.New(slog.DiscardHandler))
	return h.Router(RouterConfig{})
}

func postAsk(t *testing.T, router http.Handler, body string, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/ask", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestAsk_Success(t *testing.T) {
	asker := &fakeAsker{answer: &expert.Answer{
		DomainID: "sales",
		Result: &domain.ExecutionResult{
			Columns:   []string{"region", "total"},
			Rows:      []map[string]interface{}{{"region": "emea", "total": 42}},
			RowCount:  1,
			Truncated: false,
		},
	}}
	router := newRouter(asker)

	rec := postAsk(t, router, `{"domain":"sales","question":"total by region?"}`, "h.p.s")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp askResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "sales", resp.Domain)
	assert.Equal(t, []string{"region", "total"}, resp.Columns)
	assert.Equal(t, 1, resp.RowCount)

	assert.Equal(t, "sales", asker.lastReq.DomainID)
	assert.Equal(t, "total by region?", asker.lastReq.Question)
	assert.Equal(t, "h.p.s", asker.lastReq.Credential, "credential must reach the engine unmodified")
}

func TestAsk_EmptyRowsEncodeAsArray(t *testing.T) {
	asker := &fakeAsker{answer: &expert.Answer{
		DomainID: "sales",
		Result:   &domain.ExecutionResult{Columns: []string{"n"}},
	}}
	rec := postAsk(t, newRouter(asker), `{"domain":"sales","question":"q"}`, "tok")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"rows":[]`)
}

func TestAsk_ErrorMapping(t *testing.T) {
	cases := map[string]struct {
		err        error
		wantStatus int
		wantCode   string
	}{
		"auth":          {domain.ErrAuthentication("credential is expired"), http.StatusUnauthorized, domain.CodeAuthenticationFailure},
		"unknown":       {&domain.UnknownDomainError{DomainID: "hr"}, http.StatusNotFound, domain.CodeUnknownDomain},
		"ungeneratable": {&domain.UngeneratableQueryError{Attempts: 2, LastReason: domain.ReasonUnknownColumn}, http.StatusUnprocessableEntity, domain.CodeUngeneratableQuery},
		"denied":        {domain.ErrExecutionDenied("no SELECT grant"), http.StatusForbidden, domain.CodeExecutionDenied},
		"timeout":       {domain.ErrExecutionTimeout("warehouse deadline"), http.StatusGatewayTimeout, domain.CodeExecutionTimeout},
		"internal":      {domain.ErrGenerationUnavailable("model offline"), http.StatusInternalServerError, domain.CodeInternalError},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			rec := postAsk(t, newRouter(&fakeAsker{err: tc.err}), `{"domain":"sales","question":"q"}`, "tok")
			require.Equal(t, tc.wantStatus, rec.Code)

			var body errorBody
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, tc.wantCode, body.Code)
		})
	}
}

func TestAsk_InternalDetailNotLeaked(t *testing.T) {
	rec := postAsk(t, newRouter(&fakeAsker{err: domain.ErrGenerationUnavailable("upstream 502 from llm-gw-3")}),
		`{"domain":"sales","question":"q"}`, "tok")

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "llm-gw-3")
	assert.Contains(t, rec.Body.String(), "internal error while answering the question")
}

func TestAsk_BadRequests(t *testing.T) {
	asker := &fakeAsker{}
	router := newRouter(asker)

	for name, body := range map[string]string{
		"not json":       `select * from orders`,
		"missing domain": `{"question":"q"}`,
		"blank question": `{"domain":"sales","question":"  "}`,
		"unknown field":  `{"domain":"sales","question":"q","sql":"SELECT 1"}`,
	} {
		t.Run(name, func(t *testing.T) {
			rec := postAsk(t, router, body, "tok")
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
	assert.Zero(t, asker.calls)
}

func TestAsk_MissingAuthorizationForwardedAsEmptyCredential(t *testing.T) {
	asker := &fakeAsker{err: domain.ErrAuthentication("missing credential")}
	rec := postAsk(t, newRouter(asker), `{"domain":"sales","question":"q"}`, "")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, asker.lastReq.Credential)
}

func TestListDomains(t *testing.T) {
	rec := httptest.NewRecorder()
	newRouter(&fakeAsker{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/domains", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp domainsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, []string{"sales", "support"}, resp.Domains)
}

func TestHealthz(t *testing.T) {
	rec := httptest.NewRecorder()
	newRouter(&fakeAsker{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}
