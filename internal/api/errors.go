package api

import (
	"encoding/json"
	"net/http"

	"github.com/james-tn/dbx-mcp-copilot/internal/domain"
)

// errorBody is the JSON error envelope. The message is always safe for the
// caller: internal detail is collapsed before it gets here.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// httpStatus maps the surface error codes to HTTP statuses.
func httpStatus(code string) int {
	switch code {
	case domain.CodeAuthenticationFailure:
		return http.StatusUnauthorized
	case domain.CodeUnknownDomain:
		return http.StatusNotFound
	case domain.CodeUngeneratableQuery:
		return http.StatusUnprocessableEntity
	case domain.CodeExecutionDenied:
		return http.StatusForbidden
	case domain.CodeExecutionTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeDomainError(w http.ResponseWriter, err error) {
	code := domain.ErrorCode(err)
	writeJSON(w, httpStatus(code), errorBody{Code: code, Message: domain.UserMessage(err)})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Code: "BAD_REQUEST", Message: message})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
