// Package api provides the HTTP surface of the listing feed: handlers, the
// JSON error envelope and the router.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/onnwee/autolist/internal/middleware"
)

// Error codes carried in the envelope's "code" field.
const (
	ErrCodeValidation       = "validation_error"
	ErrCodeBadRequest       = "bad_request"
	ErrCodeAuthFailed       = "auth_failed"
	ErrCodeNotFound         = "not_found"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeRateLimited      = "rate_limited"
	ErrCodeInternal         = "internal_error"
)

var codeStatus = map[string]int{
	ErrCodeValidation:       http.StatusBadRequest,
	ErrCodeBadRequest:       http.StatusBadRequest,
	ErrCodeAuthFailed:       http.StatusUnauthorized,
	ErrCodeNotFound:         http.StatusNotFound,
	ErrCodeMethodNotAllowed: http.StatusMethodNotAllowed,
	ErrCodeRateLimited:      http.StatusTooManyRequests,
}

// StatusCodeMapping returns the HTTP status for an error code. Unknown
// codes map to 500.
func StatusCodeMapping(code string) int {
	if status, ok := codeStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// ErrorResponse is the body of every non-2xx API response:
//
//	{"error": {"code": "not_found", "message": "viewer not found"}}
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail pairs a stable code with a human-readable message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError sends the error envelope and reports code to the access log.
// A code already set on ctx by an inner layer is kept.
//
//	api.WriteError(w, r.Context(), http.StatusNotFound, api.ErrCodeNotFound, "viewer not found")
func WriteError(w http.ResponseWriter, ctx context.Context, status int, code, message string) {
	if middleware.GetErrorCode(ctx) == "" {
		ctx = middleware.SetErrorCode(ctx, code)
	}
	middleware.UpdateResponseContext(w, ctx)
	writeJSON(w, ctx, status, ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
}

// writeJSON encodes v as the response body with the given status.
func writeJSON(w http.ResponseWriter, ctx context.Context, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}
