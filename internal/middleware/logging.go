// Package middleware provides HTTP middleware components for the API server.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"
)

type (
	viewerIDKey  struct{}
	errorCodeKey struct{}
)

// SetViewerID stores the authenticated viewer in ctx.
func SetViewerID(ctx context.Context, viewerID int64) context.Context {
	return context.WithValue(ctx, viewerIDKey{}, viewerID)
}

// GetViewerID reports the authenticated viewer, false for anonymous requests.
func GetViewerID(ctx context.Context) (int64, bool) {
	id, _ := ctx.Value(viewerIDKey{}).(int64)
	return id, id > 0
}

// SetErrorCode tags ctx with the machine-readable code of an error response.
func SetErrorCode(ctx context.Context, code string) context.Context {
	return context.WithValue(ctx, errorCodeKey{}, code)
}

// GetErrorCode returns the code set by SetErrorCode, or "".
func GetErrorCode(ctx context.Context) string {
	code, _ := ctx.Value(errorCodeKey{}).(string)
	return code
}

// NewLogger returns a JSON logger at info level for production and a text
// logger at debug level everywhere else.
func NewLogger(env string) *slog.Logger {
	if env == "production" {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func levelFor(status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	}
	return slog.LevelInfo
}

// Logging writes one "request completed" line per request with method, path,
// status, latency_ms and size, plus request_id, viewer_id and error_code
// when known. Server errors log at error level and client errors at warn.
// Recovery must sit outside it for panics to be logged.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := recordStatus(w)
			r = r.WithContext(context.WithValue(r.Context(), recorderKey{}, sr))
			next.ServeHTTP(sr, r)

			ctx := r.Context()
			if sr.ctx != nil {
				ctx = sr.ctx
			}

			attrs := make([]slog.Attr, 0, 8)
			attrs = append(attrs,
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", sr.status),
				slog.Int64("latency_ms", time.Since(start).Milliseconds()),
				slog.Int64("size", sr.written),
			)
			if id := GetRequestID(ctx); id != "" {
				attrs = append(attrs, slog.String("request_id", id))
			}
			if id, ok := GetViewerID(ctx); ok {
				attrs = append(attrs, slog.Int64("viewer_id", id))
			}
			if code := GetErrorCode(ctx); code != "" && sr.status >= 400 {
				attrs = append(attrs, slog.String("error_code", code))
			}
			logger.LogAttrs(ctx, levelFor(sr.status), "request completed", attrs...)
		})
	}
}
