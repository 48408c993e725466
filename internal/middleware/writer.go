package middleware

import (
	"context"
	"net/http"
)

// statusRecorder remembers the status and body size of a response. Logging
// and HTTPMetrics both wrap with it; an inner wrapper reuses the outer one.
type statusRecorder struct {
	http.ResponseWriter
	status  int
	written int64
	sent    bool

	// ctx is the latest request context reported by a downstream handler.
	ctx context.Context
}

func recordStatus(w http.ResponseWriter) *statusRecorder {
	if sr, ok := w.(*statusRecorder); ok {
		return sr
	}
	return &statusRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (sr *statusRecorder) WriteHeader(code int) {
	if sr.sent {
		return
	}
	sr.status, sr.sent = code, true
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	sr.sent = true
	n, err := sr.ResponseWriter.Write(b)
	sr.written += int64(n)
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

type recorderKey struct{}

// UpdateResponseContext hands a derived request context back to the logging
// middleware so values set downstream (error code, viewer) reach the access
// log. The recorder is found through ctx, so wrappers installed between
// Logging and the handler do not hide it. It does nothing outside Logging.
func UpdateResponseContext(w http.ResponseWriter, ctx context.Context) {
	sr, ok := ctx.Value(recorderKey{}).(*statusRecorder)
	if !ok {
		sr, ok = w.(*statusRecorder)
	}
	if ok {
		sr.ctx = ctx
	}
}
