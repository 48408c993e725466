package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/onnwee/autolist/internal/auth"
)

type stubValidator struct {
	id  int64
	err error
}

func (s stubValidator) ValidateAccessToken(string) (int64, error) {
	return s.id, s.err
}

// viewerEcho responds with the viewer in context, or 0 when anonymous.
func viewerEcho() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := GetViewerID(r.Context())
		_ = json.NewEncoder(w).Encode(map[string]int64{"viewer_id": id})
	})
}

func TestRequireAuth(t *testing.T) {
	jwtService := auth.NewJWTService("test-secret-at-least-32-bytes-long!!", "")
	access, err := jwtService.GenerateAccessToken(42)
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}
	refresh, err := jwtService.GenerateRefreshToken(42)
	if err != nil {
		t.Fatalf("GenerateRefreshToken: %v", err)
	}

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantViewer int64
		wantReason string
	}{
		{name: "valid access token", header: "Bearer " + access, wantStatus: http.StatusOK, wantViewer: 42},
		{name: "lowercase scheme", header: "bearer " + access, wantStatus: http.StatusOK, wantViewer: 42},
		{name: "missing header", header: "", wantStatus: http.StatusUnauthorized, wantReason: "missing"},
		{name: "basic scheme", header: "Basic dXNlcjpwYXNz", wantStatus: http.StatusUnauthorized, wantReason: "missing"},
		{name: "empty bearer", header: "Bearer   ", wantStatus: http.StatusUnauthorized, wantReason: "missing"},
		{name: "garbage token", header: "Bearer not.a.jwt", wantStatus: http.StatusUnauthorized, wantReason: "invalid"},
		{name: "refresh token", header: "Bearer " + refresh, wantStatus: http.StatusUnauthorized, wantReason: "malformed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metrics := NewMetrics()
			handler := RequireAuth(jwtService, metrics)(viewerEcho())

			req := httptest.NewRequest(http.MethodGet, "/v1/feed", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d, body %s", rr.Code, tt.wantStatus, rr.Body.String())
			}

			if tt.wantStatus == http.StatusOK {
				var body map[string]int64
				if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
					t.Fatalf("decode: %v", err)
				}
				if body["viewer_id"] != tt.wantViewer {
					t.Errorf("viewer_id = %d, want %d", body["viewer_id"], tt.wantViewer)
				}
				return
			}

			var env struct {
				Error struct {
					Code string `json:"code"`
				} `json:"error"`
			}
			if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
				t.Fatalf("decode error envelope: %v", err)
			}
			if env.Error.Code != "auth_failed" {
				t.Errorf("error code = %q, want auth_failed", env.Error.Code)
			}
			if rr.Header().Get("WWW-Authenticate") == "" {
				t.Error("expected WWW-Authenticate header")
			}
			if got := testutil.ToFloat64(metrics.authFailures.WithLabelValues(tt.wantReason)); got != 1 {
				t.Errorf("auth failures{reason=%s} = %v, want 1", tt.wantReason, got)
			}
		})
	}
}

func TestRequireAuth_ExpiredMessage(t *testing.T) {
	handler := RequireAuth(stubValidator{err: auth.ErrExpiredToken}, nil)(viewerEcho())

	req := httptest.NewRequest(http.MethodGet, "/v1/feed", nil)
	req.Header.Set("Authorization", "Bearer whatever")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
	if !bytes.Contains(rr.Body.Bytes(), []byte("expired")) {
		t.Errorf("expected expiry message, got %s", rr.Body.String())
	}
}

func TestOptionalAuth(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		validator  stubValidator
		wantStatus int
		wantViewer int64
	}{
		{name: "anonymous", wantStatus: http.StatusOK},
		{name: "authenticated", header: "Bearer ok", validator: stubValidator{id: 7}, wantStatus: http.StatusOK, wantViewer: 7},
		{name: "invalid token still rejected", header: "Bearer bad", validator: stubValidator{err: auth.ErrInvalidToken}, wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := OptionalAuth(tt.validator, nil)(viewerEcho())

			req := httptest.NewRequest(http.MethodGet, "/v1/listings/search", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if rr.Code == http.StatusOK {
				var body map[string]int64
				_ = json.Unmarshal(rr.Body.Bytes(), &body)
				if body["viewer_id"] != tt.wantViewer {
					t.Errorf("viewer_id = %d, want %d", body["viewer_id"], tt.wantViewer)
				}
			}
		})
	}
}

func TestRequireAuth_LogsViewerAndErrorCode(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	ok := Logging(logger)(RequireAuth(stubValidator{id: 9}, nil)(viewerEcho()))
	req := httptest.NewRequest(http.MethodGet, "/v1/feed", nil)
	req.Header.Set("Authorization", "Bearer ok")
	ok.ServeHTTP(httptest.NewRecorder(), req)

	var entry testLogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("parse log: %v", err)
	}
	if entry.ViewerID != 9 {
		t.Errorf("viewer_id = %d, want 9", entry.ViewerID)
	}

	buf.Reset()
	denied := Logging(logger)(RequireAuth(stubValidator{err: auth.ErrInvalidToken}, nil)(viewerEcho()))
	req = httptest.NewRequest(http.MethodGet, "/v1/feed", nil)
	req.Header.Set("Authorization", "Bearer bad")
	denied.ServeHTTP(httptest.NewRecorder(), req)

	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("parse log: %v", err)
	}
	if entry.ErrorCode != "auth_failed" {
		t.Errorf("error_code = %q, want auth_failed", entry.ErrorCode)
	}
}
