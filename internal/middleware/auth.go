package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/onnwee/autolist/internal/auth"
)

// AccessTokenValidator resolves a bearer token to a viewer ID.
// *auth.JWTService satisfies it.
type AccessTokenValidator interface {
	ValidateAccessToken(token string) (int64, error)
}

// errMissingBearer reports an absent or non-Bearer Authorization header.
var errMissingBearer = errors.New("missing bearer token")

// bearerToken extracts the token from "Authorization: Bearer <token>".
// The scheme match is case-insensitive.
func bearerToken(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", errMissingBearer
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", errMissingBearer
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", errMissingBearer
	}
	return token, nil
}

// authFailureReason maps a validation error to a metric label.
func authFailureReason(err error) string {
	switch {
	case errors.Is(err, errMissingBearer):
		return "missing"
	case errors.Is(err, auth.ErrExpiredToken):
		return "expired"
	case errors.Is(err, auth.ErrWrongTokenType), errors.Is(err, auth.ErrInvalidViewerID):
		return "malformed"
	default:
		return "invalid"
	}
}

// RequireAuth rejects requests without a valid access token with 401 and
// stores the viewer ID in the request context otherwise. metrics may be nil.
func RequireAuth(validator AccessTokenValidator, metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := bearerToken(r)
			var viewerID int64
			if err == nil {
				viewerID, err = validator.ValidateAccessToken(token)
			}
			if err != nil {
				if metrics != nil {
					metrics.IncAuthFailures(authFailureReason(err))
				}
				message := "Authentication required"
				if errors.Is(err, auth.ErrExpiredToken) {
					message = "Access token has expired"
				}
				w.Header().Set("WWW-Authenticate", `Bearer realm="autolist"`)
				writeError(w, r, http.StatusUnauthorized, "auth_failed", message)
				return
			}

			ctx := SetViewerID(r.Context(), viewerID)
			UpdateResponseContext(w, ctx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth attaches the viewer ID when a valid access token is present.
// Requests without an Authorization header pass through anonymously; a
// present but invalid token is still rejected so clients notice expiry.
func OptionalAuth(validator AccessTokenValidator, metrics *Metrics) func(http.Handler) http.Handler {
	required := RequireAuth(validator, metrics)
	return func(next http.Handler) http.Handler {
		authed := required(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") == "" {
				next.ServeHTTP(w, r)
				return
			}
			authed.ServeHTTP(w, r)
		})
	}
}

// writeError writes the API error envelope from inside the middleware chain
// and records the code for the access log.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	UpdateResponseContext(w, SetErrorCode(r.Context(), code))

	body, _ := json.Marshal(map[string]map[string]string{
		"error": {"code": code, "message": message},
	})
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
