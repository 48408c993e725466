package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

// unmatchedRoute labels requests that matched no known route.
const unmatchedRoute = "unmatched"

// knownRoutes lists the static routes served by the API.
var knownRoutes = map[string]bool{
	"/v1/feed":            true,
	"/v1/listings/search": true,
	"/health":             true,
	"/ready":              true,
	"/metrics":            true,
}

// normalizePath maps a request path to a bounded label. Unknown paths
// (scanners, typos) collapse into one label to cap metric cardinality.
func normalizePath(path string) string {
	if len(path) > 1 && path[len(path)-1] == '/' {
		path = path[:len(path)-1]
	}
	if knownRoutes[path] {
		return path
	}
	return unmatchedRoute
}

// routeLabel prefers the chi route pattern, which is only populated once the
// router has matched the request.
func routeLabel(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" && pattern != "/*" {
			return pattern
		}
	}
	return normalizePath(r.URL.Path)
}

// HTTPMetrics records duration, count and response size per route.
// Probe endpoints (/health, /ready) are excluded.
func HTTPMetrics(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" || r.URL.Path == "/ready" {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			sr := recordStatus(w)
			next.ServeHTTP(sr, r)

			metrics.ObserveHTTPRequest(
				r.Method,
				routeLabel(r),
				strconv.Itoa(sr.status),
				time.Since(start).Seconds(),
				sr.written,
			)
		})
	}
}
