package api

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"net/netip"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/onnwee/autolist/internal/middleware"
)

// InternalTokenHeader carries the scrape token for /metrics.
const InternalTokenHeader = "X-Internal-Token"

// RouterConfig wires handlers and middleware into the HTTP surface.
type RouterConfig struct {
	Feed   *FeedHandlers
	Health *HealthHandlers

	Tokens         middleware.AccessTokenValidator
	RateLimitStore middleware.RateLimitStore
	FeedLimit      middleware.RateLimitConfig
	SearchLimit    middleware.RateLimitConfig
	CORS           middleware.CORSConfig

	// TrustedProxies may set forwarding headers that pick the client IP
	// used as the anonymous rate limit key.
	TrustedProxies []netip.Prefix

	Metrics      *middleware.Metrics
	Gatherer     prometheus.Gatherer
	MetricsToken string

	Logger      *slog.Logger
	ServiceName string
}

// NewRouter builds the chi router. Middleware runs outermost first:
// panic recovery, request ID, access log, tracing, HTTP metrics, CORS. Feed
// routes then authenticate before rate limiting so limits key on the viewer.
func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "autolist-api"
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(middleware.Tracing(cfg.ServiceName))
	if cfg.Metrics != nil {
		r.Use(middleware.HTTPMetrics(cfg.Metrics))
	}
	r.Use(middleware.CORS(cfg.CORS))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, r.Context(), http.StatusNotFound, ErrCodeNotFound, "Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, r.Context(), http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "Method not allowed")
	})

	if cfg.Health != nil {
		r.Get("/health", cfg.Health.Health)
		r.Get("/ready", cfg.Health.Ready)
	}
	if cfg.Gatherer != nil {
		r.With(internalAuth(cfg.MetricsToken)).Handle("/metrics", metricsHandler(cfg.Gatherer))
	}

	if cfg.Feed != nil {
		store := cfg.RateLimitStore
		if store == nil {
			store = middleware.NewInMemoryRateLimitStore()
		}

		keyFunc := middleware.ViewerKeyFunc(cfg.TrustedProxies...)

		r.Route("/v1", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAuth(cfg.Tokens, cfg.Metrics))
				r.Use(middleware.RateLimiter(store, limitOrDefault(cfg.FeedLimit, middleware.DefaultFeedLimit()), keyFunc, cfg.Metrics))
				r.Get("/feed", cfg.Feed.Feed)
			})
			r.Group(func(r chi.Router) {
				r.Use(middleware.OptionalAuth(cfg.Tokens, cfg.Metrics))
				r.Use(middleware.RateLimiter(store, limitOrDefault(cfg.SearchLimit, middleware.DefaultSearchLimit()), keyFunc, cfg.Metrics))
				r.Get("/listings/search", cfg.Feed.Search)
			})
		})
	}

	return r
}

func limitOrDefault(cfg, def middleware.RateLimitConfig) middleware.RateLimitConfig {
	if cfg.Validate() != nil {
		return def
	}
	return cfg
}

// metricsHandler exposes the given registry for Prometheus scraping.
func metricsHandler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// internalAuth restricts access to requests carrying token in
// X-Internal-Token. An empty token disables the check.
func internalAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			got := r.Header.Get(InternalTokenHeader)
			if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				WriteError(w, r.Context(), http.StatusForbidden, ErrCodeAuthFailed, "Forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
