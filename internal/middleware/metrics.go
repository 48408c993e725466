package middleware

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names for the HTTP layer.
const (
	MetricRateLimitRequests     = "rate_limit_requests_total"
	MetricRateLimitBlocked      = "rate_limit_blocked_total"
	MetricRateLimitRedisErrors  = "rate_limit_redis_errors_total"
	MetricHTTPRequestDuration   = "http_request_duration_seconds"
	MetricHTTPRequestsTotal     = "http_requests_total"
	MetricHTTPResponseSizeBytes = "http_response_size_bytes"
	MetricAuthFailures          = "auth_failures_total"
)

var requestLabels = []string{"method", "route", "status"}

// Metrics holds the HTTP-layer collectors. Safe for concurrent use.
type Metrics struct {
	rateLimitRequests    *prometheus.CounterVec
	rateLimitBlocked     *prometheus.CounterVec
	rateLimitRedisErrors prometheus.Counter
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsTotal    *prometheus.CounterVec
	httpResponseSize     *prometheus.HistogramVec
	authFailures         *prometheus.CounterVec
}

func counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: help}, labels)
}

func histogramVec(name, help string, buckets []float64) *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: name, Help: help, Buckets: buckets}, requestLabels)
}

// NewMetrics builds unregistered collectors; see Register.
func NewMetrics() *Metrics {
	return &Metrics{
		rateLimitRequests: counterVec(MetricRateLimitRequests,
			"Rate limit checks by endpoint and key type.", "endpoint", "key_type"),
		rateLimitBlocked: counterVec(MetricRateLimitBlocked,
			"Requests rejected by the rate limiter.", "endpoint", "key_type"),
		rateLimitRedisErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricRateLimitRedisErrors,
			Help: "Redis failures during rate limiting; each one let the request through.",
		}),
		httpRequestDuration: histogramVec(MetricHTTPRequestDuration,
			"HTTP request latency in seconds.", []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2}),
		httpRequestsTotal: counterVec(MetricHTTPRequestsTotal,
			"HTTP requests served.", requestLabels...),
		// 100 B up to roughly 1.6 MB
		httpResponseSize: histogramVec(MetricHTTPResponseSizeBytes,
			"HTTP response body size in bytes.", prometheus.ExponentialBuckets(100, 4, 8)),
		authFailures: counterVec(MetricAuthFailures,
			"Rejected bearer tokens by reason.", "reason"),
	}
}

// Register adds every collector to reg, stopping at the first conflict.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// IncRateLimitRequests counts a rate limit check.
// keyType is "viewer" or "ip".
func (m *Metrics) IncRateLimitRequests(endpoint, keyType string) {
	m.rateLimitRequests.WithLabelValues(endpoint, keyType).Inc()
}

// IncRateLimitBlocked counts a rejected request.
func (m *Metrics) IncRateLimitBlocked(endpoint, keyType string) {
	m.rateLimitBlocked.WithLabelValues(endpoint, keyType).Inc()
}

// IncRateLimitRedisErrors counts a fail-open event.
func (m *Metrics) IncRateLimitRedisErrors() {
	m.rateLimitRedisErrors.Inc()
}

// IncAuthFailures counts a rejected token. reason is one of
// "missing", "malformed", "expired", "invalid".
func (m *Metrics) IncAuthFailures(reason string) {
	m.authFailures.WithLabelValues(reason).Inc()
}

// ObserveHTTPRequest records one completed request.
func (m *Metrics) ObserveHTTPRequest(method, route, status string, duration float64, responseSize int64) {
	m.httpRequestDuration.WithLabelValues(method, route, status).Observe(duration)
	m.httpRequestsTotal.WithLabelValues(method, route, status).Inc()
	m.httpResponseSize.WithLabelValues(method, route, status).Observe(float64(responseSize))
}

// Collectors lists the collectors in registration order.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.rateLimitRequests,
		m.rateLimitBlocked,
		m.rateLimitRedisErrors,
		m.httpRequestDuration,
		m.httpRequestsTotal,
		m.httpResponseSize,
		m.authFailures,
	}
}
