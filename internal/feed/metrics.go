package feed

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics names as constants for consistency.
const (
	MetricFeedRequestsTotal      = "feed_requests_total"
	MetricFeedRankDuration       = "feed_rank_duration_seconds"
	MetricFeedSignalDegraded     = "feed_signal_degraded_total"
	MetricFeedCandidates         = "feed_candidates"
	MetricFeedSignalBreakerState = "feed_signal_breaker_state"
)

// Query modes for labeling.
const (
	ModeRanked = "ranked"
	ModeFilter = "filter"
)

// Request status values for labeling.
const (
	StatusSuccess  = "success"
	StatusInvalid  = "invalid"
	StatusNotFound = "not_found"
	StatusError    = "error"
)

// Signal names for degradation labeling.
const (
	SignalFollows  = "follows"
	SignalComments = "comments"
)

// Metrics contains Prometheus metrics for feed queries.
// All operations are thread-safe and a nil *Metrics is a no-op.
type Metrics struct {
	requestsTotal  *prometheus.CounterVec
	rankDuration   *prometheus.HistogramVec
	signalDegraded *prometheus.CounterVec
	candidates     prometheus.Histogram
	breakerState   *prometheus.GaugeVec
}

// NewMetrics creates and returns a new Metrics instance with all collectors initialized.
// The metrics are not registered; call Register to register them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricFeedRequestsTotal,
				Help: "Total number of feed queries by mode and status",
			},
			[]string{"mode", "status"},
		),
		rankDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricFeedRankDuration,
				Help:    "Histogram of feed query duration in seconds by mode",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
			},
			[]string{"mode"},
		),
		signalDegraded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricFeedSignalDegraded,
				Help: "Total number of ranked queries that scored with a neutral signal because a fetch failed",
			},
			[]string{"signal"},
		),
		candidates: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricFeedCandidates,
			Help:    "Histogram of candidate set size per ranked query",
			Buckets: []float64{0, 10, 50, 100, 250, 500, 1000},
		}),
		breakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: MetricFeedSignalBreakerState,
				Help: "Circuit breaker state per signal source (0=closed, 1=half-open, 2=open)",
			},
			[]string{"signal"},
		),
	}
}

// Register registers all metrics with the given registry.
// Returns an error if registration fails.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// IncRequests increments the request counter for mode and status.
func (m *Metrics) IncRequests(mode, status string) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(mode, status).Inc()
}

// ObserveDuration records a query duration sample.
func (m *Metrics) ObserveDuration(mode string, seconds float64) {
	if m == nil {
		return
	}
	m.rankDuration.WithLabelValues(mode).Observe(seconds)
}

// IncSignalDegraded increments the degradation counter for signal.
func (m *Metrics) IncSignalDegraded(signal string) {
	if m == nil {
		return
	}
	m.signalDegraded.WithLabelValues(signal).Inc()
}

// ObserveCandidates records the candidate set size of a ranked query.
func (m *Metrics) ObserveCandidates(n int) {
	if m == nil {
		return
	}
	m.candidates.Observe(float64(n))
}

// SetBreakerState records the circuit breaker state for signal.
func (m *Metrics) SetBreakerState(signal string, state float64) {
	if m == nil {
		return
	}
	m.breakerState.WithLabelValues(signal).Set(state)
}

// Collectors returns all Prometheus collectors for testing.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.requestsTotal,
		m.rankDuration,
		m.signalDegraded,
		m.candidates,
		m.breakerState,
	}
}
