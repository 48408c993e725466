package feed

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/sync/errgroup"

	"github.com/onnwee/autolist/internal/account"
	"github.com/onnwee/autolist/internal/comment"
	"github.com/onnwee/autolist/internal/geo"
	"github.com/onnwee/autolist/internal/listing"
	"github.com/onnwee/autolist/internal/ranking"
	"github.com/onnwee/autolist/internal/social"
	"github.com/onnwee/autolist/internal/tracing"
)

// Default aggregator settings.
const (
	DefaultSignalTimeout   = 500 * time.Millisecond
	DefaultBreakerFailures = 5
	DefaultBreakerCooldown = 30 * time.Second
)

// AggregatorConfig tunes signal fetching.
type AggregatorConfig struct {
	// SignalTimeout bounds each signal round trip.
	SignalTimeout time.Duration

	// BreakerFailures is the consecutive failure count that opens a breaker.
	BreakerFailures uint32

	// BreakerCooldown is how long an open breaker rejects calls before probing.
	BreakerCooldown time.Duration
}

// Degradation records which signals were replaced by neutral values.
type Degradation struct {
	Follows  bool
	Comments bool
}

// Any reports whether any signal degraded.
func (d Degradation) Any() bool {
	return d.Follows || d.Comments
}

// Signals lists the degraded signal names.
func (d Degradation) Signals() []string {
	var out []string
	if d.Follows {
		out = append(out, SignalFollows)
	}
	if d.Comments {
		out = append(out, SignalComments)
	}
	return out
}

// Aggregator gathers per-candidate ranking signals with one batched round
// trip per signal source, issued concurrently.
type Aggregator struct {
	follows  social.FollowStore
	comments comment.CountStore
	timeout  time.Duration

	followBreaker  *gobreaker.CircuitBreaker[map[int64]bool]
	commentBreaker *gobreaker.CircuitBreaker[map[int64]int]

	metrics *Metrics
	logger  *slog.Logger
}

// NewAggregator creates an aggregator. Zero config values take defaults and
// nil metrics or logger are allowed.
func NewAggregator(follows social.FollowStore, comments comment.CountStore, cfg AggregatorConfig, metrics *Metrics, logger *slog.Logger) *Aggregator {
	if cfg.SignalTimeout <= 0 {
		cfg.SignalTimeout = DefaultSignalTimeout
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = DefaultBreakerFailures
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = DefaultBreakerCooldown
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "feed_aggregator")

	a := &Aggregator{
		follows:  follows,
		comments: comments,
		timeout:  cfg.SignalTimeout,
		metrics:  metrics,
		logger:   logger,
	}
	a.followBreaker = gobreaker.NewCircuitBreaker[map[int64]bool](a.breakerSettings(SignalFollows, cfg))
	a.commentBreaker = gobreaker.NewCircuitBreaker[map[int64]int](a.breakerSettings(SignalComments, cfg))
	metrics.SetBreakerState(SignalFollows, 0)
	metrics.SetBreakerState(SignalComments, 0)
	return a
}

func (a *Aggregator) breakerSettings(signal string, cfg AggregatorConfig) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        signal,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		// A request abandoned by its caller says nothing about the source.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			a.logger.Warn("signal circuit breaker state change",
				"signal", name,
				"from", from.String(),
				"to", to.String())
			a.metrics.SetBreakerState(name, breakerStateValue(to))
		},
	}
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// Aggregate returns one Signals value per candidate, in candidate order.
// Failed, slow, or circuit-broken sources yield neutral values (not followed,
// zero comments) and are reported in the returned Degradation; Aggregate
// itself never fails. Distances are only computed when the viewer opted into
// location and has coordinates.
func (a *Aggregator) Aggregate(ctx context.Context, viewerID int64, prefs account.Preferences, candidates []*listing.Listing, now time.Time) ([]ranking.Signals, Degradation) {
	var deg Degradation
	if len(candidates) == 0 {
		return []ranking.Signals{}, deg
	}

	ctx, endSpan := tracing.StartSpan(ctx, "feed.aggregate")
	defer endSpan(nil)

	listingIDs := make([]int64, len(candidates))
	ownerIDs := make([]int64, 0, len(candidates))
	seenOwners := make(map[int64]struct{}, len(candidates))
	for i, l := range candidates {
		listingIDs[i] = l.ID
		if _, ok := seenOwners[l.OwnerID]; !ok {
			seenOwners[l.OwnerID] = struct{}{}
			ownerIDs = append(ownerIDs, l.OwnerID)
		}
	}

	var (
		followed map[int64]bool
		counts   map[int64]int
	)

	// Sub-fetches degrade instead of failing, so the group only joins.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var ok bool
		followed, ok = fetchSignal(gctx, a, SignalFollows, a.followBreaker, func(ctx context.Context) (map[int64]bool, error) {
			return a.follows.FollowedAmong(ctx, viewerID, ownerIDs)
		})
		deg.Follows = !ok
		return nil
	})
	g.Go(func() error {
		var ok bool
		counts, ok = fetchSignal(gctx, a, SignalComments, a.commentBreaker, func(ctx context.Context) (map[int64]int, error) {
			return a.comments.CountByListings(ctx, listingIDs)
		})
		deg.Comments = !ok
		return nil
	})
	_ = g.Wait()

	useLocation := prefs.HasUsableLocation()
	out := make([]ranking.Signals, len(candidates))
	for i, l := range candidates {
		s := ranking.Signals{
			CommentCount:          counts[l.ID],
			Verified:              l.Verified,
			FollowedOwner:         followed[l.OwnerID],
			HoursSincePublication: ranking.HoursSince(l.PublishedAt, now),
		}
		if useLocation && l.Location != nil {
			d := geo.Distance(*prefs.Location, *l.Location)
			s.Distance = &d
		}
		out[i] = s
	}
	return out, deg
}

// fetchSignal runs fetch behind cb with the per-signal timeout. It returns
// the zero value and false when the source failed for any reason.
func fetchSignal[T any](ctx context.Context, a *Aggregator, signal string, cb *gobreaker.CircuitBreaker[T], fetch func(context.Context) (T, error)) (T, bool) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	result, err := cb.Execute(func() (T, error) {
		return fetch(ctx)
	})
	if err == nil {
		return result, true
	}

	var zero T
	if ctx.Err() != nil && errors.Is(context.Cause(ctx), context.Canceled) {
		// Parent request went away; not a source failure.
		return zero, false
	}
	a.metrics.IncSignalDegraded(signal)
	a.logger.WarnContext(ctx, "signal fetch degraded, using neutral values",
		"signal", signal,
		"error", err,
		"breaker_state", cb.State().String())
	return zero, false
}
