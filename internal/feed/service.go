// Package feed composes the personalized listing feed: it resolves viewer
// preferences, fetches candidates and their signals concurrently, scores each
// candidate with the ranking package, and pages the ordered result.
package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/onnwee/autolist/internal/account"
	"github.com/onnwee/autolist/internal/geo"
	"github.com/onnwee/autolist/internal/listing"
	"github.com/onnwee/autolist/internal/ranking"
	"github.com/onnwee/autolist/internal/tracing"
	"github.com/onnwee/autolist/internal/validate"
)

// Default service limits.
const (
	DefaultMaxCandidates    = 1000
	DefaultCandidateTimeout = 2 * time.Second
)

// Config holds feed service limits and scorer weights.
type Config struct {
	MaxPageSize      int
	MaxCandidates    int
	CandidateTimeout time.Duration
	Weights          *ranking.Weights

	// Explain attaches a score breakdown to every ranked item.
	Explain bool
}

// RankQuery requests one page of the viewer's ranked feed.
type RankQuery struct {
	ViewerID int64      `json:"viewer_id" validate:"gt=0"`
	Page     int        `json:"page" validate:"gte=0"`
	Size     int        `json:"size" validate:"gt=0"`
	Location *geo.Point `json:"location,omitempty" validate:"-"`
}

// FilterQuery requests one page of listings matching a filter, newest first.
// ViewerID is optional; when set the viewer's own listings are excluded.
type FilterQuery struct {
	ViewerID int64          `json:"viewer_id" validate:"gte=0"`
	Filter   listing.Filter `json:"filter"`
	Page     int            `json:"page" validate:"gte=0"`
	Size     int            `json:"size" validate:"gt=0"`
}

// Service answers ranked and filter queries. It holds no per-request state.
type Service struct {
	listings   listing.Store
	resolver   *PreferenceResolver
	aggregator *Aggregator
	cfg        Config
	metrics    *Metrics
	logger     *slog.Logger
	now        func() time.Time
}

// NewService creates a feed service. Zero config values take defaults.
func NewService(listings listing.Store, resolver *PreferenceResolver, aggregator *Aggregator, cfg Config, metrics *Metrics, logger *slog.Logger) *Service {
	if cfg.MaxPageSize <= 0 {
		cfg.MaxPageSize = MaxPageSize
	}
	if cfg.MaxCandidates <= 0 {
		cfg.MaxCandidates = DefaultMaxCandidates
	}
	if cfg.CandidateTimeout <= 0 {
		cfg.CandidateTimeout = DefaultCandidateTimeout
	}
	if cfg.Weights == nil {
		cfg.Weights = ranking.DefaultWeights()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		listings:   listings,
		resolver:   resolver,
		aggregator: aggregator,
		cfg:        cfg,
		metrics:    metrics,
		logger:     logger.With("component", "feed"),
		now:        time.Now,
	}
}

// Rank returns one page of the viewer's feed ordered by relevance.
func (s *Service) Rank(ctx context.Context, q RankQuery) (page *Page, err error) {
	start := time.Now()
	ctx, endSpan := tracing.StartSpan(ctx, "feed.rank")
	defer func() {
		endSpan(err)
		s.record(ModeRanked, start, err)
	}()

	if err := s.validateQuery(&q, q.Size); err != nil {
		return nil, err
	}
	if q.Location != nil {
		if err := q.Location.Validate(); err != nil {
			return nil, &ValidationError{Field: "location", Reason: err.Error()}
		}
	}

	var (
		prefs      account.Preferences
		candidates []*listing.Listing
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := s.resolver.Resolve(gctx, q.ViewerID, q.Location)
		prefs = p
		return err
	})
	g.Go(func() error {
		c, err := s.fetchCandidates(gctx, &listing.Filter{ExcludeOwnerID: q.ViewerID})
		candidates = c
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	s.metrics.ObserveCandidates(len(candidates))

	now := s.now()
	signals, deg := s.aggregator.Aggregate(ctx, q.ViewerID, prefs, candidates, now)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	scored := make([]ScoredListing, len(candidates))
	for i, l := range candidates {
		b := ranking.Explain(l, signals[i], prefs, s.cfg.Weights)
		scored[i] = ScoredListing{Listing: l, Score: b.Score}
		if s.cfg.Explain {
			scored[i].Breakdown = &b
		}
	}
	SortScored(scored)

	items, total, hasNext := Paginate(scored, q.Page, q.Size)
	if deg.Any() {
		s.logger.WarnContext(ctx, "ranked feed served with degraded signals",
			"viewer_id", q.ViewerID,
			"signals", deg.Signals())
	}
	s.logger.DebugContext(ctx, "ranked feed",
		"viewer_id", q.ViewerID,
		"candidates", len(candidates),
		"page", q.Page,
		"returned", len(items))

	return &Page{
		Items:    items,
		Page:     q.Page,
		Size:     q.Size,
		Total:    total,
		HasNext:  hasNext,
		Capped:   len(candidates) >= s.cfg.MaxCandidates,
		Ranked:   true,
		Degraded: deg.Signals(),
	}, nil
}

// Filter returns one page of listings matching the filter, newest first,
// without scoring or signal aggregation.
func (s *Service) Filter(ctx context.Context, q FilterQuery) (page *Page, err error) {
	start := time.Now()
	ctx, endSpan := tracing.StartSpan(ctx, "feed.filter")
	defer func() {
		endSpan(err)
		s.record(ModeFilter, start, err)
	}()

	if err := s.validateQuery(&q, q.Size); err != nil {
		return nil, err
	}
	if err := validateRanges(&q.Filter); err != nil {
		return nil, err
	}
	offset, ok := window(q.Page, q.Size)
	if !ok {
		return nil, &ValidationError{Field: "page", Reason: "out of range"}
	}

	f := q.Filter
	f.ExcludeOwnerID = q.ViewerID

	fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.CandidateTimeout)
	defer cancel()
	found, total, err := s.listings.Search(fetchCtx, &f, offset, q.Size)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCandidateFetch, err)
	}

	items := make([]ScoredListing, len(found))
	for i, l := range found {
		items[i] = ScoredListing{Listing: l}
	}

	return &Page{
		Items:   items,
		Page:    q.Page,
		Size:    q.Size,
		Total:   total,
		HasNext: offset < total && q.Size < total-offset,
	}, nil
}

func (s *Service) fetchCandidates(ctx context.Context, f *listing.Filter) ([]*listing.Listing, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.CandidateTimeout)
	defer cancel()

	candidates, err := s.listings.FindCandidates(ctx, f, s.cfg.MaxCandidates)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCandidateFetch, err)
	}
	return candidates, nil
}

// validateQuery runs struct validation on q and enforces the page size limit.
func (s *Service) validateQuery(q any, size int) error {
	if errs := validate.Struct(q); len(errs) > 0 {
		return &ValidationError{Field: errs[0].Field, Reason: errs[0].Reason()}
	}
	if size > s.cfg.MaxPageSize {
		return &ValidationError{Field: "size", Reason: fmt.Sprintf("must be at most %d", s.cfg.MaxPageSize)}
	}
	return nil
}

func validateRanges(f *listing.Filter) error {
	if f.MinYear != nil && f.MaxYear != nil && *f.MinYear > *f.MaxYear {
		return &ValidationError{Field: "min_year", Reason: "must not exceed max_year"}
	}
	if f.MinPrice != nil && f.MaxPrice != nil && *f.MinPrice > *f.MaxPrice {
		return &ValidationError{Field: "min_price", Reason: "must not exceed max_price"}
	}
	if f.MinMileage != nil && f.MaxMileage != nil && *f.MinMileage > *f.MaxMileage {
		return &ValidationError{Field: "min_mileage", Reason: "must not exceed max_mileage"}
	}
	return nil
}

func (s *Service) record(mode string, start time.Time, err error) {
	s.metrics.ObserveDuration(mode, time.Since(start).Seconds())
	s.metrics.IncRequests(mode, statusOf(err))
}

func statusOf(err error) string {
	var verr *ValidationError
	switch {
	case err == nil:
		return StatusSuccess
	case errors.As(err, &verr):
		return StatusInvalid
	case errors.Is(err, ErrViewerNotFound):
		return StatusNotFound
	default:
		return StatusError
	}
}
