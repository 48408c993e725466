package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/onnwee/autolist/internal/feed"
	"github.com/onnwee/autolist/internal/geo"
	"github.com/onnwee/autolist/internal/listing"
	"github.com/onnwee/autolist/internal/middleware"
	"github.com/onnwee/autolist/internal/ranking"
	"github.com/onnwee/autolist/internal/validate"
)

// DegradedHeader lists ranking signals that were scored as neutral.
const DegradedHeader = "X-Feed-Degraded"

// FeedService answers ranked and filter queries.
type FeedService interface {
	Rank(ctx context.Context, q feed.RankQuery) (*feed.Page, error)
	Filter(ctx context.Context, q feed.FilterQuery) (*feed.Page, error)
}

// OwnerDirectory resolves listing owners to display names.
type OwnerDirectory interface {
	OwnerNames(ctx context.Context, ids []int64) (map[int64]string, error)
}

// ImageResolver turns stored image references into fetchable URLs.
type ImageResolver interface {
	ResolveAll(ctx context.Context, refs []string) []string
}

// FeedHandlers serves the ranked feed and the unscored listing search.
type FeedHandlers struct {
	service FeedService
	owners  OwnerDirectory
	images  ImageResolver
	logger  *slog.Logger
}

// NewFeedHandlers creates feed handlers. owners and images may be nil, in
// which case owner names are left empty and image references pass through.
func NewFeedHandlers(service FeedService, owners OwnerDirectory, images ImageResolver, logger *slog.Logger) *FeedHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &FeedHandlers{
		service: service,
		owners:  owners,
		images:  images,
		logger:  logger.With("component", "feed_api"),
	}
}

// LocationSummary is the public view of a listing location.
type LocationSummary struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Geohash string  `json:"geohash"`
}

// ListingSummary is one feed item.
type ListingSummary struct {
	ID            int64              `json:"id"`
	Make          string             `json:"make"`
	Model         string             `json:"model"`
	Year          int                `json:"year"`
	Price         float64            `json:"price"`
	Currency      string             `json:"currency"`
	Used          bool               `json:"used"`
	OwnerID       int64              `json:"owner_id"`
	OwnerFullName string             `json:"owner_full_name"`
	PublishedAt   time.Time          `json:"published_at"`
	Images        []string           `json:"images"`
	Location      *LocationSummary   `json:"location,omitempty"`
	Mileage       int                `json:"mileage"`
	FuelType      string             `json:"fuel_type,omitempty"`
	Transmission  string             `json:"transmission,omitempty"`
	Verified      bool               `json:"verified"`
	Approved      bool               `json:"approved"`
	Score         *float64           `json:"score,omitempty"`
	Breakdown     *ranking.Breakdown `json:"score_breakdown,omitempty"`
}

// FeedResponse is the paginated envelope shared by both endpoints.
type FeedResponse struct {
	Items   []ListingSummary `json:"items"`
	Page    int              `json:"page"`
	Size    int              `json:"size"`
	Total   int              `json:"total"`
	HasNext bool             `json:"has_next"`

	// Capped reports that total counts only the newest candidates.
	Capped bool `json:"capped,omitempty"`
}

// Feed handles GET /v1/feed. The viewer comes from the access token.
func (h *FeedHandlers) Feed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	viewerID, ok := middleware.GetViewerID(ctx)
	if !ok {
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeAuthFailed, "Authentication required")
		return
	}

	query := r.URL.Query()
	page, size, err := parsePaging(query)
	if err != nil {
		h.writeFeedError(w, ctx, err)
		return
	}
	loc, err := parseLocation(query)
	if err != nil {
		h.writeFeedError(w, ctx, err)
		return
	}

	result, err := h.service.Rank(ctx, feed.RankQuery{
		ViewerID: viewerID,
		Page:     page,
		Size:     size,
		Location: loc,
	})
	if err != nil {
		h.writeFeedError(w, ctx, err)
		return
	}

	h.writePage(w, ctx, result)
}

// Search handles GET /v1/listings/search. Authentication is optional; a
// signed-in viewer does not see their own listings.
func (h *FeedHandlers) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	viewerID, _ := middleware.GetViewerID(ctx)

	query := r.URL.Query()
	page, size, err := parsePaging(query)
	if err != nil {
		h.writeFeedError(w, ctx, err)
		return
	}
	filter, err := parseFilter(query)
	if err != nil {
		h.writeFeedError(w, ctx, err)
		return
	}

	result, err := h.service.Filter(ctx, feed.FilterQuery{
		ViewerID: viewerID,
		Filter:   *filter,
		Page:     page,
		Size:     size,
	})
	if err != nil {
		h.writeFeedError(w, ctx, err)
		return
	}

	h.writePage(w, ctx, result)
}

func (h *FeedHandlers) writePage(w http.ResponseWriter, ctx context.Context, page *feed.Page) {
	names := h.ownerNames(ctx, page.Items)

	items := make([]ListingSummary, len(page.Items))
	for i, item := range page.Items {
		items[i] = h.summarize(ctx, item, names, page.Ranked)
	}

	if len(page.Degraded) > 0 {
		w.Header().Set(DegradedHeader, strings.Join(page.Degraded, ","))
	}
	writeJSON(w, ctx, http.StatusOK, FeedResponse{
		Items:   items,
		Page:    page.Page,
		Size:    page.Size,
		Total:   page.Total,
		HasNext: page.HasNext,
		Capped:  page.Capped,
	})
}

func (h *FeedHandlers) summarize(ctx context.Context, item feed.ScoredListing, names map[int64]string, ranked bool) ListingSummary {
	l := item.Listing
	s := ListingSummary{
		ID:            l.ID,
		Make:          l.Make,
		Model:         l.Model,
		Year:          l.Year,
		Price:         l.Price,
		Currency:      l.Currency,
		Used:          l.Used,
		OwnerID:       l.OwnerID,
		OwnerFullName: names[l.OwnerID],
		PublishedAt:   l.PublishedAt.UTC(),
		Images:        h.resolveImages(ctx, l.Images),
		Mileage:       l.Mileage,
		FuelType:      l.FuelType,
		Transmission:  l.Transmission,
		Verified:      l.Verified,
		Approved:      l.Approved,
		Breakdown:     item.Breakdown,
	}
	if l.Location != nil {
		s.Location = &LocationSummary{
			Lat:     l.Location.Lat,
			Lng:     l.Location.Lng,
			Geohash: geo.EncodePoint(l.Location),
		}
	}
	if ranked {
		score := item.Score
		s.Score = &score
	}
	return s
}

func (h *FeedHandlers) resolveImages(ctx context.Context, refs []string) []string {
	if h.images == nil {
		return append(make([]string, 0, len(refs)), refs...)
	}
	return h.images.ResolveAll(ctx, refs)
}

// ownerNames looks up every distinct owner on the page in one call. A failed
// lookup leaves names empty rather than failing the page.
func (h *FeedHandlers) ownerNames(ctx context.Context, items []feed.ScoredListing) map[int64]string {
	if h.owners == nil || len(items) == 0 {
		return nil
	}
	seen := make(map[int64]struct{}, len(items))
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.Listing.OwnerID]; ok {
			continue
		}
		seen[item.Listing.OwnerID] = struct{}{}
		ids = append(ids, item.Listing.OwnerID)
	}

	names, err := h.owners.OwnerNames(ctx, ids)
	if err != nil {
		h.logger.WarnContext(ctx, "owner name lookup failed", "owners", len(ids), "error", err)
		return nil
	}
	return names
}

func (h *FeedHandlers) writeFeedError(w http.ResponseWriter, ctx context.Context, err error) {
	var verr *feed.ValidationError
	switch {
	case errors.As(err, &verr):
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, verr.Error())
	case errors.Is(err, feed.ErrViewerNotFound):
		WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Viewer not found")
	case errors.Is(err, context.Canceled):
		// Client went away; nothing useful can be written.
		h.logger.DebugContext(ctx, "feed request canceled")
	default:
		h.logger.ErrorContext(ctx, "feed request failed", "error", err)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to load listings")
	}
}

// parsePaging reads page (default 0) and size (default feed.DefaultPageSize).
// Range checks beyond syntax are left to the feed service.
func parsePaging(q url.Values) (page, size int, err error) {
	size = feed.DefaultPageSize
	if v := q.Get("page"); v != "" {
		if page, err = strconv.Atoi(v); err != nil {
			return 0, 0, &feed.ValidationError{Field: "page", Reason: "must be an integer"}
		}
	}
	if v := q.Get("size"); v != "" {
		if size, err = strconv.Atoi(v); err != nil {
			return 0, 0, &feed.ValidationError{Field: "size", Reason: "must be an integer"}
		}
	}
	return page, size, nil
}

// parseLocation reads the optional lat/lng pair overriding the stored location.
func parseLocation(q url.Values) (*geo.Point, error) {
	latStr, lngStr := q.Get("lat"), q.Get("lng")
	if latStr == "" && lngStr == "" {
		return nil, nil
	}
	if latStr == "" || lngStr == "" {
		return nil, &feed.ValidationError{Field: "location", Reason: "lat and lng must be given together"}
	}
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return nil, &feed.ValidationError{Field: "lat", Reason: "must be a number"}
	}
	lng, err := strconv.ParseFloat(lngStr, 64)
	if err != nil {
		return nil, &feed.ValidationError{Field: "lng", Reason: "must be a number"}
	}
	return &geo.Point{Lat: lat, Lng: lng}, nil
}

// parseFilter builds a listing filter from search parameters. make may repeat.
func parseFilter(q url.Values) (*listing.Filter, error) {
	f := &listing.Filter{}

	for _, raw := range q["make"] {
		m, err := validate.Attribute(raw)
		if err != nil {
			return nil, &feed.ValidationError{Field: "make", Reason: err.Error()}
		}
		f.Makes = append(f.Makes, m)
	}

	var err error
	if f.Model, err = attributeParam(q, "model"); err != nil {
		return nil, err
	}
	if f.FuelType, err = attributeParam(q, "fuel_type"); err != nil {
		return nil, err
	}
	if f.Transmission, err = attributeParam(q, "transmission"); err != nil {
		return nil, err
	}
	if f.MinYear, err = intParam(q, "min_year"); err != nil {
		return nil, err
	}
	if f.MaxYear, err = intParam(q, "max_year"); err != nil {
		return nil, err
	}
	if f.MinMileage, err = intParam(q, "min_mileage"); err != nil {
		return nil, err
	}
	if f.MaxMileage, err = intParam(q, "max_mileage"); err != nil {
		return nil, err
	}
	if f.MinPrice, err = floatParam(q, "min_price"); err != nil {
		return nil, err
	}
	if f.MaxPrice, err = floatParam(q, "max_price"); err != nil {
		return nil, err
	}
	if v := q.Get("is_used"); v != "" {
		used, err := strconv.ParseBool(v)
		if err != nil {
			return nil, &feed.ValidationError{Field: "is_used", Reason: "must be true or false"}
		}
		f.Used = &used
	}

	return f, nil
}

func attributeParam(q url.Values, name string) (*string, error) {
	v := q.Get(name)
	if v == "" {
		return nil, nil
	}
	clean, err := validate.Attribute(v)
	if err != nil {
		return nil, &feed.ValidationError{Field: name, Reason: err.Error()}
	}
	return &clean, nil
}

func intParam(q url.Values, name string) (*int, error) {
	v := q.Get(name)
	if v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, &feed.ValidationError{Field: name, Reason: "must be an integer"}
	}
	return &n, nil
}

func floatParam(q url.Values, name string) (*float64, error) {
	v := q.Get(name)
	if v == "" {
		return nil, nil
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return nil, &feed.ValidationError{Field: name, Reason: fmt.Sprintf("must be a number, got %q", v)}
	}
	return &n, nil
}
