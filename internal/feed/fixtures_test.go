package feed

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/onnwee/autolist/internal/account"
	"github.com/onnwee/autolist/internal/comment"
	"github.com/onnwee/autolist/internal/listing"
	"github.com/onnwee/autolist/internal/social"
)

var (
	testNow       = time.Date(2025, 5, 10, 12, 0, 0, 0, time.UTC)
	errSourceDown = errors.New("source unavailable")
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type countingFollows struct {
	calls atomic.Int32
	err   error
	delay time.Duration
}

func (f *countingFollows) FollowedAmong(ctx context.Context, viewerID int64, ownerIDs []int64) (map[int64]bool, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return map[int64]bool{}, nil
}

type failingCounts struct {
	calls atomic.Int32
}

func (c *failingCounts) CountByListings(ctx context.Context, listingIDs []int64) (map[int64]int, error) {
	c.calls.Add(1)
	return nil, errSourceDown
}

type failingListings struct{}

func (failingListings) FindCandidates(ctx context.Context, f *listing.Filter, limit int) ([]*listing.Listing, error) {
	return nil, errSourceDown
}

func (failingListings) Search(ctx context.Context, f *listing.Filter, offset, limit int) ([]*listing.Listing, int, error) {
	return nil, 0, errSourceDown
}

// countingListings counts store calls so tests can assert that a request
// was rejected before anything was fetched.
type countingListings struct {
	listing.Store
	calls atomic.Int32
}

func (c *countingListings) FindCandidates(ctx context.Context, f *listing.Filter, limit int) ([]*listing.Listing, error) {
	c.calls.Add(1)
	return c.Store.FindCandidates(ctx, f, limit)
}

func (c *countingListings) Search(ctx context.Context, f *listing.Filter, offset, limit int) ([]*listing.Listing, int, error) {
	c.calls.Add(1)
	return c.Store.Search(ctx, f, offset, limit)
}

type countingAccounts struct {
	account.Store
	calls atomic.Int32
}

func (c *countingAccounts) GetPreferences(ctx context.Context, viewerID int64) (account.Preferences, error) {
	c.calls.Add(1)
	return c.Store.GetPreferences(ctx, viewerID)
}

// fixture wires in-memory collaborators into a Service.
type fixture struct {
	listings *listing.InMemoryRepository
	accounts *account.InMemoryRepository
	follows  *social.InMemoryFollowStore
	comments *comment.InMemoryCountStore
	metrics  *Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return &fixture{
		listings: listing.NewInMemoryRepository(),
		accounts: account.NewInMemoryRepository(),
		follows:  social.NewInMemoryFollowStore(),
		comments: comment.NewInMemoryCountStore(),
		metrics:  NewMetrics(),
	}
}

func (f *fixture) service(cfg Config) *Service {
	agg := NewAggregator(f.follows, f.comments, AggregatorConfig{}, f.metrics, discardLogger())
	svc := NewService(f.listings, NewPreferenceResolver(f.accounts), agg, cfg, f.metrics, discardLogger())
	svc.now = func() time.Time { return testNow }
	return svc
}

// countedService is service with every store call counted.
func (f *fixture) countedService(cfg Config) (*Service, *countingListings, *countingAccounts) {
	listings := &countingListings{Store: f.listings}
	accounts := &countingAccounts{Store: f.accounts}
	agg := NewAggregator(f.follows, f.comments, AggregatorConfig{}, f.metrics, discardLogger())
	svc := NewService(listings, NewPreferenceResolver(accounts), agg, cfg, f.metrics, discardLogger())
	svc.now = func() time.Time { return testNow }
	return svc, listings, accounts
}

func (f *fixture) addAccount(t *testing.T, id int64, first, last string) {
	t.Helper()
	f.accounts.AddAccount(account.Account{ID: id, FirstName: first, LastName: last})
}

func (f *fixture) addListing(t *testing.T, l *listing.Listing) *listing.Listing {
	t.Helper()
	if l.PublishedAt.IsZero() {
		l.PublishedAt = testNow.Add(-time.Hour)
	}
	l.Active = true
	if err := f.listings.Insert(l); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	return l
}

func toyota(owner int64) *listing.Listing {
	return &listing.Listing{
		Make:     "Toyota",
		Model:    "Corolla",
		Year:     2020,
		Price:    10000,
		Currency: "EUR",
		OwnerID:  owner,
	}
}

func ids(items []ScoredListing) []int64 {
	out := make([]int64, len(items))
	for i, it := range items {
		out[i] = it.Listing.ID
	}
	return out
}
