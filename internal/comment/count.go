// Package comment exposes per-listing comment counts for engagement ranking.
package comment

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/lib/pq"

	"github.com/onnwee/autolist/internal/tracing"
)

// CountStore is the comment collaborator consumed by the feed.
type CountStore interface {
	// CountByListings returns comment counts keyed by listing ID.
	// Listings without comments may be omitted.
	CountByListings(ctx context.Context, listingIDs []int64) (map[int64]int, error)
}

// InMemoryCountStore is an in-memory implementation of CountStore.
type InMemoryCountStore struct {
	mu     sync.RWMutex
	counts map[int64]int
}

// NewInMemoryCountStore creates an empty count store.
func NewInMemoryCountStore() *InMemoryCountStore {
	return &InMemoryCountStore{counts: make(map[int64]int)}
}

// Add records n new comments on a listing.
func (s *InMemoryCountStore) Add(listingID int64, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[listingID] += n
}

// CountByListings implements CountStore.
func (s *InMemoryCountStore) CountByListings(ctx context.Context, listingIDs []int64) (map[int64]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[int64]int, len(listingIDs))
	for _, id := range listingIDs {
		if n, ok := s.counts[id]; ok && n > 0 {
			out[id] = n
		}
	}
	return out, nil
}

// PostgresCountStore implements CountStore on top of PostgreSQL.
type PostgresCountStore struct {
	db *sql.DB
}

// NewPostgresCountStore creates a count store backed by db.
func NewPostgresCountStore(db *sql.DB) *PostgresCountStore {
	return &PostgresCountStore{db: db}
}

// CountByListings implements CountStore with a single GROUP BY.
func (s *PostgresCountStore) CountByListings(ctx context.Context, listingIDs []int64) (_ map[int64]int, err error) {
	out := make(map[int64]int, len(listingIDs))
	if len(listingIDs) == 0 {
		return out, nil
	}

	ctx, endSpan := tracing.StartDBSpan(ctx, "comments", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	rows, err := s.db.QueryContext(ctx,
		`SELECT listing_id, COUNT(*) FROM comments WHERE listing_id = ANY($1) GROUP BY listing_id`,
		pq.Array(listingIDs))
	if err != nil {
		return nil, fmt.Errorf("query comment counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id int64
			n  int
		)
		if err = rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("scan comment count: %w", err)
		}
		out[id] = n
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comment counts: %w", err)
	}
	return out, nil
}
