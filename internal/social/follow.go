// Package social provides the follow graph as seen by the feed: directed
// edges from a follower to the account they follow.
package social

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/lib/pq"

	"github.com/onnwee/autolist/internal/tracing"
)

// Edge is a directed follow relationship.
type Edge struct {
	FromUserID int64
	ToUserID   int64
}

// FollowStore is the social-graph collaborator consumed by the feed.
type FollowStore interface {
	// FollowedAmong returns the subset of ownerIDs that viewerID follows.
	// One call covers the whole candidate batch.
	FollowedAmong(ctx context.Context, viewerID int64, ownerIDs []int64) (map[int64]bool, error)
}

// InMemoryFollowStore is an in-memory implementation of FollowStore.
type InMemoryFollowStore struct {
	mu        sync.RWMutex
	following map[int64]map[int64]struct{} // follower -> followed set
}

// NewInMemoryFollowStore creates an empty follow graph.
func NewInMemoryFollowStore() *InMemoryFollowStore {
	return &InMemoryFollowStore{
		following: make(map[int64]map[int64]struct{}),
	}
}

// Follow adds an edge. Following yourself is ignored.
func (s *InMemoryFollowStore) Follow(e Edge) {
	if e.FromUserID == e.ToUserID {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.following[e.FromUserID]
	if !ok {
		set = make(map[int64]struct{})
		s.following[e.FromUserID] = set
	}
	set[e.ToUserID] = struct{}{}
}

// Unfollow removes an edge if present.
func (s *InMemoryFollowStore) Unfollow(e Edge) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.following[e.FromUserID], e.ToUserID)
}

// FollowedAmong implements FollowStore.
func (s *InMemoryFollowStore) FollowedAmong(ctx context.Context, viewerID int64, ownerIDs []int64) (map[int64]bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[int64]bool)
	set := s.following[viewerID]
	for _, id := range ownerIDs {
		if _, ok := set[id]; ok {
			out[id] = true
		}
	}
	return out, nil
}

// PostgresFollowStore implements FollowStore on top of PostgreSQL.
type PostgresFollowStore struct {
	db *sql.DB
}

// NewPostgresFollowStore creates a follow store backed by db.
func NewPostgresFollowStore(db *sql.DB) *PostgresFollowStore {
	return &PostgresFollowStore{db: db}
}

// FollowedAmong implements FollowStore with one indexed query.
func (s *PostgresFollowStore) FollowedAmong(ctx context.Context, viewerID int64, ownerIDs []int64) (_ map[int64]bool, err error) {
	out := make(map[int64]bool)
	if len(ownerIDs) == 0 {
		return out, nil
	}

	ctx, endSpan := tracing.StartDBSpan(ctx, "follows", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	rows, err := s.db.QueryContext(ctx,
		`SELECT to_user_id FROM follows WHERE from_user_id = $1 AND to_user_id = ANY($2)`,
		viewerID, pq.Array(ownerIDs))
	if err != nil {
		return nil, fmt.Errorf("query follows: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		if err = rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan follow: %w", err)
		}
		out[id] = true
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate follows: %w", err)
	}
	return out, nil
}
