package listing

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// ErrListingNotFound is returned when a listing ID does not resolve.
var ErrListingNotFound = errors.New("listing not found")

// Store is the listing collaborator consumed by the feed.
// Both methods only ever return active listings.
type Store interface {
	// FindCandidates returns up to limit listings matching f, ordered by ID
	// descending (newest first).
	FindCandidates(ctx context.Context, f *Filter, limit int) ([]*Listing, error)

	// Search returns one page of listings matching f ordered by publication
	// time descending (ties by ID descending) together with the total match count.
	Search(ctx context.Context, f *Filter, offset, limit int) ([]*Listing, int, error)
}

// InMemoryRepository is an in-memory implementation of Store.
// Thread-safe via RWMutex. Used for tests and local development.
type InMemoryRepository struct {
	mu       sync.RWMutex
	listings map[int64]*Listing
	nextID   int64
}

// NewInMemoryRepository creates an empty in-memory listing repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		listings: make(map[int64]*Listing),
	}
}

// Insert stores a copy of l. A zero ID is replaced by the next sequence value
// and written back to l.
func (r *InMemoryRepository) Insert(l *Listing) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if l.ID == 0 {
		r.nextID++
		l.ID = r.nextID
	} else if l.ID > r.nextID {
		r.nextID = l.ID
	}
	r.listings[l.ID] = l.Clone()
	return nil
}

// GetByID returns a copy of the listing with the given ID.
func (r *InMemoryRepository) GetByID(id int64) (*Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	l, ok := r.listings[id]
	if !ok {
		return nil, ErrListingNotFound
	}
	return l.Clone(), nil
}

// SetActive toggles the active flag (deactivation hides a listing from all feeds).
func (r *InMemoryRepository) SetActive(id int64, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.listings[id]
	if !ok {
		return ErrListingNotFound
	}
	l.Active = active
	return nil
}

// SetVerified records the outcome of a technical inspection.
func (r *InMemoryRepository) SetVerified(id int64, verified bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.listings[id]
	if !ok {
		return ErrListingNotFound
	}
	l.Verified = verified
	return nil
}

// FindCandidates implements Store.
func (r *InMemoryRepository) FindCandidates(ctx context.Context, f *Filter, limit int) ([]*Listing, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	matches := r.match(f)
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].ID > matches[j].ID
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// Search implements Store.
func (r *InMemoryRepository) Search(ctx context.Context, f *Filter, offset, limit int) ([]*Listing, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	matches := r.match(f)
	SortByPublishedDesc(matches)

	total := len(matches)
	if offset >= total {
		return []*Listing{}, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	return matches[offset:end], total, nil
}

// match collects copies of all listings satisfying f.
func (r *InMemoryRepository) match(f *Filter) []*Listing {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Listing, 0, len(r.listings))
	for _, l := range r.listings {
		if f.Matches(l) {
			out = append(out, l.Clone())
		}
	}
	return out
}

// SortByPublishedDesc orders listings newest publication first, ties by ID descending.
func SortByPublishedDesc(ls []*Listing) {
	sort.Slice(ls, func(i, j int) bool {
		if !ls[i].PublishedAt.Equal(ls[j].PublishedAt) {
			return ls[i].PublishedAt.After(ls[j].PublishedAt)
		}
		return ls[i].ID > ls[j].ID
	})
}
