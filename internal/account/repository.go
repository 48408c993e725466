package account

import (
	"context"
	"sync"
)

// Store is the account collaborator consumed by the feed.
type Store interface {
	// GetPreferences returns the stored preferences for viewerID, or
	// DefaultPreferences when the account exists but never set any.
	// Returns ErrAccountNotFound for unknown accounts.
	GetPreferences(ctx context.Context, viewerID int64) (Preferences, error)

	// OwnerNames returns full names keyed by account ID. Unknown IDs are omitted.
	OwnerNames(ctx context.Context, ids []int64) (map[int64]string, error)
}

// InMemoryRepository is an in-memory implementation of Store.
type InMemoryRepository struct {
	mu       sync.RWMutex
	accounts map[int64]Account
	prefs    map[int64]Preferences
}

// NewInMemoryRepository creates an empty in-memory account repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		accounts: make(map[int64]Account),
		prefs:    make(map[int64]Preferences),
	}
}

// AddAccount stores an account.
func (r *InMemoryRepository) AddAccount(a Account) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[a.ID] = a
}

// SetPreferences stores preferences for an existing account.
func (r *InMemoryRepository) SetPreferences(p Preferences) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.accounts[p.ViewerID]; !ok {
		return ErrAccountNotFound
	}
	r.prefs[p.ViewerID] = clonePreferences(p)
	return nil
}

// GetPreferences implements Store.
func (r *InMemoryRepository) GetPreferences(ctx context.Context, viewerID int64) (Preferences, error) {
	if err := ctx.Err(); err != nil {
		return Preferences{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.accounts[viewerID]; !ok {
		return Preferences{}, ErrAccountNotFound
	}
	p, ok := r.prefs[viewerID]
	if !ok {
		return DefaultPreferences(viewerID), nil
	}
	return clonePreferences(p), nil
}

// OwnerNames implements Store.
func (r *InMemoryRepository) OwnerNames(ctx context.Context, ids []int64) (map[int64]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make(map[int64]string, len(ids))
	for _, id := range ids {
		if a, ok := r.accounts[id]; ok {
			names[id] = a.FullName()
		}
	}
	return names, nil
}

func clonePreferences(p Preferences) Preferences {
	if p.PreferredBrand != nil {
		b := *p.PreferredBrand
		p.PreferredBrand = &b
	}
	if p.Location != nil {
		loc := *p.Location
		p.Location = &loc
	}
	return p
}
