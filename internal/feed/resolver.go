package feed

import (
	"context"
	"errors"
	"fmt"

	"github.com/onnwee/autolist/internal/account"
	"github.com/onnwee/autolist/internal/geo"
)

// PreferenceResolver loads the viewer's preference snapshot for one request.
type PreferenceResolver struct {
	store account.Store
}

// NewPreferenceResolver creates a resolver backed by store.
func NewPreferenceResolver(store account.Store) *PreferenceResolver {
	return &PreferenceResolver{store: store}
}

// Resolve returns the viewer's preferences. Viewers who never saved any get
// account.DefaultPreferences. When current is non-nil it replaces the stored
// coordinates for this request only; the stored opt-in flag still applies.
func (r *PreferenceResolver) Resolve(ctx context.Context, viewerID int64, current *geo.Point) (account.Preferences, error) {
	prefs, err := r.store.GetPreferences(ctx, viewerID)
	if err != nil {
		if errors.Is(err, account.ErrAccountNotFound) {
			return account.Preferences{}, fmt.Errorf("%w: %d: %w", ErrViewerNotFound, viewerID, err)
		}
		return account.Preferences{}, fmt.Errorf("failed to load preferences: %w", err)
	}
	if current != nil {
		prefs = prefs.WithLocation(*current)
	}
	return prefs, nil
}
