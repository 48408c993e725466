// Package account provides the parts of the account aggregate the feed reads:
// viewer preferences and owner display names.
package account

import (
	"errors"
	"strings"

	"github.com/onnwee/autolist/internal/geo"
)

// ErrAccountNotFound is returned when an account ID does not resolve.
var ErrAccountNotFound = errors.New("account not found")

// Account is a marketplace user.
type Account struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// FullName joins first and last name, skipping empty parts.
func (a *Account) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(a.FirstName) + " " + strings.TrimSpace(a.LastName))
}

// Preferences is a viewer's stated feed preferences.
// The feed treats a loaded value as an immutable per-request snapshot.
type Preferences struct {
	ViewerID       int64      `json:"viewer_id"`
	PreferredBrand *string    `json:"preferred_brand,omitempty"`
	WantsUsed      bool       `json:"wants_used"`
	WantsNew       bool       `json:"wants_new"`
	UseLocation    bool       `json:"use_location"`
	Location       *geo.Point `json:"location,omitempty"`
}

// DefaultPreferences returns the neutral preferences used when a viewer has
// never set any: no brand, both used and new wanted, location boosting off.
func DefaultPreferences(viewerID int64) Preferences {
	return Preferences{
		ViewerID:  viewerID,
		WantsUsed: true,
		WantsNew:  true,
	}
}

// WithLocation returns a copy of p using loc as the current coordinates.
func (p Preferences) WithLocation(loc geo.Point) Preferences {
	p.Location = &loc
	return p
}

// HasUsableLocation reports whether location boosting can apply.
func (p Preferences) HasUsableLocation() bool {
	return p.UseLocation && p.Location != nil
}
