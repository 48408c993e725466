// Package listing provides the vehicle listing model, the attribute filter
// used by the unscored search mode, and stores that serve candidate listings
// to the feed.
package listing

import (
	"strings"
	"time"

	"github.com/onnwee/autolist/internal/geo"
)

// Listing is a vehicle offered on the marketplace.
// IDs are allocated monotonically, so a larger ID is a newer listing.
type Listing struct {
	ID           int64      `json:"id"`
	Make         string     `json:"make"`
	Model        string     `json:"model"`
	Year         int        `json:"year"`
	Price        float64    `json:"price"`
	Currency     string     `json:"currency"`
	Mileage      int        `json:"mileage"`
	FuelType     string     `json:"fuel_type"`
	Transmission string     `json:"transmission"`
	Used         bool       `json:"used"`
	PublishedAt  time.Time  `json:"published_at"`
	OwnerID      int64      `json:"owner_id"`
	Active       bool       `json:"active"`
	Verified     bool       `json:"verified"`
	Approved     bool       `json:"approved"`
	Location     *geo.Point `json:"location,omitempty"`
	Images       []string   `json:"images,omitempty"`
}

// Clone returns a deep copy so callers never share the store's slices or pointers.
func (l *Listing) Clone() *Listing {
	c := *l
	if l.Location != nil {
		p := *l.Location
		c.Location = &p
	}
	if l.Images != nil {
		c.Images = append([]string(nil), l.Images...)
	}
	return &c
}

// Filter describes attribute constraints for candidate retrieval.
// Nil or empty fields impose no constraint.
type Filter struct {
	Makes        []string `json:"make,omitempty" validate:"omitempty,max=20,dive,required,max=64"`
	Model        *string  `json:"model,omitempty" validate:"omitempty,max=64"`
	MinYear      *int     `json:"min_year,omitempty" validate:"omitempty,min=1886,max=2100"`
	MaxYear      *int     `json:"max_year,omitempty" validate:"omitempty,min=1886,max=2100"`
	FuelType     *string  `json:"fuel_type,omitempty" validate:"omitempty,max=32"`
	Transmission *string  `json:"transmission,omitempty" validate:"omitempty,max=32"`
	MinPrice     *float64 `json:"min_price,omitempty" validate:"omitempty,min=0"`
	MaxPrice     *float64 `json:"max_price,omitempty" validate:"omitempty,min=0"`
	MinMileage   *int     `json:"min_mileage,omitempty" validate:"omitempty,min=0"`
	MaxMileage   *int     `json:"max_mileage,omitempty" validate:"omitempty,min=0"`
	Used         *bool    `json:"is_used,omitempty"`

	// ExcludeOwnerID drops listings owned by this account (0 means none).
	ExcludeOwnerID int64 `json:"-" validate:"-"`
}

// Matches reports whether an active listing satisfies every set constraint.
// String comparisons are case-insensitive.
func (f *Filter) Matches(l *Listing) bool {
	if !l.Active {
		return false
	}
	if f == nil {
		return true
	}
	if f.ExcludeOwnerID != 0 && l.OwnerID == f.ExcludeOwnerID {
		return false
	}
	if len(f.Makes) > 0 {
		found := false
		for _, m := range f.Makes {
			if strings.EqualFold(strings.TrimSpace(m), l.Make) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Model != nil && !strings.EqualFold(*f.Model, l.Model) {
		return false
	}
	if f.MinYear != nil && l.Year < *f.MinYear {
		return false
	}
	if f.MaxYear != nil && l.Year > *f.MaxYear {
		return false
	}
	if f.FuelType != nil && !strings.EqualFold(*f.FuelType, l.FuelType) {
		return false
	}
	if f.Transmission != nil && !strings.EqualFold(*f.Transmission, l.Transmission) {
		return false
	}
	if f.MinPrice != nil && l.Price < *f.MinPrice {
		return false
	}
	if f.MaxPrice != nil && l.Price > *f.MaxPrice {
		return false
	}
	if f.MinMileage != nil && l.Mileage < *f.MinMileage {
		return false
	}
	if f.MaxMileage != nil && l.Mileage > *f.MaxMileage {
		return false
	}
	if f.Used != nil && l.Used != *f.Used {
		return false
	}
	return true
}
