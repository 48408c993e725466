package ranking

import (
	"math"
	"strings"
	"time"

	"github.com/onnwee/autolist/internal/account"
)

// TimeFactor computes the hyperbolic recency decay 1/(hours+1).
// Equals 1.0 at publication time and approaches 0 as the listing ages.
// Negative ages (clock skew, future timestamps) are clamped to 0.
func TimeFactor(hoursSincePublication float64) float64 {
	if hoursSincePublication < 0 || math.IsNaN(hoursSincePublication) {
		hoursSincePublication = 0
	}
	return 1.0 / (hoursSincePublication + 1.0)
}

// EngagementFactor maps a comment count into [0, 1) with c/(c+k).
// It reaches 0.5 at k comments and saturates, so no amount of comments can
// outweigh the other signals. A non-positive k falls back to the default.
func EngagementFactor(commentCount int, halfSaturation float64) float64 {
	if commentCount <= 0 {
		return 0
	}
	if halfSaturation <= 0 {
		halfSaturation = DefaultEngagementHalfSaturation
	}
	c := float64(commentCount)
	return c / (c + halfSaturation)
}

// ProximityFactor computes 1/(distance+1) for a known distance and returns the
// neutral 1.0 when the distance is unknown (nil).
func ProximityFactor(distance *float64) float64 {
	if distance == nil {
		return 1.0
	}
	d := *distance
	if d < 0 || math.IsNaN(d) {
		d = 0
	}
	return 1.0 / (d + 1.0)
}

// VerificationBonus returns bonus for verified listings and 0 otherwise.
func VerificationBonus(verified bool, bonus float64) float64 {
	if verified {
		return bonus
	}
	return 0
}

// BrandBoost applies when the viewer's preferred brand equals the listing make,
// compared case-insensitively after trimming.
func BrandBoost(preferredBrand *string, make string, boost float64) float64 {
	if preferredBrand == nil {
		return 1.0
	}
	want := strings.TrimSpace(*preferredBrand)
	if want == "" || !strings.EqualFold(want, strings.TrimSpace(make)) {
		return 1.0
	}
	return boost
}

// UsedNewBoost rewards listings matching a strict single used/new preference
// with strict, applies the milder both when the viewer wants either, and is
// neutral otherwise (including when the viewer wants neither).
func UsedNewBoost(wantsUsed, wantsNew, listingUsed bool, strict, both float64) float64 {
	switch {
	case wantsUsed && wantsNew:
		return both
	case wantsUsed && listingUsed:
		return strict
	case wantsNew && !listingUsed:
		return strict
	default:
		return 1.0
	}
}

// LocationBoost applies when the viewer opted in, has coordinates, and the
// listing is strictly closer than closeDistance.
func LocationBoost(prefs account.Preferences, distance *float64, closeDistance, boost float64) float64 {
	if !prefs.HasUsableLocation() || distance == nil {
		return 1.0
	}
	if *distance < closeDistance {
		return boost
	}
	return 1.0
}

// VerificationBoost is the multiplicative counterpart to VerificationBonus.
func VerificationBoost(verified bool, boost float64) float64 {
	if verified {
		return boost
	}
	return 1.0
}

// RelationshipBoost applies when the viewer follows the listing owner.
func RelationshipBoost(followedOwner bool, boost float64) float64 {
	if followedOwner {
		return boost
	}
	return 1.0
}

// HoursSince returns the fractional hours between published and now.
// Future timestamps yield 0.
func HoursSince(published, now time.Time) float64 {
	h := now.Sub(published).Hours()
	if h < 0 {
		return 0
	}
	return h
}
