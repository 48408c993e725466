package ranking

import (
	"math"
	"testing"
	"time"

	"github.com/onnwee/autolist/internal/account"
	"github.com/onnwee/autolist/internal/geo"
)

func float64Ptr(v float64) *float64 { return &v }

func stringPtr(s string) *string { return &s }

// TestTimeFactor tests the recency decay.
func TestTimeFactor(t *testing.T) {
	tests := []struct {
		name     string
		hours    float64
		expected float64
	}{
		{name: "just published", hours: 0, expected: 1.0},
		{name: "one hour", hours: 1, expected: 0.5},
		{name: "three hours", hours: 3, expected: 0.25},
		{name: "one day", hours: 24, expected: 0.04},
		{name: "negative clamped", hours: -5, expected: 1.0},
		{name: "NaN clamped", hours: math.NaN(), expected: 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := TimeFactor(tt.hours)
			if math.Abs(result-tt.expected) > 1e-9 {
				t.Errorf("expected %f, got %f", tt.expected, result)
			}
		})
	}
}

// TestTimeFactor_Monotonic verifies an older listing never gains time factor.
func TestTimeFactor_Monotonic(t *testing.T) {
	prev := TimeFactor(0)
	for h := 0.25; h <= 24*90; h *= 1.7 {
		cur := TimeFactor(h)
		if cur > prev {
			t.Fatalf("time factor increased from %f to %f at %f hours", prev, cur, h)
		}
		prev = cur
	}
}

// TestEngagementFactor tests the saturating comment transform.
func TestEngagementFactor(t *testing.T) {
	tests := []struct {
		name     string
		comments int
		k        float64
		expected float64
	}{
		{name: "no comments", comments: 0, k: 5, expected: 0},
		{name: "negative comments", comments: -3, k: 5, expected: 0},
		{name: "half saturation", comments: 5, k: 5, expected: 0.5},
		{name: "one comment", comments: 1, k: 5, expected: 1.0 / 6.0},
		{name: "many comments", comments: 995, k: 5, expected: 0.995},
		{name: "zero k uses default", comments: 5, k: 0, expected: 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := EngagementFactor(tt.comments, tt.k)
			if math.Abs(result-tt.expected) > 1e-9 {
				t.Errorf("expected %f, got %f", tt.expected, result)
			}
			if result < 0 || result >= 1 {
				t.Errorf("engagement %f outside [0, 1)", result)
			}
		})
	}
}

// TestProximityFactor tests known and unknown distances.
func TestProximityFactor(t *testing.T) {
	tests := []struct {
		name     string
		distance *float64
		expected float64
	}{
		{name: "unknown is neutral", distance: nil, expected: 1.0},
		{name: "same place", distance: float64Ptr(0), expected: 1.0},
		{name: "one unit", distance: float64Ptr(1), expected: 0.5},
		{name: "far", distance: float64Ptr(99), expected: 0.01},
		{name: "negative clamped", distance: float64Ptr(-2), expected: 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ProximityFactor(tt.distance)
			if math.Abs(result-tt.expected) > 1e-9 {
				t.Errorf("expected %f, got %f", tt.expected, result)
			}
		})
	}
}

// TestBrandBoost tests case-insensitive trimmed brand matching.
func TestBrandBoost(t *testing.T) {
	tests := []struct {
		name     string
		brand    *string
		make     string
		expected float64
	}{
		{name: "no preference", brand: nil, make: "Toyota", expected: 1.0},
		{name: "exact match", brand: stringPtr("Toyota"), make: "Toyota", expected: 1.5},
		{name: "case insensitive", brand: stringPtr("toyota"), make: "TOYOTA", expected: 1.5},
		{name: "trimmed", brand: stringPtr("  BMW "), make: "bmw", expected: 1.5},
		{name: "different brand", brand: stringPtr("Honda"), make: "Toyota", expected: 1.0},
		{name: "blank preference", brand: stringPtr("  "), make: "", expected: 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BrandBoost(tt.brand, tt.make, 1.5); got != tt.expected {
				t.Errorf("expected %f, got %f", tt.expected, got)
			}
		})
	}
}

// TestUsedNewBoost covers every preference and listing combination.
func TestUsedNewBoost(t *testing.T) {
	tests := []struct {
		name        string
		wantsUsed   bool
		wantsNew    bool
		listingUsed bool
		expected    float64
	}{
		{name: "used only, used listing", wantsUsed: true, listingUsed: true, expected: 1.5},
		{name: "used only, new listing", wantsUsed: true, listingUsed: false, expected: 1.0},
		{name: "new only, new listing", wantsNew: true, listingUsed: false, expected: 1.5},
		{name: "new only, used listing", wantsNew: true, listingUsed: true, expected: 1.0},
		{name: "both, used listing", wantsUsed: true, wantsNew: true, listingUsed: true, expected: 1.2},
		{name: "both, new listing", wantsUsed: true, wantsNew: true, listingUsed: false, expected: 1.2},
		{name: "neither", listingUsed: true, expected: 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := UsedNewBoost(tt.wantsUsed, tt.wantsNew, tt.listingUsed, 1.5, 1.2)
			if got != tt.expected {
				t.Errorf("expected %f, got %f", tt.expected, got)
			}
		})
	}
}

// TestLocationBoost tests the opt-in and threshold rules.
func TestLocationBoost(t *testing.T) {
	here := geo.Point{Lat: 52.52, Lng: 13.40}
	optedIn := account.Preferences{UseLocation: true, Location: &here}

	tests := []struct {
		name     string
		prefs    account.Preferences
		distance *float64
		expected float64
	}{
		{name: "close", prefs: optedIn, distance: float64Ptr(0.1), expected: 1.5},
		{name: "at threshold", prefs: optedIn, distance: float64Ptr(0.5), expected: 1.0},
		{name: "far", prefs: optedIn, distance: float64Ptr(3), expected: 1.0},
		{name: "unknown distance", prefs: optedIn, distance: nil, expected: 1.0},
		{name: "opted out", prefs: account.Preferences{Location: &here}, distance: float64Ptr(0.1), expected: 1.0},
		{name: "no coordinates", prefs: account.Preferences{UseLocation: true}, distance: float64Ptr(0.1), expected: 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LocationBoost(tt.prefs, tt.distance, 0.5, 1.5); got != tt.expected {
				t.Errorf("expected %f, got %f", tt.expected, got)
			}
		})
	}
}

// TestHoursSince tests elapsed time conversion.
func TestHoursSince(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	if got := HoursSince(now.Add(-90*time.Minute), now); got != 1.5 {
		t.Errorf("expected 1.5, got %f", got)
	}
	if got := HoursSince(now.Add(time.Hour), now); got != 0 {
		t.Errorf("future timestamp should be 0 hours, got %f", got)
	}
}
