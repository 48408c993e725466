package ranking

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
)

// DefaultEngagementHalfSaturation is the comment count at which the
// engagement factor reaches 0.5.
const DefaultEngagementHalfSaturation = 5.0

// Calibration limits. With every boost at MaxBoost and every base weight at
// MaxBaseWeight the score stays far below the float64 range.
const (
	MaxBoost      = 10.0
	MaxBaseWeight = 1.0
)

// ErrInvalidCalibration is returned when a calibration file would produce
// weights outside their allowed ranges.
var ErrInvalidCalibration = errors.New("invalid ranking calibration")

// BaseWeights are the coefficients of the additive base signal.
type BaseWeights struct {
	Recency      float64 `json:"recency"`      // Weight for time decay (default: 0.4)
	Engagement   float64 `json:"engagement"`   // Weight for comment engagement (default: 0.3)
	Proximity    float64 `json:"proximity"`    // Weight for geographic proximity (default: 0.2)
	Verification float64 `json:"verification"` // Weight for the verification bonus (default: 0.1)
}

// Boosts are the multiplicative categorical factors applied to the base signal.
type Boosts struct {
	Brand         float64 `json:"brand"`           // Preferred brand match (default: 1.5)
	UsedNewStrict float64 `json:"used_new_strict"` // Strict used-or-new preference match (default: 1.5)
	UsedNewBoth   float64 `json:"used_new_both"`   // Viewer wants both used and new (default: 1.2)
	Location      float64 `json:"location"`        // Listing within CloseDistance (default: 1.5)
	Verified      float64 `json:"verified"`        // Verified listing (default: 3.0)
	Relationship  float64 `json:"relationship"`    // Viewer follows the owner (default: 1.5)
}

// Weights holds the complete scorer configuration.
type Weights struct {
	Base                     BaseWeights `json:"base"`
	Boosts                   Boosts      `json:"boosts"`
	VerifiedBonus            float64     `json:"verified_bonus"`             // Additive bonus for verified listings (default: 0.5)
	EngagementHalfSaturation float64     `json:"engagement_half_saturation"` // k in c/(c+k) (default: 5)
	CloseDistance            float64     `json:"close_distance"`             // Location boost threshold in degree units (default: 0.5)
}

// CalibrationConfig represents the JSON structure of the calibration file.
type CalibrationConfig struct {
	Version string  `json:"version"` // Config version for future compatibility
	Weights Weights `json:"weights"` // Weight configurations
}

// DefaultWeights returns the default scorer configuration.
//
// Base formula: base = (time * 0.4) + (engagement * 0.3) + (proximity * 0.2) + (bonus * 0.1)
// - Recency dominates so fresh listings surface first
// - Engagement saturates at k=5 comments
// - Proximity is neutral (1.0) when the distance is unknown
// - Max base: 0.95 (fresh, heavily discussed, co-located, verified)
func DefaultWeights() *Weights {
	return &Weights{
		Base: BaseWeights{
			Recency:      0.4,
			Engagement:   0.3,
			Proximity:    0.2,
			Verification: 0.1,
		},
		Boosts: Boosts{
			Brand:         1.5,
			UsedNewStrict: 1.5,
			UsedNewBoth:   1.2,
			Location:      1.5,
			Verified:      3.0,
			Relationship:  1.5,
		},
		VerifiedBonus:            0.5,
		EngagementHalfSaturation: DefaultEngagementHalfSaturation,
		CloseDistance:            0.5,
	}
}

// LoadCalibration loads ranking weights from a JSON calibration file.
// An empty path yields the defaults. On any read, parse or validation error
// the defaults are returned together with the error so callers can log and
// continue. Partial configurations are merged over the defaults.
func LoadCalibration(filePath string) (*Weights, error) {
	if filePath == "" {
		return DefaultWeights(), nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		slog.Warn("failed to read calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultWeights(), fmt.Errorf("failed to read calibration file: %w", err)
	}

	var config CalibrationConfig
	if err := json.Unmarshal(data, &config); err != nil {
		slog.Warn("failed to parse calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultWeights(), fmt.Errorf("failed to parse calibration file: %w", err)
	}

	defaults := DefaultWeights()
	merged := MergeCalibration(defaults, &config.Weights)
	if err := merged.Validate(); err != nil {
		slog.Warn("rejected calibration file, using defaults",
			"path", filePath,
			"error", err)
		return defaults, err
	}
	logCalibrationOverrides(defaults, merged)

	return merged, nil
}

// MergeCalibration merges override weights with base weights.
// Only non-zero values from the override are applied.
func MergeCalibration(base *Weights, override *Weights) *Weights {
	if base == nil {
		return DefaultWeights()
	}
	result := *base
	if override == nil {
		return &result
	}

	mergeValue(&result.Base.Recency, override.Base.Recency)
	mergeValue(&result.Base.Engagement, override.Base.Engagement)
	mergeValue(&result.Base.Proximity, override.Base.Proximity)
	mergeValue(&result.Base.Verification, override.Base.Verification)

	mergeValue(&result.Boosts.Brand, override.Boosts.Brand)
	mergeValue(&result.Boosts.UsedNewStrict, override.Boosts.UsedNewStrict)
	mergeValue(&result.Boosts.UsedNewBoth, override.Boosts.UsedNewBoth)
	mergeValue(&result.Boosts.Location, override.Boosts.Location)
	mergeValue(&result.Boosts.Verified, override.Boosts.Verified)
	mergeValue(&result.Boosts.Relationship, override.Boosts.Relationship)

	mergeValue(&result.VerifiedBonus, override.VerifiedBonus)
	mergeValue(&result.EngagementHalfSaturation, override.EngagementHalfSaturation)
	mergeValue(&result.CloseDistance, override.CloseDistance)

	return &result
}

func mergeValue(dst *float64, v float64) {
	if v != 0 {
		*dst = v
	}
}

// Validate checks that every weight is finite and non-negative, base weights
// and the verified bonus are at most MaxBaseWeight, every boost lies in
// [1, MaxBoost], and the engagement constant is positive.
func (w *Weights) Validate() error {
	if w == nil {
		return fmt.Errorf("%w: nil weights", ErrInvalidCalibration)
	}
	for _, f := range w.fields() {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return fmt.Errorf("%w: %s must be finite", ErrInvalidCalibration, f.name)
		}
		if f.boost && f.value < 1 {
			return fmt.Errorf("%w: %s must be >= 1, got %v", ErrInvalidCalibration, f.name, f.value)
		}
		if f.value < 0 {
			return fmt.Errorf("%w: %s must be non-negative, got %v", ErrInvalidCalibration, f.name, f.value)
		}
		if f.max > 0 && f.value > f.max {
			return fmt.Errorf("%w: %s must be <= %v, got %v", ErrInvalidCalibration, f.name, f.max, f.value)
		}
	}
	if w.EngagementHalfSaturation <= 0 {
		return fmt.Errorf("%w: engagement_half_saturation must be positive", ErrInvalidCalibration)
	}
	return nil
}

type weightField struct {
	name  string
	value float64
	boost bool
	max   float64 // 0 means no upper bound
}

func (w *Weights) fields() []weightField {
	return []weightField{
		{"base.recency", w.Base.Recency, false, MaxBaseWeight},
		{"base.engagement", w.Base.Engagement, false, MaxBaseWeight},
		{"base.proximity", w.Base.Proximity, false, MaxBaseWeight},
		{"base.verification", w.Base.Verification, false, MaxBaseWeight},
		{"boosts.brand", w.Boosts.Brand, true, MaxBoost},
		{"boosts.used_new_strict", w.Boosts.UsedNewStrict, true, MaxBoost},
		{"boosts.used_new_both", w.Boosts.UsedNewBoth, true, MaxBoost},
		{"boosts.location", w.Boosts.Location, true, MaxBoost},
		{"boosts.verified", w.Boosts.Verified, true, MaxBoost},
		{"boosts.relationship", w.Boosts.Relationship, true, MaxBoost},
		{"verified_bonus", w.VerifiedBonus, false, MaxBaseWeight},
		{"engagement_half_saturation", w.EngagementHalfSaturation, false, 0},
		{"close_distance", w.CloseDistance, false, 0},
	}
}

// logCalibrationOverrides logs which weights were overridden from defaults.
func logCalibrationOverrides(defaults *Weights, loaded *Weights) {
	var overrides []string
	def := defaults.fields()
	for i, f := range loaded.fields() {
		if f.value != def[i].value {
			overrides = append(overrides, fmt.Sprintf("%s: %.2f -> %.2f", f.name, def[i].value, f.value))
		}
	}

	if len(overrides) > 0 {
		slog.Info("loaded ranking calibration with overrides",
			"overrides", overrides)
	} else {
		slog.Info("loaded ranking calibration (using all defaults)")
	}
}
