package geo

import (
	"errors"
	"math"
)

// ErrInvalidCoordinates is returned when a latitude or longitude is out of range.
var ErrInvalidCoordinates = errors.New("coordinates out of range")

// KilometersPerDegree is the approximate length of one degree of latitude.
const KilometersPerDegree = 111.32

// Point represents a geographic coordinate with latitude and longitude.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Validate reports ErrInvalidCoordinates for NaN, infinite, or out of range values.
func (p Point) Validate() error {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lng, 0) {
		return ErrInvalidCoordinates
	}
	if p.Lat < -90 || p.Lat > 90 || p.Lng < -180 || p.Lng > 180 {
		return ErrInvalidCoordinates
	}
	return nil
}

// Distance returns the planar distance between a and b in degrees of latitude.
//
// The longitude delta is scaled by the cosine of the mean latitude and wrapped
// across the antimeridian, so one unit is roughly KilometersPerDegree
// everywhere. This is an equirectangular approximation, not a geodesic; it is
// monotone enough for ranking nearby listings and costs no trigonometry beyond
// one cosine.
func Distance(a, b Point) float64 {
	dLat := a.Lat - b.Lat
	dLng := math.Abs(a.Lng - b.Lng)
	if dLng > 180 {
		dLng = 360 - dLng
	}
	meanLat := (a.Lat + b.Lat) / 2 * math.Pi / 180
	dLng *= math.Cos(meanLat)
	return math.Sqrt(dLat*dLat + dLng*dLng)
}

// DistanceKm converts Distance to approximate kilometers.
func DistanceKm(a, b Point) float64 {
	return Distance(a, b) * KilometersPerDegree
}
