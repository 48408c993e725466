// Package geo provides coordinate helpers for listing locations: a cheap
// planar distance used for proximity ranking and geohash encoding for coarse
// public display.
package geo

// DefaultPrecision keeps public geohashes at 5 characters, a cell of roughly
// 4.9 x 4.9 km, so a listing's area is shown without the seller's address.
const DefaultPrecision = 5

const geohashAlphabet = "0123456789bcdefghjkmnpqrstuvwxyz"

// interval is one axis being bisected.
type interval struct{ lo, hi float64 }

// halve narrows iv toward v and returns 1 when v lies in the upper half.
// A value on the midpoint goes to the lower half.
func (iv *interval) halve(v float64) uint8 {
	mid := (iv.lo + iv.hi) / 2
	if v > mid {
		iv.lo = mid
		return 1
	}
	iv.hi = mid
	return 0
}

// Encode returns the geohash of (lat, lng) with precision characters.
// Bits alternate starting with longitude; a precision below 1 means
// DefaultPrecision.
func Encode(lat, lng float64, precision int) string {
	if precision < 1 {
		precision = DefaultPrecision
	}
	lngIv := interval{-180, 180}
	latIv := interval{-90, 90}

	out := make([]byte, precision)
	bit := 0
	for i := range out {
		var idx uint8
		for range 5 {
			var b uint8
			if bit%2 == 0 {
				b = lngIv.halve(lng)
			} else {
				b = latIv.halve(lat)
			}
			idx = idx<<1 | b
			bit++
		}
		out[i] = geohashAlphabet[idx]
	}
	return string(out)
}

// EncodePoint is Encode for a Point at DefaultPrecision, or "" for nil.
func EncodePoint(p *Point) string {
	if p == nil {
		return ""
	}
	return Encode(p.Lat, p.Lng, DefaultPrecision)
}
