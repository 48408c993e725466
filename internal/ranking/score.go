package ranking

import (
	"github.com/onnwee/autolist/internal/account"
	"github.com/onnwee/autolist/internal/listing"
)

// Signals are the per-candidate inputs gathered by the feed aggregator.
type Signals struct {
	CommentCount          int
	Verified              bool
	FollowedOwner         bool
	Distance              *float64 // nil when unknown
	HoursSincePublication float64
}

// Breakdown is the per-factor decomposition of a score.
type Breakdown struct {
	Time         float64 `json:"time"`
	Engagement   float64 `json:"engagement"`
	Proximity    float64 `json:"proximity"`
	Bonus        float64 `json:"verification_bonus"`
	Base         float64 `json:"base"`
	Brand        float64 `json:"brand_boost"`
	UsedNew      float64 `json:"used_new_boost"`
	Location     float64 `json:"location_boost"`
	Verification float64 `json:"verification_boost"`
	Relationship float64 `json:"relationship_boost"`
	Score        float64 `json:"score"`
}

// Score computes the relevance of l for a viewer with preferences p.
// A nil w uses DefaultWeights.
func Score(l *listing.Listing, s Signals, p account.Preferences, w *Weights) float64 {
	return Explain(l, s, p, w).Score
}

// Explain computes the score and returns every intermediate factor.
func Explain(l *listing.Listing, s Signals, p account.Preferences, w *Weights) Breakdown {
	if w == nil {
		w = DefaultWeights()
	}

	// Distance only counts when the viewer opted into location.
	distance := s.Distance
	if !p.HasUsableLocation() {
		distance = nil
	}

	var b Breakdown
	b.Time = TimeFactor(s.HoursSincePublication)
	b.Engagement = EngagementFactor(s.CommentCount, w.EngagementHalfSaturation)
	b.Proximity = ProximityFactor(distance)
	b.Bonus = VerificationBonus(s.Verified, w.VerifiedBonus)
	b.Base = w.Base.Recency*b.Time +
		w.Base.Engagement*b.Engagement +
		w.Base.Proximity*b.Proximity +
		w.Base.Verification*b.Bonus

	var make string
	listingUsed := false
	if l != nil {
		make = l.Make
		listingUsed = l.Used
	}

	b.Brand = BrandBoost(p.PreferredBrand, make, w.Boosts.Brand)
	b.UsedNew = UsedNewBoost(p.WantsUsed, p.WantsNew, listingUsed, w.Boosts.UsedNewStrict, w.Boosts.UsedNewBoth)
	b.Location = LocationBoost(p, distance, w.CloseDistance, w.Boosts.Location)
	b.Verification = VerificationBoost(s.Verified, w.Boosts.Verified)
	b.Relationship = RelationshipBoost(s.FollowedOwner, w.Boosts.Relationship)

	b.Score = b.Base * b.Brand * b.UsedNew * b.Location * b.Verification * b.Relationship
	return b
}
