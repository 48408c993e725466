// Package ranking implements the listing relevance scorer used by the
// personalized feed.
//
// Basic Usage:
//
//	// Load calibration (typically at startup)
//	weights, err := ranking.LoadCalibration("configs/ranking.calibration.json")
//	if err != nil {
//		log.Warn("using default weights", "error", err)
//	}
//
//	signals := ranking.Signals{
//		CommentCount:          4,
//		Verified:              listing.Verified,
//		FollowedOwner:         followed[listing.OwnerID],
//		Distance:              nil, // unknown
//		HoursSincePublication: ranking.HoursSince(listing.PublishedAt, now),
//	}
//	score := ranking.Score(listing, signals, prefs, weights)
//
// Score Composition:
//
// The base signal is a weighted sum of normalized features, each in [0, 1]:
//
//	base = 0.4*time + 0.3*engagement + 0.2*proximity + 0.1*verificationBonus
//
// where time = 1/(hours+1), engagement = c/(c+k), proximity = 1/(d+1) (1.0 when
// the distance is unknown) and verificationBonus = 0.5 for verified listings.
// The base is then multiplied by categorical boosts (brand, used/new, location,
// verification, relationship). Every boost is at least 1 and finite, so a
// listing with all-neutral boosts is ordered purely by its base signal.
//
// Score is a pure function: it performs no I/O, reads no clock and holds no
// state, so identical inputs always produce bit-identical output.
//
// Calibration:
//
// Weights and boosts can be tuned with a JSON file loaded at startup. Partial
// files are merged over DefaultWeights and rejected if they would make a
// boost smaller than 1 or any value non-finite. See
// configs/ranking.calibration.json for the default configuration.
package ranking
