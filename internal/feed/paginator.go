package feed

import (
	"sort"

	"github.com/onnwee/autolist/internal/listing"
	"github.com/onnwee/autolist/internal/ranking"
)

// Paging defaults.
const (
	DefaultPageSize = 20
	MaxPageSize     = 50
)

// ScoredListing pairs a listing with its relevance score for one request.
type ScoredListing struct {
	Listing   *listing.Listing
	Score     float64
	Breakdown *ranking.Breakdown
}

// Page is one page of feed results.
type Page struct {
	Items []ScoredListing
	Page  int
	Size  int

	// Total counts the ranked candidates, not every active listing. When
	// Capped is set the candidate fetch hit MaxCandidates: listings older
	// (by ID) than the newest MaxCandidates may have been left out, so Total
	// and HasNext describe the capped set.
	Total   int
	HasNext bool
	Capped  bool

	// Ranked is false for filter queries, whose items carry no score.
	Ranked bool

	// Degraded lists signals that were scored as neutral.
	Degraded []string
}

// SortScored orders items by score descending, ties by listing ID descending.
func SortScored(items []ScoredListing) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		return items[i].Listing.ID > items[j].Listing.ID
	})
}

// Paginate returns the page-th window of size items from an already ordered
// slice, the total item count, and whether a later page exists. Pages past
// the end are empty with hasNext false. page must be >= 0 and size > 0.
func Paginate[T any](items []T, page, size int) ([]T, int, bool) {
	total := len(items)
	if size <= 0 || page < 0 || page >= (total+size-1)/size {
		return []T{}, total, false
	}
	start := page * size
	end := min(start+size, total)
	return items[start:end], total, end < total
}

// window reports the offset for a page and whether it can overflow int.
func window(page, size int) (int, bool) {
	const maxInt = int(^uint(0) >> 1)
	if page > 0 && size > maxInt/page {
		return 0, false
	}
	return page * size, true
}
