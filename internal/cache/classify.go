package cache

import "github.com/calebh/marketscout/internal/domain"

// Classification is the dedup verdict for one observed listing.
type Classification int

const (
	ClassNew Classification = iota
	ClassUnchanged
	ClassChanged
	ClassChangedPriceOnly
)

// String returns the classification name.
func (c Classification) String() string {
	switch c {
	case ClassNew:
		return "new"
	case ClassUnchanged:
		return "unchanged"
	case ClassChanged:
		return "changed"
	case ClassChangedPriceOnly:
		return "changed_price_only"
	}
	return "unknown"
}

// Classify compares a listing against its last-known state.
// Parameters:
//   - previous: cached entry, nil when the listing has never been seen.
//   - current: freshly observed listing.
// Returns:
//   - Classification: ClassNew without a previous entry; ClassUnchanged when
//     the tracked field set is identical; ClassChangedPriceOnly when only the
//     price field differs; ClassChanged otherwise.
func Classify(previous *domain.CacheEntry, current *domain.Listing) Classification {
	if previous == nil {
		return ClassNew
	}
	if previous.FieldHash == current.FieldHash() {
		return ClassUnchanged
	}
	if previous.CoreHash == current.CoreHash() {
		return ClassChangedPriceOnly
	}
	return ClassChanged
}
