package domain

// ItemSpec is a user-declared search intent. It is marketplace-agnostic apart
// from the optional per-marketplace override blocks, and is immutable between
// configuration reloads.
type ItemSpec struct {
	Name          string
	Enabled       bool
	SearchPhrases []string

	// Keywords and Antikeywords are boolean filter expressions; empty means
	// the corresponding check is skipped.
	Keywords     string
	Antikeywords string

	MinPrice *float64
	MaxPrice *float64

	// Marketplaces limits the item to the named marketplace instances.
	// Empty means every enabled marketplace.
	Marketplaces []string

	// SearchDescription extends keyword matching to the listing description.
	SearchDescription bool

	// CacheIgnorePriceChanges suppresses re-notification for listings whose
	// only change since the last sighting is the price.
	CacheIgnorePriceChanges bool

	// Common holds schema fields that apply to every marketplace in scope;
	// Overrides holds per-marketplace field blocks keyed by marketplace type.
	Common    map[string]any
	Overrides map[string]map[string]any
}

// InScope reports whether the item targets the given marketplace instance.
// Parameters:
//   - marketplace: marketplace instance name.
// Returns:
//   - bool: true when the scope is empty or names the marketplace.
func (s *ItemSpec) InScope(marketplace string) bool {
	if len(s.Marketplaces) == 0 {
		return true
	}
	for _, m := range s.Marketplaces {
		if m == marketplace {
			return true
		}
	}
	return false
}

// PriceAllowed applies the item's inclusive price bounds. A listing without a
// stated price always passes; bounds never exclude an unpriced listing.
func (s *ItemSpec) PriceAllowed(price *float64) bool {
	if price == nil {
		return true
	}
	if s.MinPrice != nil && *price < *s.MinPrice {
		return false
	}
	if s.MaxPrice != nil && *price > *s.MaxPrice {
		return false
	}
	return true
}
