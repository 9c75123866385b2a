// Package cache implements the durable listing cache that gives the monitor
// its at-most-one-notification semantics. Entries are keyed by (marketplace,
// listing id), never expire automatically, and survive process restarts.
package cache

import (
	"context"
	"errors"

	"github.com/calebh/marketscout/internal/domain"
)

// ErrNotFound is returned by Store.Get when no entry exists for the key.
var ErrNotFound = errors.New("cache entry not found")

// Store is the persistence contract for cache entries. Implementations must
// make Put upsert on the (marketplace, listing_id) key.
type Store interface {
	// Get retrieves the entry for a listing.
	// Parameters:
	//   - ctx: context for cancellation and deadlines.
	//   - marketplace: marketplace instance identifier.
	//   - listingID: stable listing ID.
	// Returns:
	//   - *domain.CacheEntry: entry if present.
	//   - error: ErrNotFound when absent, another error on store failure.
	Get(ctx context.Context, marketplace, listingID string) (*domain.CacheEntry, error)

	// Put inserts or updates an entry.
	Put(ctx context.Context, entry *domain.CacheEntry) error

	// Delete removes an entry. Removal is always explicit; the cache has no
	// automatic expiry.
	Delete(ctx context.Context, marketplace, listingID string) error

	// Count returns the number of stored entries.
	Count(ctx context.Context) (int64, error)
}
