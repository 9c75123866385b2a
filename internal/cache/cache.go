package cache

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/calebh/marketscout/internal/domain"
	"github.com/calebh/marketscout/internal/logger"
)

const lockStripes = 64

// ListingCache is the shared dedup store used by all jobs. Writes are
// serialized per (marketplace, listing_id) key; reads and writes on distinct
// keys proceed concurrently.
//
// When the durable store fails, the cache degrades to an in-memory overlay
// for the rest of the run. A restart in that window may re-notify
// already-seen listings; that trade-off is accepted in favor of keeping jobs
// running.
type ListingCache struct {
	store    Store
	fallback *MemoryStore
	degraded atomic.Bool
	locks    [lockStripes]sync.Mutex
	log      *logger.Logger
	now      func() time.Time
}

// New creates a ListingCache over the given durable store.
// Parameters:
//   - store: durable backing store.
//   - log: logger for degradation warnings; nil uses the default.
// Returns:
//   - *ListingCache: cache instance.
func New(store Store, log *logger.Logger) *ListingCache {
	if log == nil {
		log = logger.GetDefault()
	}
	return &ListingCache{
		store:    store,
		fallback: NewMemoryStore(),
		log:      log,
		now:      time.Now,
	}
}

// Degraded reports whether the cache has fallen back to memory-only mode.
func (c *ListingCache) Degraded() bool {
	return c.degraded.Load()
}

func (c *ListingCache) backend() Store {
	if c.degraded.Load() {
		return c.fallback
	}
	return c.store
}

func (c *ListingCache) degrade(err error) {
	if c.degraded.CompareAndSwap(false, true) {
		c.log.WithError(err).Warn("Listing cache store unavailable, falling back to in-memory cache; a restart may re-notify already-seen listings")
	}
}

func (c *ListingCache) lockFor(marketplace, listingID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(marketplace))
	h.Write([]byte{0})
	h.Write([]byte(listingID))
	return &c.locks[h.Sum32()%lockStripes]
}

// Get returns the last-known entry for a listing, or nil when the listing has
// never been seen. Store failures degrade the cache instead of failing the
// lookup.
func (c *ListingCache) Get(ctx context.Context, marketplace, listingID string) *domain.CacheEntry {
	entry, err := c.backend().Get(ctx, marketplace, listingID)
	if err == nil {
		return entry
	}
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	c.degrade(err)
	entry, err = c.fallback.Get(ctx, marketplace, listingID)
	if err != nil {
		return nil
	}
	return entry
}

// Classify compares a listing against its cached state.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - listing: freshly observed listing.
// Returns:
//   - Classification: dedup verdict.
//   - *domain.CacheEntry: previous entry, nil for ClassNew.
func (c *ListingCache) Classify(ctx context.Context, listing *domain.Listing) (Classification, *domain.CacheEntry) {
	previous := c.Get(ctx, listing.Marketplace, listing.ID)
	return Classify(previous, listing), previous
}

// Commit records the observed state of a listing, preserving first-seen and
// last-notified timestamps from the previous entry.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - listing: observed listing, filtered or not.
//   - notifiedAt: notification time for this observation, nil when the
//     listing was not notified.
// Returns:
//   - error: non-nil only when both the durable store and the in-memory
//     fallback fail.
func (c *ListingCache) Commit(ctx context.Context, listing *domain.Listing, notifiedAt *time.Time) error {
	mu := c.lockFor(listing.Marketplace, listing.ID)
	mu.Lock()
	defer mu.Unlock()

	now := c.now()
	entry := &domain.CacheEntry{
		Marketplace: listing.Marketplace,
		ListingID:   listing.ID,
		FieldHash:   listing.FieldHash(),
		CoreHash:    listing.CoreHash(),
		FirstSeenAt: now,
		LastSeenAt:  now,
	}
	if previous := c.Get(ctx, listing.Marketplace, listing.ID); previous != nil {
		entry.FirstSeenAt = previous.FirstSeenAt
		entry.LastNotifiedAt = previous.LastNotifiedAt
	}
	if notifiedAt != nil {
		entry.LastNotifiedAt = notifiedAt
	}

	if err := c.backend().Put(ctx, entry); err != nil {
		c.degrade(err)
		return c.fallback.Put(ctx, entry)
	}
	return nil
}

// Remove deletes a listing's entry. Removal is explicit only.
func (c *ListingCache) Remove(ctx context.Context, marketplace, listingID string) error {
	mu := c.lockFor(marketplace, listingID)
	mu.Lock()
	defer mu.Unlock()
	return c.backend().Delete(ctx, marketplace, listingID)
}

// Size returns the number of cached entries.
func (c *ListingCache) Size(ctx context.Context) int64 {
	count, err := c.backend().Count(ctx)
	if err != nil {
		return 0
	}
	return count
}
