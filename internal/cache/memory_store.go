package cache

import (
	"context"
	"sync"

	"github.com/calebh/marketscout/internal/domain"
)

// MemoryStore keeps cache entries in process memory. It backs tests and the
// degraded mode entered when the durable store is unavailable.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]domain.CacheEntry
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]domain.CacheEntry)}
}

func memKey(marketplace, listingID string) string {
	return marketplace + "\x00" + listingID
}

// Get retrieves the entry for a listing.
func (s *MemoryStore) Get(ctx context.Context, marketplace, listingID string) (*domain.CacheEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[memKey(marketplace, listingID)]
	if !ok {
		return nil, ErrNotFound
	}
	return &entry, nil
}

// Put inserts or updates an entry.
func (s *MemoryStore) Put(ctx context.Context, entry *domain.CacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[memKey(entry.Marketplace, entry.ListingID)] = *entry
	return nil
}

// Delete removes an entry.
func (s *MemoryStore) Delete(ctx context.Context, marketplace, listingID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, memKey(marketplace, listingID))
	return nil
}

// Count returns the number of stored entries.
func (s *MemoryStore) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.entries)), nil
}
