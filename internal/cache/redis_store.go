package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/calebh/marketscout/internal/domain"
)

// RedisStore persists cache entries in Redis, one JSON value per
// (marketplace, listing_id) key under a shared prefix. Keys carry no TTL;
// the cache lives for the monitor's lifetime.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisStore creates a RedisStore.
// Parameters:
//   - rdb: connected Redis client.
//   - prefix: key namespace; empty uses "listingcache".
// Returns:
//   - *RedisStore: store instance.
func NewRedisStore(rdb *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "listingcache"
	}
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (s *RedisStore) key(marketplace, listingID string) string {
	return fmt.Sprintf("%s:%s:%s", s.prefix, marketplace, listingID)
}

// Get retrieves the entry for a listing.
func (s *RedisStore) Get(ctx context.Context, marketplace, listingID string) (*domain.CacheEntry, error) {
	raw, err := s.rdb.Get(ctx, s.key(marketplace, listingID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var entry domain.CacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("corrupt cache entry for %s/%s: %w", marketplace, listingID, err)
	}
	return &entry, nil
}

// Put inserts or updates an entry.
func (s *RedisStore) Put(ctx context.Context, entry *domain.CacheEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, s.key(entry.Marketplace, entry.ListingID), raw, 0).Err()
}

// Delete removes an entry.
func (s *RedisStore) Delete(ctx context.Context, marketplace, listingID string) error {
	return s.rdb.Del(ctx, s.key(marketplace, listingID)).Err()
}

// Count returns the number of stored entries by scanning the key prefix.
func (s *RedisStore) Count(ctx context.Context) (int64, error) {
	var count int64
	iter := s.rdb.Scan(ctx, 0, s.prefix+":*", 0).Iterator()
	for iter.Next(ctx) {
		count++
	}
	return count, iter.Err()
}
