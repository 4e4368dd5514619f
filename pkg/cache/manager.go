package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrCacheMiss is returned when no live entry exists for a key.
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry is returned when a stored entry cannot be decoded.
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// scanBatch is the SCAN page size used by Purge.
const scanBatch = 200

// Manager stores catalog responses in Redis. Entries expire in Redis at
// their Expires time.
type Manager struct {
	redis *redis.Client
}

// NewManager creates a cache manager. It panics if redisClient is nil.
func NewManager(redisClient *redis.Client) *Manager {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &Manager{redis: redisClient}
}

// Get returns the entry stored under key, or ErrCacheMiss.
func (m *Manager) Get(ctx context.Context, key CacheKey) (*CacheEntry, error) {
	data, err := m.redis.Get(ctx, key.String()).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		CacheMisses.Inc()
		return nil, ErrCacheMiss
	case err != nil:
		return nil, failed("get", err)
	}

	var entry CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidEntry, key, err)
	}

	// Redis expiry and the local clock can disagree by a little.
	if entry.IsExpired() {
		CacheMisses.Inc()
		return nil, ErrCacheMiss
	}

	CacheHits.Inc()
	return &entry, nil
}

// Set stores entry under key until entry.Expires. Expired entries are not
// stored.
func (m *Manager) Set(ctx context.Context, key CacheKey, entry *CacheEntry) error {
	if entry == nil {
		return errors.New("cache entry cannot be nil")
	}
	if entry.TTL() <= 0 {
		return nil
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return failed("set", err)
	}

	args := redis.SetArgs{ExpireAt: entry.Expires}
	if err := m.redis.SetArgs(ctx, key.String(), data, args).Err(); err != nil {
		return failed("set", err)
	}

	CacheSize.Add(float64(len(data)))
	return nil
}

// Delete removes the entries stored under keys.
func (m *Manager) Delete(ctx context.Context, keys ...CacheKey) error {
	if len(keys) == 0 {
		return nil
	}

	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = k.String()
	}
	if err := m.redis.Del(ctx, names...).Err(); err != nil {
		return failed("delete", err)
	}
	return nil
}

// Purge removes every entry cached for endpoint, whatever its parameters,
// and returns the number of entries removed.
func (m *Manager) Purge(ctx context.Context, endpoint string) (int64, error) {
	prefix := CacheKey{Endpoint: endpoint}.String()

	removed, err := m.redis.Del(ctx, prefix).Result()
	if err != nil {
		return 0, failed("purge", err)
	}

	var cursor uint64
	for {
		keys, next, err := m.redis.Scan(ctx, cursor, prefix+":*", scanBatch).Result()
		if err != nil {
			return removed, failed("purge", err)
		}
		if len(keys) > 0 {
			n, err := m.redis.Del(ctx, keys...).Result()
			if err != nil {
				return removed, failed("purge", err)
			}
			removed += n
		}
		if next == 0 {
			return removed, nil
		}
		cursor = next
	}
}

func failed(op string, err error) error {
	CacheErrors.WithLabelValues(op).Inc()
	return fmt.Errorf("redis %s: %w", op, err)
}
