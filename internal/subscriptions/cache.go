package subscriptions

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "subscription:"

// Cache stores subscription records in Redis for a bounded time.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache instantiates the cache helper. A nil client disables caching.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Get returns the cached record and whether it was present.
func (c *Cache) Get(ctx context.Context, userID string) (Record, bool, error) {
	if c == nil || c.client == nil {
		return Record{}, false, nil
	}
	payload, err := c.client.Get(ctx, cacheKeyPrefix+userID).Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	var rec Record
	if err := json.Unmarshal(payload, &rec); err != nil {
		return Record{}, false, err
	}
	return rec, true, nil
}

// Set stores rec under its user ID.
func (c *Cache) Set(ctx context.Context, rec Record) error {
	if c == nil || c.client == nil {
		return nil
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, cacheKeyPrefix+rec.UserID, raw, c.ttl).Err()
}

// Delete drops the cached record for userID.
func (c *Cache) Delete(ctx context.Context, userID string) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Del(ctx, cacheKeyPrefix+userID).Err()
}
