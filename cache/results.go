package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// resultsTTL keeps stale projections short-lived even if an invalidation
// is ever missed.
const resultsTTL = 30 * time.Second

// ProjectionCache is a read-through cache for poll result projections.
// Entries are invalidated by the broadcast service whenever a poll's
// tallies change.
type ProjectionCache struct {
	client *redis.Client
}

// NewProjectionCache wraps a redis client; a nil client yields a cache
// whose reads always miss and whose writes are no-ops.
func NewProjectionCache(client *redis.Client) *ProjectionCache {
	return &ProjectionCache{client: client}
}

func resultsKey(pollID uint) string {
	return fmt.Sprintf("poll:results:%d", pollID)
}

// GetResults unmarshals a cached projection into dest.
func (c *ProjectionCache) GetResults(ctx context.Context, pollID uint, dest interface{}) error {
	if c == nil || c.client == nil {
		return ErrCacheUnavailable
	}
	data, err := c.client.Get(ctx, resultsKey(pollID)).Bytes()
	if err == redis.Nil {
		return ErrCacheMiss
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

// SetResults stores a projection under the poll's key.
func (c *ProjectionCache) SetResults(ctx context.Context, pollID uint, value interface{}) error {
	if c == nil || c.client == nil {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, resultsKey(pollID), data, resultsTTL).Err()
}

// Invalidate drops the cached projection for a poll.
func (c *ProjectionCache) Invalidate(ctx context.Context, pollID uint) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Del(ctx, resultsKey(pollID)).Err()
}
