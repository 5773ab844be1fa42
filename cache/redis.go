// Package cache holds the redis-backed projection cache and the
// distributed lock used by the poll expiry sweeper. Every entry point
// degrades gracefully when redis is not available: the system stays
// correct, just slower.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrCacheUnavailable is returned when redis is not configured or down.
var ErrCacheUnavailable = errors.New("cache unavailable")

// ErrCacheMiss is returned on a missing key.
var ErrCacheMiss = errors.New("cache miss")

// NewClient connects to redis and verifies the connection with a ping.
func NewClient(addr, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           0,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}
