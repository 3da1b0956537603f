package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "autobuild:"

func slotKey(key string) string       { return keyPrefix + "slot:" + key }
func changeChannel(key string) string { return keyPrefix + "slot-changed:" + key }
func markerKey(id string) string      { return keyPrefix + "applied:" + id }

// NewClient creates and returns a new Redis client.
func NewClient(addr string, dialTimeout time.Duration) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  dialTimeout,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
		PoolSize:     10,
	})
}

// Ping verifies that the server is reachable.
func Ping(ctx context.Context, client *redis.Client) error {
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}
