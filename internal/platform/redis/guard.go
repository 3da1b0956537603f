package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/autobuild/internal/store"
	"github.com/redis/go-redis/v9"
)

// Guard records applied artifacts as SETNX marker keys without expiry.
type Guard struct {
	client redis.UniversalClient
}

// NewGuard creates a Guard.
func NewGuard(client redis.UniversalClient) *Guard {
	return &Guard{client: client}
}

// HasBeenApplied implements task.Guard.
func (g *Guard) HasBeenApplied(ctx context.Context, id uuid.UUID) (bool, error) {
	n, err := g.client.Exists(ctx, markerKey(id.String())).Result()
	if err != nil {
		return false, store.NewStoreError("marker", "check", "redis exists", err)
	}
	return n == 1, nil
}

// MarkApplied implements task.Guard.
func (g *Guard) MarkApplied(ctx context.Context, id uuid.UUID) (bool, error) {
	won, err := g.client.SetNX(ctx, markerKey(id.String()), time.Now().UTC().Format(time.RFC3339), 0).Result()
	if err != nil {
		return false, store.NewStoreError("marker", "create", "redis setnx", err)
	}
	return won, nil
}

// Unmark implements task.Guard.
func (g *Guard) Unmark(ctx context.Context, id uuid.UUID) error {
	if err := g.client.Del(ctx, markerKey(id.String())).Err(); err != nil {
		return store.NewStoreError("marker", "remove", "redis del", err)
	}
	return nil
}
