package etcd

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/autobuild/internal/store"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// Guard records applied artifacts as marker keys created in a Txn that
// only succeeds when the key does not exist yet.
type Guard struct {
	client *clientv3.Client
}

// NewGuard creates a Guard.
func NewGuard(client *clientv3.Client) *Guard {
	return &Guard{client: client}
}

// HasBeenApplied implements task.Guard.
func (g *Guard) HasBeenApplied(ctx context.Context, id uuid.UUID) (bool, error) {
	resp, err := g.client.Get(ctx, markerKey(id.String()), clientv3.WithCountOnly())
	if err != nil {
		return false, store.NewStoreError("marker", "check", "etcd get", err)
	}
	return resp.Count > 0, nil
}

// MarkApplied implements task.Guard.
func (g *Guard) MarkApplied(ctx context.Context, id uuid.UUID) (bool, error) {
	key := markerKey(id.String())
	resp, err := g.client.Txn(ctx).
		If(clientv3.Compare(clientv3.CreateRevision(key), "=", 0)).
		Then(clientv3.OpPut(key, time.Now().UTC().Format(time.RFC3339))).
		Commit()
	if err != nil {
		return false, store.NewStoreError("marker", "create", "etcd txn", err)
	}
	return resp.Succeeded, nil
}

// Unmark implements task.Guard.
func (g *Guard) Unmark(ctx context.Context, id uuid.UUID) error {
	if _, err := g.client.Delete(ctx, markerKey(id.String())); err != nil {
		return store.NewStoreError("marker", "remove", "etcd delete", err)
	}
	return nil
}
