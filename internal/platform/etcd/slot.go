package etcd

import (
	"context"

	"github.com/phrazzld/autobuild/internal/store"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// Slot stores the task collection under a single etcd key.
type Slot struct {
	client *clientv3.Client
	key    string
}

// NewSlot creates a Slot named key.
func NewSlot(client *clientv3.Client, key string) *Slot {
	return &Slot{client: client, key: slotKey(key)}
}

// Load implements store.Slot.
func (s *Slot) Load(ctx context.Context) ([]byte, int64, error) {
	resp, err := s.client.Get(ctx, s.key)
	if err != nil {
		return nil, 0, store.NewStoreError("slot", "load", "etcd get", err)
	}
	if len(resp.Kvs) == 0 {
		return nil, 0, nil
	}

	kv := resp.Kvs[0]
	return kv.Value, kv.ModRevision, nil
}

// Save implements store.Slot.
func (s *Slot) Save(ctx context.Context, data []byte, expectedVersion int64) (int64, error) {
	cmp := clientv3.Compare(clientv3.ModRevision(s.key), "=", expectedVersion)
	if expectedVersion == 0 {
		cmp = clientv3.Compare(clientv3.CreateRevision(s.key), "=", 0)
	}

	resp, err := s.client.Txn(ctx).
		If(cmp).
		Then(clientv3.OpPut(s.key, string(data))).
		Commit()
	if err != nil {
		return 0, store.NewStoreError("slot", "save", "etcd txn", err)
	}
	if !resp.Succeeded {
		return 0, store.ErrVersionConflict
	}

	return resp.Header.Revision, nil
}
