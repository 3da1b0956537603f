package etcd

import (
	"context"
	"log/slog"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// Watcher reports writes to the slot key through etcd's Watch API.
type Watcher struct {
	client *clientv3.Client
	key    string
	logger *slog.Logger
}

// NewWatcher creates a Watcher for the slot named key.
func NewWatcher(client *clientv3.Client, key string, logger *slog.Logger) *Watcher {
	return &Watcher{
		client: client,
		key:    slotKey(key),
		logger: logger.With("component", "etcd_watcher"),
	}
}

// Watch implements task.ChangeSource.
func (w *Watcher) Watch(ctx context.Context) (<-chan struct{}, error) {
	watchCh := w.client.Watch(clientv3.WithRequireLeader(ctx), w.key)

	changes := make(chan struct{}, 1)
	go func() {
		defer close(changes)

		for resp := range watchCh {
			if err := resp.Err(); err != nil {
				w.logger.Warn("etcd watch error", "error", err)
				continue
			}
			if len(resp.Events) == 0 {
				continue
			}
			select {
			case changes <- struct{}{}:
			default:
			}
		}
	}()

	return changes, nil
}
