package redis

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// Watcher subscribes to the change channel the save script publishes on.
type Watcher struct {
	client redis.UniversalClient
	key    string
	logger *slog.Logger
}

// NewWatcher creates a Watcher for the slot named key.
func NewWatcher(client redis.UniversalClient, key string, logger *slog.Logger) *Watcher {
	return &Watcher{
		client: client,
		key:    key,
		logger: logger.With("component", "redis_watcher"),
	}
}

// Watch implements task.ChangeSource. It returns once the subscription is
// confirmed by the server.
func (w *Watcher) Watch(ctx context.Context) (<-chan struct{}, error) {
	pubsub := w.client.Subscribe(ctx, changeChannel(w.key))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis subscribe: %w", err)
	}

	messages := pubsub.Channel()
	changes := make(chan struct{}, 1)
	go func() {
		defer close(changes)
		defer func() { _ = pubsub.Close() }()

		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-messages:
				if !ok {
					w.logger.Warn("subscription closed")
					return
				}
				select {
				case changes <- struct{}{}:
				default:
				}
			}
		}
	}()

	return changes, nil
}
