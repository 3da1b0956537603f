package postgres

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/sethvargo/go-retry"
)

// NotifyChannel is the channel the task_slots trigger notifies on. The
// payload is the slot key.
const NotifyChannel = "task_slot_changed"

// Watcher listens for task_slot_changed notifications on a dedicated
// connection and reconnects with backoff when the connection drops.
type Watcher struct {
	databaseURL string
	key         string
	logger      *slog.Logger
	backoff     func() retry.Backoff
}

// NewWatcher creates a Watcher for the slot identified by key.
func NewWatcher(databaseURL, key string, logger *slog.Logger) *Watcher {
	return &Watcher{
		databaseURL: databaseURL,
		key:         key,
		logger:      logger.With("component", "postgres_watcher"),
		backoff: func() retry.Backoff {
			return retry.WithCappedDuration(30*time.Second, retry.NewExponential(500*time.Millisecond))
		},
	}
}

// Watch implements task.ChangeSource. The first connection is made
// synchronously so configuration errors surface to the caller.
func (w *Watcher) Watch(ctx context.Context) (<-chan struct{}, error) {
	conn, err := w.listen(ctx)
	if err != nil {
		return nil, err
	}

	changes := make(chan struct{}, 1)
	go func() {
		defer close(changes)

		for {
			w.receive(ctx, conn, changes)
			_ = conn.Close(context.Background())
			if ctx.Err() != nil {
				return
			}

			err := retry.Do(ctx, w.backoff(), func(ctx context.Context) error {
				var err error
				conn, err = w.listen(ctx)
				if err != nil {
					w.logger.Warn("failed to reconnect listener", "error", err)
					return retry.RetryableError(err)
				}
				return nil
			})
			if err != nil {
				return
			}

			// writes may have been missed while disconnected
			signal(changes)
		}
	}()

	return changes, nil
}

func (w *Watcher) listen(ctx context.Context) (*pgx.Conn, error) {
	conn, err := pgx.Connect(ctx, w.databaseURL)
	if err != nil {
		return nil, err
	}
	if _, err := conn.Exec(ctx, "LISTEN "+NotifyChannel); err != nil {
		_ = conn.Close(context.Background())
		return nil, err
	}
	return conn, nil
}

// receive forwards notifications for this slot until the connection fails
// or ctx ends.
func (w *Watcher) receive(ctx context.Context, conn *pgx.Conn, changes chan<- struct{}) {
	for {
		notification, err := conn.WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() == nil {
				w.logger.Warn("listener connection lost", "error", err)
			}
			return
		}
		if notification.Payload == w.key {
			signal(changes)
		}
	}
}

func signal(changes chan<- struct{}) {
	select {
	case changes <- struct{}{}:
	default:
	}
}
