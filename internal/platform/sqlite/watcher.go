package sqlite

import (
	"context"
	"log/slog"
	"time"
)

// DefaultPollInterval is how often the Watcher checks the slot version.
const DefaultPollInterval = time.Second

// Watcher polls the slot version and signals when it changes.
type Watcher struct {
	slot     *Slot
	interval time.Duration
	logger   *slog.Logger
}

// NewWatcher creates a Watcher for slot. A non-positive interval uses
// DefaultPollInterval.
func NewWatcher(slot *Slot, interval time.Duration, logger *slog.Logger) *Watcher {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Watcher{
		slot:     slot,
		interval: interval,
		logger:   logger.With("component", "sqlite_watcher"),
	}
}

// Watch implements task.ChangeSource.
func (w *Watcher) Watch(ctx context.Context) (<-chan struct{}, error) {
	last, err := w.slot.version(ctx)
	if err != nil {
		return nil, err
	}

	changes := make(chan struct{}, 1)
	go func() {
		defer close(changes)

		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				current, err := w.slot.version(ctx)
				if err != nil {
					if ctx.Err() == nil {
						w.logger.Warn("failed to poll slot version", "error", err)
					}
					continue
				}
				if current == last {
					continue
				}
				last = current
				select {
				case changes <- struct{}{}:
				default:
				}
			}
		}
	}()

	return changes, nil
}
