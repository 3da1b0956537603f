package task

import (
	"context"
	"log/slog"
)

// ChangeSource signals that the durable slot may have been changed by
// another process. Signals may be spurious or coalesced; the channel is
// closed when ctx ends or the source fails permanently.
type ChangeSource interface {
	Watch(ctx context.Context) (<-chan struct{}, error)
}

// Reloader re-reads durable state. *TaskStore implements it.
type Reloader interface {
	Reload(ctx context.Context) error
}

// ExternalSyncWatcher reloads the task store whenever its change source
// fires, which re-publishes the collection to bus subscribers.
type ExternalSyncWatcher struct {
	source   ChangeSource
	reloader Reloader
	logger   *slog.Logger
}

// NewExternalSyncWatcher creates an ExternalSyncWatcher.
func NewExternalSyncWatcher(source ChangeSource, reloader Reloader, logger *slog.Logger) *ExternalSyncWatcher {
	return &ExternalSyncWatcher{
		source:   source,
		reloader: reloader,
		logger:   logger.With("component", "external_sync_watcher"),
	}
}

// Run blocks until ctx is done or the change source closes. Reload
// failures are logged and do not stop the watcher.
func (w *ExternalSyncWatcher) Run(ctx context.Context) error {
	changes, err := w.source.Watch(ctx)
	if err != nil {
		return err
	}

	w.logger.Info("watching for external changes")
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-changes:
			if !ok {
				if ctx.Err() == nil {
					w.logger.Warn("change source closed")
				}
				return nil
			}
			if err := w.reloader.Reload(ctx); err != nil {
				w.logger.Warn("failed to reload after external change", "error", err)
			}
		}
	}
}
