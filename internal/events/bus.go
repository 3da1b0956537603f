package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/phrazzld/autobuild/internal/domain"
)

// Subscriber receives a snapshot of the full task collection. Each
// subscriber gets its own copy and may modify it freely.
type Subscriber func(ctx context.Context, tasks []domain.Task) error

type subscription struct {
	id int
	fn Subscriber
}

// Bus fans out task snapshots to subscribers in subscription order.
// A failing or panicking subscriber is logged and does not prevent
// delivery to the others.
type Bus struct {
	mu     sync.RWMutex
	subs   []subscription
	nextID int
	logger *slog.Logger
}

// NewBus creates a Bus with no subscribers.
func NewBus(logger *slog.Logger) *Bus {
	return &Bus{
		logger: logger.With("component", "notification_bus"),
	}
}

// Subscribe registers fn and returns a function that removes it again.
// The returned function is safe to call more than once.
func (b *Bus) Subscribe(fn Subscriber) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, fn: fn})
	b.logger.Debug("registered subscriber", "subscriber_count", len(b.subs))

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

func (b *Bus) remove(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, sub := range b.subs {
		if sub.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

// Len returns the number of current subscribers.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Publish delivers tasks to every subscriber synchronously.
func (b *Bus) Publish(ctx context.Context, tasks []domain.Task) {
	b.mu.RLock()
	subs := make([]subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, sub := range subs {
		if err := b.deliver(ctx, sub, domain.CloneTasks(tasks)); err != nil {
			b.logger.Error("subscriber failed to process snapshot",
				"error", err,
				"subscriber_id", sub.id,
				"task_count", len(tasks))
		}
	}
}

func (b *Bus) deliver(ctx context.Context, sub subscription, tasks []domain.Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("subscriber panicked: %v", r)
		}
	}()
	return sub.fn(ctx, tasks)
}
