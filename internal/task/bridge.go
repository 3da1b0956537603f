package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/phrazzld/autobuild/internal/domain"
	"github.com/phrazzld/autobuild/internal/events"
)

// FileWriter writes an artifact into the target workspace.
type FileWriter interface {
	WriteFile(ctx context.Context, location, content string) error
}

// RouteRegistrar makes a page or button reachable in the target application.
type RouteRegistrar interface {
	RegisterRoute(ctx context.Context, symbol, location string) error
}

// BridgeConfig configures a Bridge.
type BridgeConfig struct {
	// ApplyTimeout bounds each artifact application.
	ApplyTimeout time.Duration
	// Workers is the number of concurrent applications.
	Workers int
	// QueueSize bounds the number of claimed artifacts waiting for a worker.
	QueueSize int
}

// DefaultBridgeConfig returns a BridgeConfig with reasonable defaults
func DefaultBridgeConfig() BridgeConfig {
	return BridgeConfig{
		ApplyTimeout: 30 * time.Second,
		Workers:      2,
		QueueSize:    64,
	}
}

// Bridge applies the artifact of every completed task to the workspace
// exactly once. It claims each artifact through the Guard while handling a
// snapshot and performs the write on its worker pool.
type Bridge struct {
	guard    Guard
	writer   FileWriter
	routes   RouteRegistrar
	notifier events.Notifier
	logger   *slog.Logger
	config   BridgeConfig

	queue *JobQueue
	pool  *WorkerPool

	mu     sync.RWMutex
	closed bool
}

// NewBridge creates a Bridge and starts its workers. routes may be nil.
func NewBridge(
	guard Guard,
	writer FileWriter,
	routes RouteRegistrar,
	notifier events.Notifier,
	logger *slog.Logger,
	config BridgeConfig,
) *Bridge {
	if config.ApplyTimeout <= 0 {
		config.ApplyTimeout = DefaultBridgeConfig().ApplyTimeout
	}
	if notifier == nil {
		notifier = events.MultiNotifier{}
	}

	logger = logger.With("component", "implementation_bridge")
	queue := NewJobQueue(config.QueueSize, logger)
	pool := NewWorkerPool(queue, WorkerPoolConfig{WorkerCount: config.Workers}, logger)
	pool.Start()

	return &Bridge{
		guard:    guard,
		writer:   writer,
		routes:   routes,
		notifier: notifier,
		logger:   logger,
		config:   config,
		queue:    queue,
		pool:     pool,
	}
}

// Attach subscribes the bridge to bus.
func (b *Bridge) Attach(bus *events.Bus) (unsubscribe func()) {
	return bus.Subscribe(b.HandleSnapshot)
}

// HandleSnapshot claims every completed, unapplied artifact in tasks and
// queues its application. Claims are made before returning so that two
// deliveries of the same snapshot cannot both schedule an application.
func (b *Bridge) HandleSnapshot(ctx context.Context, tasks []domain.Task) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil
	}

	var errs []error
	for _, t := range tasks {
		if t.Status != domain.TaskStatusCompleted || !t.HasCode() {
			continue
		}
		if err := b.claim(ctx, t); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (b *Bridge) claim(ctx context.Context, t domain.Task) error {
	applied, err := b.guard.HasBeenApplied(ctx, t.ID)
	if err != nil {
		return fmt.Errorf("checking applied marker for task %s: %w", t.ID, err)
	}
	if applied {
		return nil
	}

	claimed, err := b.guard.MarkApplied(ctx, t.ID)
	if err != nil {
		return fmt.Errorf("claiming artifact for task %s: %w", t.ID, err)
	}
	if !claimed {
		b.logger.Debug("artifact already claimed elsewhere", "task_id", t.ID.String())
		return nil
	}

	task := t.Clone()
	if err := b.queue.Enqueue(func(ctx context.Context) { b.apply(ctx, task) }); err != nil {
		b.release(task, err)
		return fmt.Errorf("queueing artifact for task %s: %w", t.ID, err)
	}
	return nil
}

func (b *Bridge) apply(ctx context.Context, t domain.Task) {
	ctx, cancel := context.WithTimeout(ctx, b.config.ApplyTimeout)
	defer cancel()

	log := b.logger.With("task_id", t.ID.String())

	artifact, err := AnalyzeArtifact(t.Code)
	if err != nil {
		b.fail(ctx, t, err)
		return
	}

	if err := b.writer.WriteFile(ctx, artifact.Location, t.Code); err != nil {
		b.fail(ctx, t, fmt.Errorf("%w: %s: %v", ErrWrite, artifact.Location, err))
		return
	}

	log.Info("artifact applied", "symbol", artifact.Symbol, "location", artifact.Location)
	b.notify(ctx, events.NewNotice(events.NoticeArtifactApplied, t.ID,
		fmt.Sprintf("applied %s to %s", artifact.Symbol, artifact.Location), nil))

	if b.routes == nil || !artifact.NeedsRoute() {
		return
	}

	if err := b.routes.RegisterRoute(ctx, artifact.Symbol, artifact.Location); err != nil {
		log.Warn("route registration failed", "symbol", artifact.Symbol, "error", err)
		b.notify(ctx, events.NewNotice(events.NoticeRouteFailed, t.ID,
			fmt.Sprintf("failed to register route for %s", artifact.Symbol), err))
		return
	}

	b.notify(ctx, events.NewNotice(events.NoticeRouteRegistered, t.ID,
		fmt.Sprintf("registered route for %s", artifact.Symbol), nil))
}

// fail releases the claim so a later delivery can retry, and reports it.
func (b *Bridge) fail(ctx context.Context, t domain.Task, err error) {
	b.release(t, err)
	b.notify(ctx, events.NewNotice(events.NoticeArtifactFailed, t.ID, "failed to apply artifact", err))
}

func (b *Bridge) release(t domain.Task, cause error) {
	b.logger.Warn("artifact application failed, releasing claim",
		"task_id", t.ID.String(),
		"error", cause)

	ctx, cancel := context.WithTimeout(context.Background(), b.config.ApplyTimeout)
	defer cancel()
	if err := b.guard.Unmark(ctx, t.ID); err != nil {
		b.logger.Error("failed to release artifact claim",
			"task_id", t.ID.String(),
			"error", err)
	}
}

func (b *Bridge) notify(ctx context.Context, notice events.Notice) {
	if err := b.notifier.Notify(context.WithoutCancel(ctx), notice); err != nil {
		b.logger.Warn("failed to deliver notice", "kind", string(notice.Kind), "error", err)
	}
}

// Wait blocks until every queued application has finished.
func (b *Bridge) Wait() {
	b.queue.Wait()
}

// Close stops accepting snapshots, cancels in-flight applications and waits
// for the workers to exit. Cancelled applications release their claims.
func (b *Bridge) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()

	b.pool.Stop()
}
