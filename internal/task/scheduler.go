package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/autobuild/internal/domain"
	"github.com/phrazzld/autobuild/internal/events"
	"github.com/phrazzld/autobuild/internal/store"
	"github.com/robfig/cron/v3"
	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Failure reasons recorded by the scheduler.
const (
	ReasonCancelled   = "execution cancelled"
	ReasonInterrupted = "interrupted before completion"
	ReasonUnrecorded  = "failed to record outcome"
)

// SchedulerConfig holds configuration for the scheduler
type SchedulerConfig struct {
	// TickInterval is the time between promotions of pending tasks.
	TickInterval time.Duration

	// ExecutionTimeout bounds a single execution.
	ExecutionTimeout time.Duration

	// RecordRetries and RecordBackoff control how often a failed write of
	// an execution outcome is retried, and the initial delay between tries.
	RecordRetries int
	RecordBackoff time.Duration
}

// DefaultSchedulerConfig returns a SchedulerConfig with reasonable defaults
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		TickInterval:     time.Minute,
		ExecutionTimeout: 2 * time.Minute,
		RecordRetries:    4,
		RecordBackoff:    100 * time.Millisecond,
	}
}

// Scheduler periodically promotes the highest-priority pending task and
// hands it to the Executor. At most one task is in progress at a time.
type Scheduler struct {
	store    *TaskStore
	executor Executor
	notifier events.Notifier
	logger   *slog.Logger
	config   SchedulerConfig
	now      func() time.Time

	mu       sync.Mutex
	running  bool
	cron     *cron.Cron
	inflight map[uuid.UUID]context.CancelCauseFunc
	// unrecorded holds the failure reason of executions whose outcome
	// could not be persisted. Their failure was already announced.
	unrecorded map[uuid.UUID]string
	wg         sync.WaitGroup

	// tickMu serializes ticks so two cannot promote concurrently.
	tickMu sync.Mutex
}

// NewScheduler creates a stopped Scheduler.
func NewScheduler(
	store *TaskStore,
	executor Executor,
	notifier events.Notifier,
	logger *slog.Logger,
	config SchedulerConfig,
) *Scheduler {
	defaults := DefaultSchedulerConfig()
	if config.TickInterval <= 0 {
		config.TickInterval = defaults.TickInterval
	}
	if config.ExecutionTimeout <= 0 {
		config.ExecutionTimeout = defaults.ExecutionTimeout
	}
	if config.RecordRetries <= 0 {
		config.RecordRetries = defaults.RecordRetries
	}
	if config.RecordBackoff <= 0 {
		config.RecordBackoff = defaults.RecordBackoff
	}
	if notifier == nil {
		notifier = events.MultiNotifier{}
	}

	return &Scheduler{
		store:    store,
		executor: executor,
		notifier: notifier,
		logger:   logger.With("component", "scheduler"),
		config:   config,
		now:      time.Now,
		inflight:   make(map[uuid.UUID]context.CancelCauseFunc),
		unrecorded: make(map[uuid.UUID]string),
	}
}

// Start begins periodic ticking. Tasks left in progress by a previous
// process are failed first. Calling Start on a running scheduler does nothing.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	s.recoverOrphans(ctx)

	c := cron.New(
		cron.WithLogger(cronLogger{logger: s.logger}),
		cron.WithChain(cron.Recover(cronLogger{logger: s.logger}), cron.SkipIfStillRunning(cronLogger{logger: s.logger})),
	)
	spec := "@every " + s.config.TickInterval.String()
	if _, err := c.AddFunc(spec, func() {
		if err := s.Tick(context.Background()); err != nil {
			s.logger.Error("scheduled tick failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule tick %q: %w", spec, err)
	}
	c.Start()

	s.cron = c
	s.running = true

	s.logger.Info("scheduler started", "tick_interval", s.config.TickInterval.String())
	s.notify(ctx, events.NewNotice(events.NoticeMonitoringStarted, uuid.Nil, "task monitoring started", nil))
	return nil
}

// Stop halts periodic ticking, cancels every outstanding execution and
// waits for them to record their outcome. Cancelled executions are failed
// with ReasonCancelled. Calling Stop on a stopped scheduler still cancels
// executions started by direct calls to Tick.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	wasRunning := s.running
	s.running = false
	s.mu.Unlock()

	if c != nil {
		// Wait for a tick that is promoting right now.
		<-c.Stop().Done()
	}

	s.mu.Lock()
	for id, cancel := range s.inflight {
		s.logger.Debug("cancelling execution", "task_id", id.String())
		cancel(ErrExecutionCancelled)
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("waiting for executions to stop: %w", ctx.Err())
	}

	if wasRunning {
		s.logger.Info("scheduler stopped")
	}
	return nil
}

// IsRunning reports whether periodic ticking is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Tick promotes the highest-priority pending task, if any, and starts its
// execution in the background. Ties are broken by insertion order. No task
// is promoted while another is still in progress. Outcomes that could not
// be persisted earlier are written as failures first.
func (s *Scheduler) Tick(ctx context.Context) error {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	s.mu.Lock()
	s.recordUnrecorded(ctx)
	s.mu.Unlock()

	if active := s.store.List(domain.TaskStatusInProgress); len(active) > 0 {
		s.logger.Debug("task already in progress, skipping tick", "task_id", active[0].ID.String())
		return nil
	}

	pending := s.store.List(domain.TaskStatusPending)
	if len(pending) == 0 {
		return nil
	}

	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].Priority > pending[j].Priority
	})
	head := pending[0]

	task, err := s.store.Update(ctx, head.ID, func(t *domain.Task) error {
		return t.Start()
	})
	if err != nil {
		return fmt.Errorf("failed to promote task %s: %w", head.ID, err)
	}

	s.logger.Info("task promoted",
		"task_id", task.ID.String(),
		"priority", task.Priority.String(),
		"pending_count", len(pending)-1)
	s.notify(ctx, events.NewNotice(events.NoticeTaskStarted, task.ID,
		fmt.Sprintf("started: %s", task.Description), nil))

	s.launch(task)
	return nil
}

func (s *Scheduler) launch(task domain.Task) {
	base, cancel := context.WithCancelCause(context.Background())
	execCtx, cancelTimeout := context.WithTimeout(base, s.config.ExecutionTimeout)

	s.mu.Lock()
	s.inflight[task.ID] = cancel
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer func() {
			cancelTimeout()
			cancel(nil)
			s.mu.Lock()
			delete(s.inflight, task.ID)
			s.mu.Unlock()
		}()

		result, err := s.execute(execCtx, task)
		s.finish(task, result, err, context.Cause(base), execCtx.Err())
	}()
}

func (s *Scheduler) execute(ctx context.Context, task domain.Task) (result Result, err error) {
	ctx, span := otel.Tracer("scheduler").Start(ctx, "scheduler.execute")
	span.SetAttributes(
		attribute.String("task.id", task.ID.String()),
		attribute.String("task.type", string(task.Type)),
		attribute.String("task.priority", task.Priority.String()),
	)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("executor panicked: %v", r)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "execution failed")
		}
		span.End()
	}()
	return s.executor.Execute(ctx, task)
}

// finish records the outcome of an execution. cause is the cancellation
// cause of the execution's parent context, ctxErr the state of the
// execution context itself.
func (s *Scheduler) finish(task domain.Task, result Result, execErr, cause, ctxErr error) {
	ctx := context.Background()
	log := s.logger.With("task_id", task.ID.String())

	if execErr == nil {
		updated, err := s.record(ctx, task.ID, func(t *domain.Task) error {
			if result.Code != "" {
				if err := t.AttachCode(result.Code); err != nil {
					return err
				}
			}
			return t.Complete(s.now())
		})
		if err != nil {
			s.abandon(ctx, task, err)
			return
		}

		log.Info("task completed", "has_code", updated.HasCode())
		s.notify(ctx, events.NewNotice(events.NoticeTaskCompleted, task.ID,
			fmt.Sprintf("completed: %s", task.Description), nil))
		return
	}

	reason := execErr.Error()
	switch {
	case errors.Is(cause, ErrExecutionCancelled):
		reason = ReasonCancelled
	case errors.Is(ctxErr, context.DeadlineExceeded):
		reason = fmt.Sprintf("execution timed out after %s", s.config.ExecutionTimeout)
	}

	if _, err := s.record(ctx, task.ID, func(t *domain.Task) error {
		return t.Fail(reason)
	}); err != nil {
		s.abandon(ctx, task, err)
		return
	}

	log.Warn("task failed", "reason", reason, "error", execErr)
	s.notify(ctx, events.NewNotice(events.NoticeTaskFailed, task.ID,
		fmt.Sprintf("failed: %s", task.Description), errors.New(reason)))
}

// record applies an outcome to the stored task. Persistence failures are
// retried with exponential backoff; any other error is returned at once.
func (s *Scheduler) record(ctx context.Context, id uuid.UUID, fn func(*domain.Task) error) (domain.Task, error) {
	var updated domain.Task

	backoff := retry.WithMaxRetries(uint64(s.config.RecordRetries), retry.NewExponential(s.config.RecordBackoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		updated, err = s.store.Update(ctx, id, fn)
		if err == nil {
			return nil
		}

		var storeErr *store.StoreError
		if errors.As(err, &storeErr) {
			s.logger.Debug("failed to record outcome, retrying", "task_id", id.String(), "error", err)
			return retry.RetryableError(err)
		}
		return err
	})
	return updated, err
}

// abandon announces an execution whose outcome could not be persisted as
// failed. The task is remembered so a later tick can write the failure and
// free the in-progress slot.
func (s *Scheduler) abandon(ctx context.Context, task domain.Task, err error) {
	reason := fmt.Sprintf("%s: %v", ReasonUnrecorded, err)
	s.logger.Error("failed to record task outcome", "task_id", task.ID.String(), "error", err)

	s.mu.Lock()
	s.unrecorded[task.ID] = reason
	s.mu.Unlock()

	s.notify(ctx, events.NewNotice(events.NoticeTaskFailed, task.ID,
		fmt.Sprintf("failed: %s", task.Description), fmt.Errorf("%s: %w", ReasonUnrecorded, err)))
}

// recordUnrecorded writes the failure of abandoned executions. Tasks that
// are gone or no longer in progress are forgotten. Must be called with s.mu
// held.
func (s *Scheduler) recordUnrecorded(ctx context.Context) {
	for id, reason := range s.unrecorded {
		current, err := s.store.Get(id)
		if err != nil || current.Status != domain.TaskStatusInProgress {
			delete(s.unrecorded, id)
			continue
		}

		if _, err := s.store.Update(ctx, id, func(t *domain.Task) error {
			return t.Fail(reason)
		}); err != nil {
			s.logger.Warn("still unable to record task failure", "task_id", id.String(), "error", err)
			continue
		}

		delete(s.unrecorded, id)
		s.logger.Info("recorded failure of abandoned task", "task_id", id.String())
	}
}

// recoverOrphans fails tasks that are in progress without an execution in
// this process. Must be called with s.mu held.
func (s *Scheduler) recoverOrphans(ctx context.Context) {
	s.recordUnrecorded(ctx)

	for _, t := range s.store.List(domain.TaskStatusInProgress) {
		if _, ok := s.inflight[t.ID]; ok {
			continue
		}
		if _, ok := s.unrecorded[t.ID]; ok {
			continue
		}

		_, err := s.store.Update(ctx, t.ID, func(t *domain.Task) error {
			return t.Fail(ReasonInterrupted)
		})
		if err != nil {
			s.logger.Error("failed to recover interrupted task", "task_id", t.ID.String(), "error", err)
			continue
		}

		s.logger.Warn("failed interrupted task", "task_id", t.ID.String())
		s.notify(ctx, events.NewNotice(events.NoticeTaskFailed, t.ID,
			fmt.Sprintf("failed: %s", t.Description), errors.New(ReasonInterrupted)))
	}
}

func (s *Scheduler) notify(ctx context.Context, notice events.Notice) {
	if err := s.notifier.Notify(ctx, notice); err != nil {
		s.logger.Warn("failed to deliver notice", "kind", string(notice.Kind), "error", err)
	}
}
