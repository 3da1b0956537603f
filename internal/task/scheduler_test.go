package task

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/phrazzld/autobuild/internal/domain"
	"github.com/phrazzld/autobuild/internal/events"
	"github.com/phrazzld/autobuild/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blockingExecutor hands each execution to the test through calls and
// finishes it with whatever the test sends on the matching reply channel.
type blockingExecutor struct {
	calls chan execution
}

type execution struct {
	task  domain.Task
	ctx   context.Context
	reply chan outcome
}

type outcome struct {
	result Result
	err    error
}

func newBlockingExecutor() *blockingExecutor {
	return &blockingExecutor{calls: make(chan execution, 10)}
}

func (e *blockingExecutor) Execute(ctx context.Context, task domain.Task) (Result, error) {
	reply := make(chan outcome, 1)
	e.calls <- execution{task: task, ctx: ctx, reply: reply}
	select {
	case o := <-reply:
		return o.result, o.err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

func (e *blockingExecutor) next(t *testing.T) execution {
	t.Helper()
	select {
	case ex := <-e.calls:
		return ex
	case <-time.After(2 * time.Second):
		t.Fatal("executor was not called")
		return execution{}
	}
}

func newTestScheduler(f *fixture, executor Executor, cfg SchedulerConfig) *Scheduler {
	return NewScheduler(f.store, executor, f.notifier, setupTestLogger(), cfg)
}

func TestScheduler_TickWithoutPendingIsNoop(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	s := newTestScheduler(f, newBlockingExecutor(), SchedulerConfig{})

	require.NoError(t, s.Tick(context.Background()))
	assert.Empty(t, f.notifier.Notices())
	assert.Zero(t, f.recorder.count())
}

func TestScheduler_PromotesByPriorityThenInsertionOrder(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	executor := newBlockingExecutor()
	s := newTestScheduler(f, executor, SchedulerConfig{})
	defer func() { _ = s.Stop(context.Background()) }()

	low := f.add(t, "low", domain.PriorityLow)
	high := f.add(t, "high", domain.PriorityHigh)
	medium := f.add(t, "medium", domain.PriorityMedium)
	high2 := f.add(t, "high again", domain.PriorityHigh)

	order := []domain.Task{high, high2, medium, low}
	for _, want := range order {
		require.NoError(t, s.Tick(context.Background()))

		got, err := f.store.Get(want.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.TaskStatusInProgress, got.Status, want.Description)

		ex := executor.next(t)
		assert.Equal(t, want.ID, ex.task.ID)

		// no second promotion while one is running
		require.NoError(t, s.Tick(context.Background()))
		assert.Len(t, f.store.List(domain.TaskStatusInProgress), 1)

		ex.reply <- outcome{}
		waitForStatus(t, f.store, want, domain.TaskStatusCompleted)
	}

	assert.Empty(t, f.store.List(domain.TaskStatusPending))
}

func TestScheduler_CompletionAttachesCode(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	executor := newBlockingExecutor()
	s := newTestScheduler(f, executor, SchedulerConfig{})
	defer func() { _ = s.Stop(context.Background()) }()

	task := f.add(t, "settings page", domain.PriorityLow)
	require.NoError(t, s.Tick(context.Background()))
	executor.next(t).reply <- outcome{result: Result{Code: "export default function SettingsPage() {}"}}

	done := waitForStatus(t, f.store, task, domain.TaskStatusCompleted)
	require.NotNil(t, done.CompletedAt)
	assert.Equal(t, "export default function SettingsPage() {}", done.Code)

	require.Eventually(t, func() bool {
		return f.notifier.Count(events.NoticeTaskCompleted) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []events.NoticeKind{events.NoticeTaskStarted, events.NoticeTaskCompleted}, f.notifier.Kinds())
}

func TestScheduler_FailureRecordsReason(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	executor := newBlockingExecutor()
	s := newTestScheduler(f, executor, SchedulerConfig{})
	defer func() { _ = s.Stop(context.Background()) }()

	task := f.add(t, "doomed", domain.PriorityLow)
	require.NoError(t, s.Tick(context.Background()))
	executor.next(t).reply <- outcome{err: ErrSimulatedFailure}

	failed := waitForStatus(t, f.store, task, domain.TaskStatusFailed)
	assert.Equal(t, ErrSimulatedFailure.Error(), failed.Error)
	assert.Nil(t, failed.CompletedAt)

	require.Eventually(t, func() bool {
		return f.notifier.Count(events.NoticeTaskFailed) == 1
	}, time.Second, 5*time.Millisecond)

	// failed tasks are not retried
	require.NoError(t, s.Tick(context.Background()))
	got, err := f.store.Get(task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusFailed, got.Status)
}

// flakySlot fails the next failures saves, then behaves like its MemorySlot.
type flakySlot struct {
	*store.MemorySlot
	mu       sync.Mutex
	failures int
}

func (s *flakySlot) failNext(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = n
}

func (s *flakySlot) Save(ctx context.Context, data []byte, expectedVersion int64) (int64, error) {
	s.mu.Lock()
	if s.failures > 0 {
		s.failures--
		s.mu.Unlock()
		return 0, errors.New("slot temporarily unavailable")
	}
	s.mu.Unlock()
	return s.MemorySlot.Save(ctx, data, expectedVersion)
}

func TestScheduler_RetriesOutcomeWrites(t *testing.T) {
	t.Parallel()

	slot := &flakySlot{MemorySlot: store.NewMemorySlot()}
	logger := setupTestLogger()
	taskStore := NewTaskStore(context.Background(), slot, events.NewBus(logger), logger)
	notifier := &events.RecordingNotifier{}
	executor := newBlockingExecutor()
	s := NewScheduler(taskStore, executor, notifier, logger, SchedulerConfig{
		RecordRetries: 3,
		RecordBackoff: time.Millisecond,
	})
	defer func() { _ = s.Stop(context.Background()) }()

	task, err := taskStore.Add(context.Background(), domain.Draft{Description: "survives a hiccup"})
	require.NoError(t, err)
	require.NoError(t, s.Tick(context.Background()))

	slot.failNext(2)
	executor.next(t).reply <- outcome{}

	waitForStatus(t, taskStore, task, domain.TaskStatusCompleted)
	require.Eventually(t, func() bool {
		return notifier.Count(events.NoticeTaskCompleted) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Zero(t, notifier.Count(events.NoticeTaskFailed))
}

func TestScheduler_UnrecordedOutcomeDoesNotBlockQueue(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	executor := newBlockingExecutor()
	s := newTestScheduler(f, executor, SchedulerConfig{
		RecordRetries: 2,
		RecordBackoff: time.Millisecond,
	})
	defer func() { _ = s.Stop(context.Background()) }()

	a := f.add(t, "a", domain.PriorityHigh)
	b := f.add(t, "b", domain.PriorityLow)

	require.NoError(t, s.Tick(context.Background()))
	ex := executor.next(t)
	require.Equal(t, a.ID, ex.task.ID)

	f.slot.SetSaveError(errors.New("disk full"))
	ex.reply <- outcome{}

	require.Eventually(t, func() bool {
		return f.notifier.Count(events.NoticeTaskFailed) == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []events.NoticeKind{events.NoticeTaskStarted, events.NoticeTaskFailed}, f.notifier.Kinds())
	assert.Contains(t, f.notifier.Notices()[1].Error, "disk full")

	// nothing can be written while the slot is broken
	require.NoError(t, s.Tick(context.Background()))
	stuck, err := f.store.Get(a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusInProgress, stuck.Status)

	f.slot.SetSaveError(nil)
	require.NoError(t, s.Tick(context.Background()))

	failed, err := f.store.Get(a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusFailed, failed.Status)
	assert.Contains(t, failed.Error, ReasonUnrecorded)

	next := executor.next(t)
	assert.Equal(t, b.ID, next.task.ID)
	next.reply <- outcome{}
	waitForStatus(t, f.store, b, domain.TaskStatusCompleted)

	assert.Equal(t, 1, f.notifier.Count(events.NoticeTaskFailed))
}

func TestScheduler_ExecutorPanicFailsTask(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	s := newTestScheduler(f, ExecutorFunc(func(context.Context, domain.Task) (Result, error) {
		panic("executor bug")
	}), SchedulerConfig{})
	defer func() { _ = s.Stop(context.Background()) }()

	task := f.add(t, "explodes", domain.PriorityLow)
	require.NoError(t, s.Tick(context.Background()))

	failed := waitForStatus(t, f.store, task, domain.TaskStatusFailed)
	assert.Contains(t, failed.Error, "executor panicked")
}

func TestScheduler_ExecutionTimeout(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	executor := newBlockingExecutor()
	s := newTestScheduler(f, executor, SchedulerConfig{ExecutionTimeout: 20 * time.Millisecond})
	defer func() { _ = s.Stop(context.Background()) }()

	task := f.add(t, "slow", domain.PriorityLow)
	require.NoError(t, s.Tick(context.Background()))
	executor.next(t)

	failed := waitForStatus(t, f.store, task, domain.TaskStatusFailed)
	assert.Equal(t, "execution timed out after 20ms", failed.Error)
}

func TestScheduler_StartStop(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	s := newTestScheduler(f, newBlockingExecutor(), SchedulerConfig{TickInterval: time.Hour})

	assert.False(t, s.IsRunning())
	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())
	assert.Equal(t, 1, f.notifier.Count(events.NoticeMonitoringStarted))

	require.NoError(t, s.Stop(context.Background()))
	require.NoError(t, s.Stop(context.Background()))
	assert.False(t, s.IsRunning())

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, 2, f.notifier.Count(events.NoticeMonitoringStarted))
	require.NoError(t, s.Stop(context.Background()))
}

func TestScheduler_StopCancelsExecutions(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	executor := newBlockingExecutor()
	s := newTestScheduler(f, executor, SchedulerConfig{TickInterval: time.Hour})
	require.NoError(t, s.Start(context.Background()))

	task := f.add(t, "interrupted", domain.PriorityLow)
	require.NoError(t, s.Tick(context.Background()))
	ex := executor.next(t)

	require.NoError(t, s.Stop(context.Background()))

	assert.ErrorIs(t, context.Cause(ex.ctx), ErrExecutionCancelled)
	got, err := f.store.Get(task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusFailed, got.Status)
	assert.Equal(t, ReasonCancelled, got.Error)
	assert.Equal(t, 1, f.notifier.Count(events.NoticeTaskFailed))
}

func TestScheduler_StopHonoursContext(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	release := make(chan struct{})
	s := newTestScheduler(f, ExecutorFunc(func(context.Context, domain.Task) (Result, error) {
		<-release
		return Result{}, nil
	}), SchedulerConfig{})

	f.add(t, "stubborn", domain.PriorityLow)
	require.NoError(t, s.Tick(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := s.Stop(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	close(release)
	require.NoError(t, s.Stop(context.Background()))
}

func TestScheduler_StartFailsInterruptedTasks(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	orphan := f.add(t, "left running by a crash", domain.PriorityLow)
	_, err := f.store.Update(context.Background(), orphan.ID, func(t *domain.Task) error { return t.Start() })
	require.NoError(t, err)
	pending := f.add(t, "still waiting", domain.PriorityLow)

	s := newTestScheduler(f, newBlockingExecutor(), SchedulerConfig{TickInterval: time.Hour})
	require.NoError(t, s.Start(context.Background()))
	defer func() { _ = s.Stop(context.Background()) }()

	got, err := f.store.Get(orphan.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusFailed, got.Status)
	assert.Equal(t, ReasonInterrupted, got.Error)

	still, err := f.store.Get(pending.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusPending, still.Status)

	assert.Equal(t, []events.NoticeKind{events.NoticeTaskFailed, events.NoticeMonitoringStarted}, f.notifier.Kinds())
}

func TestScheduler_CronDrivesTicks(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for a real cron tick")
	}
	t.Parallel()

	f := newFixture(t)
	executor := newBlockingExecutor()
	s := newTestScheduler(f, executor, SchedulerConfig{TickInterval: time.Second})

	task := f.add(t, "picked up by cron", domain.PriorityLow)
	require.NoError(t, s.Start(context.Background()))
	defer func() { _ = s.Stop(context.Background()) }()

	ex := executor.next(t)
	assert.Equal(t, task.ID, ex.task.ID)
	ex.reply <- outcome{}
	waitForStatus(t, f.store, task, domain.TaskStatusCompleted)
}
