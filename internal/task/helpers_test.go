package task

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/phrazzld/autobuild/internal/domain"
	"github.com/phrazzld/autobuild/internal/events"
	"github.com/phrazzld/autobuild/internal/store"
	"github.com/stretchr/testify/require"
)

// snapshotRecorder is a bus subscriber that keeps every delivery.
type snapshotRecorder struct {
	mu        sync.Mutex
	snapshots [][]domain.Task
}

func (r *snapshotRecorder) record(_ context.Context, tasks []domain.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = append(r.snapshots, tasks)
	return nil
}

func (r *snapshotRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snapshots)
}

func (r *snapshotRecorder) last() []domain.Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.snapshots) == 0 {
		return nil
	}
	return r.snapshots[len(r.snapshots)-1]
}

type fixture struct {
	slot     *store.MemorySlot
	bus      *events.Bus
	store    *TaskStore
	notifier *events.RecordingNotifier
	recorder *snapshotRecorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithSlot(t, store.NewMemorySlot())
}

func newFixtureWithSlot(t *testing.T, slot *store.MemorySlot) *fixture {
	t.Helper()

	logger := setupTestLogger()
	bus := events.NewBus(logger)
	recorder := &snapshotRecorder{}
	bus.Subscribe(recorder.record)

	return &fixture{
		slot:     slot,
		bus:      bus,
		store:    NewTaskStore(context.Background(), slot, bus, logger),
		notifier: &events.RecordingNotifier{},
		recorder: recorder,
	}
}

func (f *fixture) add(t *testing.T, description string, priority domain.Priority) domain.Task {
	t.Helper()
	task, err := f.store.Add(context.Background(), domain.Draft{Description: description, Priority: priority})
	require.NoError(t, err)
	return task
}

func waitForStatus(t *testing.T, s *TaskStore, task domain.Task, status domain.TaskStatus) domain.Task {
	t.Helper()

	var got domain.Task
	require.Eventually(t, func() bool {
		var err error
		got, err = s.Get(task.ID)
		return err == nil && got.Status == status
	}, 2*time.Second, 5*time.Millisecond, "task %s never reached %s", task.ID, status)
	return got
}
