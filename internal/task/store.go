package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/autobuild/internal/domain"
	"github.com/phrazzld/autobuild/internal/events"
	"github.com/phrazzld/autobuild/internal/store"
)

// DefaultSaveAttempts bounds how often a mutation is re-applied after
// version conflicts before the conflict is returned to the caller.
const DefaultSaveAttempts = 5

// StoreOption customizes a TaskStore.
type StoreOption func(*TaskStore)

// WithClock sets the time source used for CreatedAt and CompletedAt.
func WithClock(now func() time.Time) StoreOption {
	return func(s *TaskStore) { s.now = now }
}

// WithIDGenerator sets the task id source.
func WithIDGenerator(newID func() (uuid.UUID, error)) StoreOption {
	return func(s *TaskStore) { s.newID = newID }
}

// WithSaveAttempts sets the maximum number of save attempts per mutation.
func WithSaveAttempts(n int) StoreOption {
	return func(s *TaskStore) {
		if n > 0 {
			s.saveAttempts = n
		}
	}
}

// TaskStore is the single source of truth for the task collection. Every
// mutation is persisted to the slot before it becomes visible, and every
// visible change is published on the bus.
type TaskStore struct {
	mu      sync.RWMutex
	tasks   []domain.Task
	index   map[uuid.UUID]int
	version int64
	// generation counts in-memory state changes. publish skips generations
	// that are already delivered, so an older snapshot never follows a newer one.
	generation int64

	// pubMu serializes deliveries to the bus.
	pubMu         sync.Mutex
	lastPublished int64

	slot         store.Slot
	bus          *events.Bus
	logger       *slog.Logger
	now          func() time.Time
	newID        func() (uuid.UUID, error)
	saveAttempts int
}

// NewTaskStore creates a TaskStore and loads the slot. Loading never fails:
// missing or unreadable data starts an empty collection and logs a warning.
func NewTaskStore(ctx context.Context, slot store.Slot, bus *events.Bus, logger *slog.Logger, opts ...StoreOption) *TaskStore {
	s := &TaskStore{
		index:        make(map[uuid.UUID]int),
		slot:         slot,
		bus:          bus,
		logger:       logger.With("component", "task_store"),
		now:          time.Now,
		newID:        uuid.NewV7,
		saveAttempts: DefaultSaveAttempts,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, version, err := slot.Load(ctx)
	if err != nil {
		s.logger.Warn("failed to load task slot, starting empty", "error", err)
		return s
	}
	s.version = version

	tasks, err := s.decode(data)
	if err != nil {
		s.logger.Warn("task slot holds unreadable data, starting empty",
			"error", err,
			"slot_version", version)
		return s
	}
	s.setLocked(tasks, version)

	s.logger.Info("loaded tasks", "task_count", len(tasks), "slot_version", version)
	return s
}

// Add creates a pending task from draft.
func (s *TaskStore) Add(ctx context.Context, draft domain.Draft) (domain.Task, error) {
	id, err := s.newID()
	if err != nil {
		return domain.Task{}, fmt.Errorf("failed to generate task id: %w", err)
	}

	task, err := domain.NewTask(id, draft, s.now())
	if err != nil {
		return domain.Task{}, err
	}

	err = s.mutate(ctx, "add", func(tasks []domain.Task) ([]domain.Task, error) {
		return append(tasks, task.Clone()), nil
	})
	if err != nil {
		return domain.Task{}, err
	}

	s.logger.Debug("task added",
		"task_id", task.ID.String(),
		"priority", task.Priority.String(),
		"type", string(task.Type))
	return task.Clone(), nil
}

// List returns copies of the tasks in insertion order. When statuses are
// given only tasks in one of them are returned.
func (s *TaskStore) List(statuses ...domain.TaskStatus) []domain.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if matchesStatus(t.Status, statuses) {
			out = append(out, t.Clone())
		}
	}
	return out
}

// Get returns a copy of the task with the given id.
func (s *TaskStore) Get(id uuid.UUID) (domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[id]
	if !ok {
		return domain.Task{}, fmt.Errorf("%w: %s", store.ErrTaskNotFound, id)
	}
	return s.tasks[i].Clone(), nil
}

// Update applies fn to the task with the given id and persists the result.
// fn may run more than once when another writer changed the slot
// concurrently; each run sees the latest stored version of the task.
func (s *TaskStore) Update(ctx context.Context, id uuid.UUID, fn func(*domain.Task) error) (domain.Task, error) {
	var updated domain.Task

	err := s.mutate(ctx, "update", func(tasks []domain.Task) ([]domain.Task, error) {
		i := indexOf(tasks, id)
		if i < 0 {
			return nil, fmt.Errorf("%w: %s", store.ErrTaskNotFound, id)
		}
		if err := fn(&tasks[i]); err != nil {
			return nil, err
		}
		if tasks[i].ID != id {
			return nil, fmt.Errorf("%w: task ID cannot change", domain.ErrValidation)
		}
		if err := tasks[i].Validate(); err != nil {
			return nil, err
		}
		updated = tasks[i].Clone()
		return tasks, nil
	})
	if err != nil {
		return domain.Task{}, err
	}

	return updated, nil
}

// Remove deletes the task with the given id.
func (s *TaskStore) Remove(ctx context.Context, id uuid.UUID) error {
	return s.mutate(ctx, "remove", func(tasks []domain.Task) ([]domain.Task, error) {
		i := indexOf(tasks, id)
		if i < 0 {
			return nil, fmt.Errorf("%w: %s", store.ErrTaskNotFound, id)
		}
		return append(tasks[:i], tasks[i+1:]...), nil
	})
}

// Reload re-reads the slot. When another writer changed it, the new
// collection replaces the in-memory one and is published on the bus.
func (s *TaskStore) Reload(ctx context.Context) error {
	s.mu.Lock()

	data, version, err := s.slot.Load(ctx)
	if err != nil {
		s.mu.Unlock()
		return store.NewStoreError("slot", "load", "failed to reload tasks", err)
	}
	if version == s.version {
		s.mu.Unlock()
		return nil
	}

	tasks, err := s.decode(data)
	if err != nil {
		s.mu.Unlock()
		return store.NewStoreError("slot", "load", "failed to decode tasks", err)
	}
	s.setLocked(tasks, version)
	s.mu.Unlock()

	s.logger.Info("reloaded tasks after external change",
		"task_count", len(tasks),
		"slot_version", version)
	s.publish(ctx)
	return nil
}

// mutate applies fn to a working copy of the collection and saves the
// result. On a version conflict it reloads the slot and applies fn again.
func (s *TaskStore) mutate(ctx context.Context, op string, fn func([]domain.Task) ([]domain.Task, error)) error {
	s.mu.Lock()

	for attempt := 1; ; attempt++ {
		next, err := fn(domain.CloneTasks(s.tasks))
		if err != nil {
			s.mu.Unlock()
			return err
		}

		data, err := encode(next)
		if err != nil {
			s.mu.Unlock()
			return store.NewStoreError("task", op, "failed to encode tasks", err)
		}

		version, err := s.slot.Save(ctx, data, s.version)
		if err == nil {
			s.setLocked(next, version)
			s.mu.Unlock()
			s.publish(ctx)
			return nil
		}

		if !errors.Is(err, store.ErrVersionConflict) || attempt >= s.saveAttempts {
			s.mu.Unlock()
			s.logger.Error("failed to persist tasks",
				"operation", op,
				"attempt", attempt,
				"error", err)
			return store.NewStoreError("task", op, "failed to persist tasks", err)
		}

		s.logger.Debug("slot changed by another writer, retrying",
			"operation", op,
			"attempt", attempt)

		if err := s.reloadLocked(ctx); err != nil {
			s.mu.Unlock()
			return store.NewStoreError("task", op, "failed to reload tasks after conflict", err)
		}
	}
}

// reloadLocked must be called with s.mu held.
func (s *TaskStore) reloadLocked(ctx context.Context) error {
	data, version, err := s.slot.Load(ctx)
	if err != nil {
		return err
	}
	tasks, err := s.decode(data)
	if err != nil {
		// The next save overwrites the unreadable data.
		s.logger.Warn("discarding unreadable slot data", "error", err, "slot_version", version)
		tasks = nil
	}
	s.setLocked(tasks, version)
	return nil
}

// setLocked must be called with s.mu held.
func (s *TaskStore) setLocked(tasks []domain.Task, version int64) {
	s.tasks = tasks
	s.version = version
	s.generation++

	s.index = make(map[uuid.UUID]int, len(tasks))
	for i, t := range tasks {
		s.index[t.ID] = i
	}
}

// publish delivers the current collection. pubMu is held across delivery
// so snapshots reach subscribers in generation order; subscribers must not
// mutate the store synchronously.
func (s *TaskStore) publish(ctx context.Context) {
	if s.bus == nil {
		return
	}

	s.pubMu.Lock()
	defer s.pubMu.Unlock()

	s.mu.RLock()
	generation := s.generation
	snapshot := domain.CloneTasks(s.tasks)
	s.mu.RUnlock()

	if generation <= s.lastPublished {
		return
	}
	s.lastPublished = generation

	if snapshot == nil {
		snapshot = []domain.Task{}
	}
	s.bus.Publish(ctx, snapshot)
}

// decode parses slot bytes. Entries that fail validation or repeat an id
// are dropped with a warning.
func (s *TaskStore) decode(data []byte) ([]domain.Task, error) {
	if len(data) == 0 {
		return nil, nil
	}

	var raw []domain.Task
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrCorruptData, err)
	}

	tasks := make([]domain.Task, 0, len(raw))
	seen := make(map[uuid.UUID]bool, len(raw))
	for _, t := range raw {
		if err := t.Validate(); err != nil {
			s.logger.Warn("skipping invalid stored task", "task_id", t.ID.String(), "error", err)
			continue
		}
		if seen[t.ID] {
			s.logger.Warn("skipping duplicate stored task", "task_id", t.ID.String())
			continue
		}
		seen[t.ID] = true
		tasks = append(tasks, t)
	}
	return tasks, nil
}

func encode(tasks []domain.Task) ([]byte, error) {
	if tasks == nil {
		tasks = []domain.Task{}
	}
	return json.Marshal(tasks)
}

func indexOf(tasks []domain.Task, id uuid.UUID) int {
	for i := range tasks {
		if tasks[i].ID == id {
			return i
		}
	}
	return -1
}

func matchesStatus(status domain.TaskStatus, statuses []domain.TaskStatus) bool {
	if len(statuses) == 0 {
		return true
	}
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}
