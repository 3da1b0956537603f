package task

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/phrazzld/autobuild/internal/domain"
	"github.com/phrazzld/autobuild/internal/events"
)

// Service is the public operation surface of the task engine.
type Service struct {
	store     *TaskStore
	scheduler *Scheduler
	bus       *events.Bus
	logger    *slog.Logger
}

// NewService creates a Service over its collaborators.
func NewService(store *TaskStore, scheduler *Scheduler, bus *events.Bus, logger *slog.Logger) *Service {
	return &Service{
		store:     store,
		scheduler: scheduler,
		bus:       bus,
		logger:    logger.With("component", "task_service"),
	}
}

// AddTask creates a pending task. An empty taskType means feature; a nil
// priority is derived from the description.
func (s *Service) AddTask(ctx context.Context, description string, taskType domain.TaskType, priority *domain.Priority) (domain.Task, error) {
	if taskType != "" {
		parsed, err := domain.ParseTaskType(string(taskType))
		if err != nil {
			return domain.Task{}, err
		}
		taskType = parsed
	}

	p := domain.ClassifyPriority(description)
	if priority != nil {
		p = *priority
	}

	return s.store.Add(ctx, domain.Draft{
		Description: description,
		Type:        taskType,
		Priority:    p,
	})
}

// AddTaskFromText creates a pending task from a free-text command, deriving
// both type and priority from its wording.
func (s *Service) AddTaskFromText(ctx context.Context, command string) (domain.Task, error) {
	text := strings.TrimSpace(command)
	if text == "" {
		return domain.Task{}, domain.ErrEmptyDescription
	}

	task, err := s.store.Add(ctx, domain.Draft{
		Description: text,
		Type:        domain.ClassifyType(text),
		Priority:    domain.ClassifyPriority(text),
	})
	if err != nil {
		return domain.Task{}, err
	}

	s.logger.Info("task added from command",
		"task_id", task.ID.String(),
		"type", string(task.Type),
		"priority", task.Priority.String())
	return task, nil
}

// GetTasks returns the tasks in insertion order, optionally filtered by status.
func (s *Service) GetTasks(statuses ...domain.TaskStatus) []domain.Task {
	return s.store.List(statuses...)
}

// GetTask returns a single task.
func (s *Service) GetTask(id uuid.UUID) (domain.Task, error) {
	return s.store.Get(id)
}

// Start starts the scheduler.
func (s *Service) Start(ctx context.Context) error {
	return s.scheduler.Start(ctx)
}

// Stop stops the scheduler and cancels outstanding executions.
func (s *Service) Stop(ctx context.Context) error {
	return s.scheduler.Stop(ctx)
}

// IsRunning reports whether the scheduler is running.
func (s *Service) IsRunning() bool {
	return s.scheduler.IsRunning()
}

// Subscribe registers fn for collection snapshots.
func (s *Service) Subscribe(fn events.Subscriber) (unsubscribe func()) {
	return s.bus.Subscribe(fn)
}

// AttachCode sets or replaces the artifact of a task.
func (s *Service) AttachCode(ctx context.Context, id uuid.UUID, code string) (domain.Task, error) {
	return s.store.Update(ctx, id, func(t *domain.Task) error {
		return t.AttachCode(code)
	})
}

// Requeue creates a new pending task copying a failed task's description,
// type and priority. The failed task is left untouched.
func (s *Service) Requeue(ctx context.Context, id uuid.UUID) (domain.Task, error) {
	failed, err := s.store.Get(id)
	if err != nil {
		return domain.Task{}, err
	}
	if failed.Status != domain.TaskStatusFailed {
		return domain.Task{}, fmt.Errorf("%w: task %s is %s", ErrNotRequeueable, id, failed.Status)
	}

	origin := failed.ID
	task, err := s.store.Add(ctx, domain.Draft{
		Description:  failed.Description,
		Type:         failed.Type,
		Priority:     failed.Priority,
		RequeuedFrom: &origin,
	})
	if err != nil {
		return domain.Task{}, err
	}

	s.logger.Info("task requeued", "task_id", task.ID.String(), "requeued_from", origin.String())
	return task, nil
}

// RemoveTask deletes a task that is not in progress.
func (s *Service) RemoveTask(ctx context.Context, id uuid.UUID) error {
	t, err := s.store.Get(id)
	if err != nil {
		return err
	}
	if t.Status == domain.TaskStatusInProgress {
		return fmt.Errorf("%w: cannot remove a task in progress", domain.ErrInvalidTransition)
	}
	return s.store.Remove(ctx, id)
}
