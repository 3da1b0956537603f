package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the lifecycle state of a task
type TaskStatus string

// Possible task status values
const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// IsTerminal returns true if no further transitions are possible.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// ParseTaskStatus converts text into a TaskStatus.
func ParseTaskStatus(s string) (TaskStatus, error) {
	status := TaskStatus(strings.ToLower(strings.TrimSpace(s)))
	switch status {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted, TaskStatusFailed:
		return status, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
}

// Priority is the scheduling weight of a pending task. Higher values are
// promoted first.
type Priority int

// Priority levels
const (
	PriorityLow    Priority = 1
	PriorityMedium Priority = 2
	PriorityHigh   Priority = 3
)

// String returns the textual form used in storage and the API.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityMedium:
		return "medium"
	case PriorityHigh:
		return "high"
	default:
		return fmt.Sprintf("priority(%d)", int(p))
	}
}

// ParsePriority converts text into a Priority.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return PriorityLow, nil
	case "medium":
		return PriorityMedium, nil
	case "high":
		return PriorityHigh, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidPriority, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Priority) MarshalText() ([]byte, error) {
	if p < PriorityLow || p > PriorityHigh {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPriority, int(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Priority) UnmarshalText(text []byte) error {
	parsed, err := ParsePriority(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// TaskType categorizes the kind of change a task requests
type TaskType string

// Possible task types
const (
	TaskTypeFeature     TaskType = "feature"
	TaskTypeBugFix      TaskType = "bugfix"
	TaskTypeEnhancement TaskType = "enhancement"
	TaskTypeRefactor    TaskType = "refactor"
)

// ParseTaskType converts text into a TaskType. "bug-fix" and "bug_fix" are
// accepted as spellings of bugfix.
func ParseTaskType(s string) (TaskType, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	normalized = strings.NewReplacer("-", "", "_", "", " ", "").Replace(normalized)
	switch TaskType(normalized) {
	case TaskTypeFeature, TaskTypeBugFix, TaskTypeEnhancement, TaskTypeRefactor:
		return TaskType(normalized), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidType, s)
	}
}

// Task represents a requested change with a defined lifecycle and an
// optional generated artifact.
type Task struct {
	ID           uuid.UUID  `json:"id"`
	Description  string     `json:"description"`
	Status       TaskStatus `json:"status"`
	Priority     Priority   `json:"priority"`
	Type         TaskType   `json:"type"`
	CreatedAt    time.Time  `json:"createdAt"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
	Code         string     `json:"code,omitempty"`
	Error        string     `json:"error,omitempty"`
	RequeuedFrom *uuid.UUID `json:"requeuedFrom,omitempty"`
}

// Draft holds the caller-supplied fields of a task that does not exist yet.
type Draft struct {
	Description  string
	Type         TaskType
	Priority     Priority
	RequeuedFrom *uuid.UUID
}

// NewTask creates a pending task from a draft. The id and creation time are
// supplied by the caller so that stores can control both.
func NewTask(id uuid.UUID, draft Draft, now time.Time) (*Task, error) {
	task := &Task{
		ID:           id,
		Description:  strings.TrimSpace(draft.Description),
		Status:       TaskStatusPending,
		Priority:     draft.Priority,
		Type:         draft.Type,
		CreatedAt:    now.UTC(),
		RequeuedFrom: draft.RequeuedFrom,
	}

	if task.Priority == 0 {
		task.Priority = PriorityLow
	}
	if task.Type == "" {
		task.Type = TaskTypeFeature
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}

	return task, nil
}

// Validate checks if the Task has valid data.
func (t *Task) Validate() error {
	if t.ID == uuid.Nil {
		return fmt.Errorf("%w: task ID cannot be empty", ErrValidation)
	}

	if strings.TrimSpace(t.Description) == "" {
		return ErrEmptyDescription
	}

	if _, err := ParseTaskStatus(string(t.Status)); err != nil {
		return err
	}

	if t.Priority < PriorityLow || t.Priority > PriorityHigh {
		return fmt.Errorf("%w: %d", ErrInvalidPriority, int(t.Priority))
	}

	if _, err := ParseTaskType(string(t.Type)); err != nil {
		return err
	}

	if (t.Status == TaskStatusCompleted) != (t.CompletedAt != nil) {
		return fmt.Errorf("%w: completedAt must be set exactly when completed", ErrValidation)
	}

	return nil
}

// CanTransition reports whether a task may move from one status to another.
// The only allowed edges are pending -> in_progress -> completed|failed.
func CanTransition(from, to TaskStatus) bool {
	switch from {
	case TaskStatusPending:
		return to == TaskStatusInProgress
	case TaskStatusInProgress:
		return to == TaskStatusCompleted || to == TaskStatusFailed
	default:
		return false
	}
}

// Start moves a pending task into progress.
func (t *Task) Start() error {
	return t.transition(TaskStatusInProgress)
}

// Complete marks an in-progress task as completed at the given time.
func (t *Task) Complete(at time.Time) error {
	if err := t.transition(TaskStatusCompleted); err != nil {
		return err
	}
	completedAt := at.UTC()
	t.CompletedAt = &completedAt
	return nil
}

// Fail marks an in-progress task as failed with the given reason.
func (t *Task) Fail(reason string) error {
	if err := t.transition(TaskStatusFailed); err != nil {
		return err
	}
	t.Error = reason
	return nil
}

// AttachCode sets or overwrites the task's generated artifact.
func (t *Task) AttachCode(code string) error {
	if strings.TrimSpace(code) == "" {
		return ErrEmptyCode
	}
	t.Code = code
	return nil
}

// HasCode reports whether an artifact is attached.
func (t *Task) HasCode() bool {
	return t.Code != ""
}

func (t *Task) transition(to TaskStatus) error {
	if !CanTransition(t.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, to)
	}
	t.Status = to
	return nil
}

// Clone returns a deep copy of the task.
func (t Task) Clone() Task {
	clone := t
	if t.CompletedAt != nil {
		completedAt := *t.CompletedAt
		clone.CompletedAt = &completedAt
	}
	if t.RequeuedFrom != nil {
		requeuedFrom := *t.RequeuedFrom
		clone.RequeuedFrom = &requeuedFrom
	}
	return clone
}

// CloneTasks returns a deep copy of a task slice.
func CloneTasks(tasks []Task) []Task {
	if tasks == nil {
		return nil
	}
	out := make([]Task, len(tasks))
	for i := range tasks {
		out[i] = tasks[i].Clone()
	}
	return out
}
