package events

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// NoticeKind identifies what a Notice reports.
type NoticeKind string

// Notice kinds
const (
	NoticeMonitoringStarted NoticeKind = "monitoring_started"
	NoticeTaskStarted       NoticeKind = "task_started"
	NoticeTaskCompleted     NoticeKind = "task_completed"
	NoticeTaskFailed        NoticeKind = "task_failed"
	NoticeArtifactApplied   NoticeKind = "artifact_applied"
	NoticeArtifactFailed    NoticeKind = "artifact_failed"
	NoticeRouteRegistered   NoticeKind = "route_registered"
	NoticeRouteFailed       NoticeKind = "route_failed"
)

// IsFailure reports whether the notice describes something going wrong.
func (k NoticeKind) IsFailure() bool {
	switch k {
	case NoticeTaskFailed, NoticeArtifactFailed, NoticeRouteFailed:
		return true
	default:
		return false
	}
}

// Notice is a user-visible message about task execution or artifact
// application.
type Notice struct {
	Kind    NoticeKind `json:"kind"`
	TaskID  uuid.UUID  `json:"taskId,omitempty"`
	Message string     `json:"message"`
	Error   string     `json:"error,omitempty"`
	At      time.Time  `json:"at"`
}

// NewNotice creates a notice stamped with the current time.
func NewNotice(kind NoticeKind, taskID uuid.UUID, message string, err error) Notice {
	n := Notice{
		Kind:    kind,
		TaskID:  taskID,
		Message: message,
		At:      time.Now().UTC(),
	}
	if err != nil {
		n.Error = err.Error()
	}
	return n
}

// Notifier receives notices. Implementations must not block for long;
// notices are sent from scheduler and bridge goroutines.
type Notifier interface {
	Notify(ctx context.Context, notice Notice) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, notice Notice) error

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, notice Notice) error {
	return f(ctx, notice)
}

// LogNotifier writes notices to a structured logger.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With("component", "notifier")}
}

// Notify logs the notice at warn level for failures and info otherwise.
func (n *LogNotifier) Notify(ctx context.Context, notice Notice) error {
	level := slog.LevelInfo
	if notice.Kind.IsFailure() {
		level = slog.LevelWarn
	}

	attrs := []any{"kind", string(notice.Kind)}
	if notice.TaskID != uuid.Nil {
		attrs = append(attrs, "task_id", notice.TaskID.String())
	}
	if notice.Error != "" {
		attrs = append(attrs, "error", notice.Error)
	}

	n.logger.Log(ctx, level, notice.Message, attrs...)
	return nil
}

// MultiNotifier sends every notice to each of its notifiers, continuing
// past failures and joining their errors.
type MultiNotifier []Notifier

// Notify implements Notifier.
func (m MultiNotifier) Notify(ctx context.Context, notice Notice) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, notice); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
