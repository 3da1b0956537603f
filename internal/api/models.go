package api

import (
	"time"

	"github.com/phrazzld/autobuild/internal/domain"
)

// CreateTaskRequest is the body of POST /api/tasks.
type CreateTaskRequest struct {
	Description string `json:"description" validate:"required,max=4000"`
	Type        string `json:"type,omitempty"`
	Priority    string `json:"priority,omitempty" validate:"omitempty,oneof=low medium high"`
}

// CommandRequest is the body of POST /api/commands.
type CommandRequest struct {
	Text string `json:"text" validate:"required,max=4000"`
}

// AttachCodeRequest is the body of PUT /api/tasks/{id}/code.
type AttachCodeRequest struct {
	Code string `json:"code" validate:"required"`
}

// TaskResponse represents a task in API responses.
type TaskResponse struct {
	ID           string     `json:"id"`
	Description  string     `json:"description"`
	Status       string     `json:"status"`
	Priority     string     `json:"priority"`
	Type         string     `json:"type"`
	CreatedAt    time.Time  `json:"createdAt"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
	Code         string     `json:"code,omitempty"`
	Error        string     `json:"error,omitempty"`
	RequeuedFrom string     `json:"requeuedFrom,omitempty"`
}

// SchedulerResponse reports the scheduler state.
type SchedulerResponse struct {
	Running bool `json:"running"`
}

func taskToResponse(t domain.Task) TaskResponse {
	resp := TaskResponse{
		ID:          t.ID.String(),
		Description: t.Description,
		Status:      string(t.Status),
		Priority:    t.Priority.String(),
		Type:        string(t.Type),
		CreatedAt:   t.CreatedAt,
		CompletedAt: t.CompletedAt,
		Code:        t.Code,
		Error:       t.Error,
	}
	if t.RequeuedFrom != nil {
		resp.RequeuedFrom = t.RequeuedFrom.String()
	}
	return resp
}

func tasksToResponse(tasks []domain.Task) []TaskResponse {
	out := make([]TaskResponse, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, taskToResponse(t))
	}
	return out
}
