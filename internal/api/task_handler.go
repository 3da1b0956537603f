package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/phrazzld/autobuild/internal/api/shared"
	"github.com/phrazzld/autobuild/internal/domain"
	"github.com/phrazzld/autobuild/internal/events"
	"github.com/phrazzld/autobuild/internal/platform/logger"
)

// TaskService is the subset of task.Service the HTTP layer uses.
type TaskService interface {
	AddTask(ctx context.Context, description string, taskType domain.TaskType, priority *domain.Priority) (domain.Task, error)
	AddTaskFromText(ctx context.Context, command string) (domain.Task, error)
	GetTasks(statuses ...domain.TaskStatus) []domain.Task
	AttachCode(ctx context.Context, id uuid.UUID, code string) (domain.Task, error)
	Requeue(ctx context.Context, id uuid.UUID) (domain.Task, error)
	RemoveTask(ctx context.Context, id uuid.UUID) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	IsRunning() bool
	Subscribe(fn events.Subscriber) (unsubscribe func())
}

// TaskHandler handles task-related HTTP requests
type TaskHandler struct {
	service TaskService
	logger  *slog.Logger
}

// NewTaskHandler creates a new TaskHandler
func NewTaskHandler(service TaskService, logger *slog.Logger) *TaskHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for TaskHandler")
	}

	return &TaskHandler{
		service: service,
		logger:  logger.With(slog.String("component", "task_handler")),
	}
}

// CreateTask handles POST /api/tasks.
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req CreateTaskRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	var priority *domain.Priority
	if req.Priority != "" {
		p, err := domain.ParsePriority(req.Priority)
		if err != nil {
			HandleAPIError(w, r, err, "")
			return
		}
		priority = &p
	}

	task, err := h.service.AddTask(r.Context(), req.Description, domain.TaskType(req.Type), priority)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	logger.FromContextOrDefault(r.Context(), h.logger).Info("task created",
		slog.String("task_id", task.ID.String()),
		slog.String("priority", task.Priority.String()))
	shared.RespondWithJSON(w, r, http.StatusCreated, taskToResponse(task))
}

// CreateFromCommand handles POST /api/commands.
func (h *TaskHandler) CreateFromCommand(w http.ResponseWriter, r *http.Request) {
	var req CommandRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	task, err := h.service.AddTaskFromText(r.Context(), req.Text)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusCreated, taskToResponse(task))
}

// ListTasks handles GET /api/tasks.
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	statuses, err := getStatusFilter(r)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, tasksToResponse(h.service.GetTasks(statuses...)))
}

// AttachCode handles PUT /api/tasks/{id}/code.
func (h *TaskHandler) AttachCode(w http.ResponseWriter, r *http.Request) {
	id, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "Invalid task ID")
		return
	}

	var req AttachCodeRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	task, err := h.service.AttachCode(r.Context(), id, req.Code)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, taskToResponse(task))
}

// RequeueTask handles POST /api/tasks/{id}/requeue.
func (h *TaskHandler) RequeueTask(w http.ResponseWriter, r *http.Request) {
	id, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "Invalid task ID")
		return
	}

	task, err := h.service.Requeue(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusCreated, taskToResponse(task))
}

// DeleteTask handles DELETE /api/tasks/{id}.
func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	id, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "Invalid task ID")
		return
	}

	if err := h.service.RemoveTask(r.Context(), id); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	logger.FromContextOrDefault(r.Context(), h.logger).Info("task removed",
		slog.String("task_id", id.String()))
	w.WriteHeader(http.StatusNoContent)
}

// decodeAndValidate decodes the request body into v and validates it,
// writing a 400 response on failure.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := shared.DecodeJSON(w, r, v); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return false
	}
	if err := shared.ValidateRequest(v); err != nil {
		HandleAPIError(w, r, err, "")
		return false
	}
	return true
}
