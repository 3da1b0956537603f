package api

import (
	"log/slog"
	"net/http"

	"github.com/phrazzld/autobuild/internal/api/shared"
	"github.com/phrazzld/autobuild/internal/platform/logger"
)

// SchedulerHandler exposes scheduler control.
type SchedulerHandler struct {
	service TaskService
	logger  *slog.Logger
}

// NewSchedulerHandler creates a new SchedulerHandler
func NewSchedulerHandler(service TaskService, logger *slog.Logger) *SchedulerHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for SchedulerHandler")
	}

	return &SchedulerHandler{
		service: service,
		logger:  logger.With(slog.String("component", "scheduler_handler")),
	}
}

// Status handles GET /api/scheduler.
func (h *SchedulerHandler) Status(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, SchedulerResponse{Running: h.service.IsRunning()})
}

// Start handles POST /api/scheduler/start.
func (h *SchedulerHandler) Start(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Start(r.Context()); err != nil {
		HandleAPIError(w, r, err, "Failed to start scheduler")
		return
	}

	logger.FromContextOrDefault(r.Context(), h.logger).Info("scheduler started via API")
	shared.RespondWithJSON(w, r, http.StatusOK, SchedulerResponse{Running: h.service.IsRunning()})
}

// Stop handles POST /api/scheduler/stop. It returns once outstanding
// executions have been cancelled.
func (h *SchedulerHandler) Stop(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Stop(r.Context()); err != nil {
		HandleAPIError(w, r, err, "Failed to stop scheduler")
		return
	}

	logger.FromContextOrDefault(r.Context(), h.logger).Info("scheduler stopped via API")
	shared.RespondWithJSON(w, r, http.StatusOK, SchedulerResponse{Running: h.service.IsRunning()})
}
