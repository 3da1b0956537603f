package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	apiMiddleware "github.com/phrazzld/autobuild/internal/api/middleware"
)

// RouteConfig holds the dependencies of the /api routes.
type RouteConfig struct {
	Service TaskService
	Hub     *Hub
	// Tokens enables bearer authentication when non-nil.
	Tokens apiMiddleware.TokenValidator
	Logger *slog.Logger
}

// RegisterRoutes mounts the /api routes on r.
func RegisterRoutes(r chi.Router, cfg RouteConfig) {
	taskHandler := NewTaskHandler(cfg.Service, cfg.Logger)
	schedulerHandler := NewSchedulerHandler(cfg.Service, cfg.Logger)

	r.Route("/api", func(r chi.Router) {
		if cfg.Tokens != nil {
			r.Use(apiMiddleware.NewAuthMiddleware(cfg.Tokens).Authenticate)
		}

		r.Post("/tasks", taskHandler.CreateTask)
		r.Get("/tasks", taskHandler.ListTasks)
		r.Put("/tasks/{id}/code", taskHandler.AttachCode)
		r.Post("/tasks/{id}/requeue", taskHandler.RequeueTask)
		r.Delete("/tasks/{id}", taskHandler.DeleteTask)
		r.Post("/commands", taskHandler.CreateFromCommand)

		r.Get("/scheduler", schedulerHandler.Status)
		r.Post("/scheduler/start", schedulerHandler.Start)
		r.Post("/scheduler/stop", schedulerHandler.Stop)

		if cfg.Hub != nil {
			r.Method(http.MethodGet, "/stream", cfg.Hub)
		}
	})
}
