package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/autobuild/internal/api"
	apiMiddleware "github.com/phrazzld/autobuild/internal/api/middleware"
	"github.com/phrazzld/autobuild/internal/platform/logger"
)

// setupRouter creates and configures the application router with all routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(logger.WithLogger(r.Context(), app.logger)))
		})
	})
	r.Use(apiMiddleware.TraceMiddleware)

	cfg := api.RouteConfig{
		Service: app.service,
		Hub:     app.hub,
		Logger:  app.logger,
	}
	if app.tokens != nil {
		cfg.Tokens = app.tokens
	}
	api.RegisterRoutes(r, cfg)

	r.Method(http.MethodGet, "/metrics", app.metrics.Handler())

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("Failed to write health check response", "error", err)
		}
	})

	return r
}
