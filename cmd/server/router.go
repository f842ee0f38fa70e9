package main

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/taskflow-api/internal/api"
	apiMiddleware "github.com/phrazzld/taskflow-api/internal/api/middleware"
	"github.com/phrazzld/taskflow-api/internal/realtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// setupRouter creates and configures the application router with all routes and middleware.
func (app *application) setupRouter() (http.Handler, error) {
	comments, err := realtime.NewHandler(realtime.Dependencies{
		Tokens:   app.jwtService,
		Users:    app.userStore,
		Tasks:    app.taskStore,
		Comments: app.commentStore,
		Access:   app.accessPolicy,
		Registry: app.registry,
		Emitter:  app.bus,
		Signer:   app.signer,
		Metrics:  app.metrics,
		Logger:   app.logger,
	}, app.config.Realtime, app.config.Server.AllowedOrigins)
	if err != nil {
		return nil, fmt.Errorf("failed to create comment channel handler: %w", err)
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware(app.logger))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/tasks/{task_id}/comments", comments.ServeHTTP)
	})

	r.Method(http.MethodGet, "/health", api.NewHealthHandler(app.db, app.registry))
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(app.metricsRegistry, promhttp.HandlerOpts{}))

	return r, nil
}
