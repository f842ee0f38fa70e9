package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/gorilla/websocket"
	"github.com/phrazzld/taskflow-api/internal/config"
	"github.com/phrazzld/taskflow-api/internal/events"
	"github.com/phrazzld/taskflow-api/internal/platform/objectstore"
	"github.com/phrazzld/taskflow-api/internal/platform/postgres"
	"github.com/phrazzld/taskflow-api/internal/realtime"
	"github.com/phrazzld/taskflow-api/internal/service/access"
	"github.com/phrazzld/taskflow-api/internal/service/auth"
	"github.com/phrazzld/taskflow-api/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	userStore    store.UserStore
	taskStore    store.TaskStore
	commentStore store.CommentStore

	jwtService   auth.JWTService
	accessPolicy access.Checker

	metricsRegistry *prometheus.Registry
	metrics         *realtime.Metrics
	registry        *realtime.Registry
	bus             events.Bus
	redisBus        *events.RedisBus
	signer          realtime.AttachmentSigner
}

// newApplication creates a new application instance with all dependencies initialized.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	app := &application{
		config:       cfg,
		logger:       logger,
		db:           db,
		userStore:    postgres.NewPostgresUserStore(db, logger),
		taskStore:    postgres.NewPostgresTaskStore(db, logger),
		commentStore: postgres.NewPostgresCommentStore(db, logger),
		accessPolicy: access.NewPolicy(),
	}

	var err error
	app.jwtService, err = auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}
	logger.Info("JWT authentication service initialized",
		"token_lifetime_minutes", cfg.Auth.TokenLifetimeMinutes)

	presigner, err := objectstore.NewMinioPresigner(cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize attachment presigner: %w", err)
	}
	if presigner != nil {
		app.signer = presigner
		logger.Info("Attachment URLs enabled", "bucket", cfg.Storage.Bucket)
	}

	if err := app.setupRealtime(ctx); err != nil {
		return nil, err
	}

	logger.Info("Application initialized successfully")
	return app, nil
}

// setupRealtime builds the metrics, the connection registry and the event
// bus feeding it. Redis fan-out is used when configured.
func (app *application) setupRealtime(ctx context.Context) error {
	app.metricsRegistry = prometheus.NewRegistry()
	app.metricsRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	app.metrics = realtime.NewMetrics(app.metricsRegistry)
	app.registry = realtime.NewRegistry(app.logger, app.metrics)

	if app.config.Redis.URL == "" {
		app.bus = events.NewInMemoryEventEmitter(app.logger)
		app.bus.RegisterHandler(app.registry)
		return nil
	}

	redisBus, err := events.NewRedisBus(app.config.Redis.URL, app.config.Redis.ChannelPrefix, app.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize redis bus: %w", err)
	}
	redisBus.RegisterHandler(app.registry)
	if err := redisBus.Start(ctx); err != nil {
		_ = redisBus.Close()
		return fmt.Errorf("failed to start redis bus: %w", err)
	}
	app.redisBus = redisBus
	app.bus = redisBus
	return nil
}

// Run starts the application server, handling lifecycle and cleanup.
func (app *application) Run(ctx context.Context) error {
	router, err := app.setupRouter()
	if err != nil {
		app.cleanup()
		return err
	}

	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.registry != nil {
		app.registry.CloseAll(websocket.CloseGoingAway, "server shutting down")
	}

	if app.redisBus != nil {
		if err := app.redisBus.Close(); err != nil {
			app.logger.Error("Error closing redis bus", "error", err)
		}
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("Error closing database connection", "error", err)
		}
	}

	app.logger.Info("Application shutdown completed")
}
