package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/autobuild/internal/api"
	"github.com/phrazzld/autobuild/internal/auth"
	"github.com/phrazzld/autobuild/internal/config"
	"github.com/phrazzld/autobuild/internal/events"
	"github.com/phrazzld/autobuild/internal/generation"
	"github.com/phrazzld/autobuild/internal/platform/gemini"
	"github.com/phrazzld/autobuild/internal/platform/kafka"
	"github.com/phrazzld/autobuild/internal/platform/telemetry"
	"github.com/phrazzld/autobuild/internal/platform/workspace"
	"github.com/phrazzld/autobuild/internal/task"
)

// serviceName identifies this process in traces.
const serviceName = "autobuild"

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger

	storage   *storage
	bus       *events.Bus
	taskStore *task.TaskStore
	scheduler *task.Scheduler
	service   *task.Service
	bridge    *task.Bridge
	watcher   *task.ExternalSyncWatcher

	hub     *api.Hub
	metrics *telemetry.Metrics
	tokens  *auth.TokenService
	kafka   *kafka.Notifier

	shutdownTracer func()
}

// newApplication creates a new application instance with all dependencies initialized.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
	}

	var err error
	app.shutdownTracer, err = telemetry.InitTracer(ctx, serviceName, cfg.Server.OTLPEndpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}

	app.storage, err = openStorage(ctx, cfg.Storage, logger)
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	if cfg.Server.AuthSecret != "" {
		app.tokens, err = auth.NewTokenService(cfg.Server.AuthSecret,
			time.Duration(cfg.Server.TokenLifetimeMinutes)*time.Minute)
		if err != nil {
			app.cleanup()
			return nil, fmt.Errorf("failed to initialize token service: %w", err)
		}
		logger.Info("API authentication enabled",
			"token_lifetime_minutes", cfg.Server.TokenLifetimeMinutes)
	}

	generator, err := newGenerator(ctx, cfg.LLM, logger)
	if err != nil {
		app.cleanup()
		return nil, err
	}
	executor, err := newExecutor(cfg.Scheduler, generator)
	if err != nil {
		app.cleanup()
		return nil, err
	}

	writer, routes, err := newWorkspace(cfg.Workspace, logger)
	if err != nil {
		app.cleanup()
		return nil, err
	}

	app.hub = api.NewHub(logger)
	app.metrics = telemetry.NewMetrics()

	notifiers := events.MultiNotifier{
		events.NewLogNotifier(logger),
		app.metrics,
		app.hub,
	}
	if len(cfg.Notify.KafkaBrokers) > 0 {
		app.kafka = kafka.NewNotifier(kafka.NewWriter(cfg.Notify.KafkaBrokers, cfg.Notify.KafkaTopic, logger))
		notifiers = append(notifiers, app.kafka)
		logger.Info("kafka notices enabled", "topic", cfg.Notify.KafkaTopic)
	}

	app.bus = events.NewBus(logger)
	app.bus.Subscribe(app.metrics.Observe)
	app.bus.Subscribe(app.hub.Observe)

	app.bridge = task.NewBridge(app.storage.guard, writer, routes, notifiers, logger, task.BridgeConfig{
		ApplyTimeout: cfg.Scheduler.ApplyTimeout,
		Workers:      cfg.Scheduler.ApplyWorkers,
		QueueSize:    cfg.Scheduler.ApplyQueueSize,
	})
	app.bridge.Attach(app.bus)

	app.taskStore = task.NewTaskStore(ctx, app.storage.slot, app.bus, logger)
	app.scheduler = task.NewScheduler(app.taskStore, executor, notifiers, logger, task.SchedulerConfig{
		TickInterval:     cfg.Scheduler.TickInterval,
		ExecutionTimeout: cfg.Scheduler.ExecutionTimeout,
	})
	app.service = task.NewService(app.taskStore, app.scheduler, app.bus, logger)

	if app.storage.source != nil {
		app.watcher = task.NewExternalSyncWatcher(app.storage.source, app.taskStore, logger)
	}

	logger.Info("application initialized",
		"storage_backend", cfg.Storage.Backend,
		"executor", cfg.Scheduler.Executor)
	return app, nil
}

// newGenerator returns the Gemini generator when an API key is configured
// and the offline template generator otherwise.
func newGenerator(ctx context.Context, cfg config.LLMConfig, logger *slog.Logger) (generation.CodeGenerator, error) {
	if cfg.GeminiAPIKey == "" {
		logger.Info("no Gemini API key configured, using template generator")
		return generation.NewTemplateGenerator(), nil
	}

	g, err := gemini.NewGenerator(ctx, logger.With("component", "llm_generator"), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM generator: %w", err)
	}
	logger.Info("LLM generator initialized", "model", cfg.ModelName)
	return g, nil
}

func newExecutor(cfg config.SchedulerConfig, generator generation.CodeGenerator) (task.Executor, error) {
	switch cfg.Executor {
	case "simulated":
		return task.NewSimulatedExecutor(task.SimulatedConfig{
			MinDelay:    cfg.MinDelay,
			MaxDelay:    cfg.MaxDelay,
			SuccessRate: cfg.SuccessRate,
		}, generator), nil
	case "generating":
		return task.NewGeneratingExecutor(generator), nil
	default:
		return nil, fmt.Errorf("unknown executor %q", cfg.Executor)
	}
}

// newWorkspace returns the HTTP workspace client when a URL is configured.
// Without one, writes and route registrations are only logged.
func newWorkspace(cfg config.WorkspaceConfig, logger *slog.Logger) (task.FileWriter, task.RouteRegistrar, error) {
	if cfg.URL == "" {
		w := workspace.NewLogWriter(logger)
		return w, w, nil
	}

	client, err := workspace.NewClient(workspace.Config{
		BaseURL:    cfg.URL,
		Timeout:    cfg.Timeout,
		MaxRetries: cfg.MaxRetries,
	}, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize workspace client: %w", err)
	}
	return client, client, nil
}

// Run starts background work and the HTTP server, and blocks until ctx is
// cancelled or the server fails.
func (app *application) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	watchDone := make(chan struct{})
	go func() {
		defer close(watchDone)
		if app.watcher == nil {
			return
		}
		if err := app.watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			app.logger.Error("external sync watcher stopped", "error", err)
		}
	}()

	if app.config.Scheduler.AutoStart {
		if err := app.service.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	}

	err := app.startHTTPServer(ctx, app.setupRouter())

	cancel()
	<-watchDone
	if err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.scheduler != nil {
		ctx, cancel := context.WithTimeout(context.Background(), app.config.Scheduler.ExecutionTimeout)
		if err := app.scheduler.Stop(ctx); err != nil {
			app.logger.Error("error stopping scheduler", "error", err)
		}
		cancel()
	}

	if app.bridge != nil {
		app.bridge.Wait()
		app.bridge.Close()
	}

	if app.hub != nil {
		app.hub.Close()
	}

	if app.kafka != nil {
		if err := app.kafka.Close(); err != nil {
			app.logger.Error("error closing kafka writer", "error", err)
		}
	}

	if app.storage != nil {
		if err := app.storage.Close(); err != nil {
			app.logger.Error("error closing storage", "error", err)
		}
	}

	if app.shutdownTracer != nil {
		app.shutdownTracer()
	}

	app.logger.Info("application shutdown completed")
}
