package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/lumenhq/fable-api/internal/config"
	"github.com/lumenhq/fable-api/internal/events"
	"github.com/lumenhq/fable-api/internal/platform/gemini"
	"github.com/lumenhq/fable-api/internal/platform/minio"
	"github.com/lumenhq/fable-api/internal/platform/openai"
	"github.com/lumenhq/fable-api/internal/platform/postgres"
	"github.com/lumenhq/fable-api/internal/retry"
	"github.com/lumenhq/fable-api/internal/service"
	"github.com/lumenhq/fable-api/internal/service/auth"
	"github.com/lumenhq/fable-api/internal/storage"
	"github.com/lumenhq/fable-api/internal/store"
	"github.com/lumenhq/fable-api/internal/task"
	"github.com/lumenhq/fable-api/internal/worker"
)

// application holds all the shared application dependencies to simplify
// management and ensure proper cleanup on shutdown.
type application struct {
	// Configuration
	config *config.Config

	// Core services
	logger *slog.Logger
	db     *sql.DB

	// Stores (using interfaces for proper abstraction)
	userStore  store.UserStore
	storyStore store.StoryStore
	sceneStore store.SceneStore

	// Service interfaces
	jwtService       auth.JWTService
	passwordVerifier auth.PasswordVerifier
	userService      service.UserService
	storyService     service.StoryService

	// Event system
	eventEmitter events.EventEmitter

	// Background task handling
	taskManager *task.Manager
}

// newApplication creates a new application instance with all dependencies
// initialized. It accepts core dependencies like configuration, logger, and
// database connection that must be established before application
// initialization.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	// Initialize JWT service
	var err error
	app.jwtService, err = auth.NewJWTService(cfg.Auth, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}
	logger.Info("JWT authentication service initialized",
		"token_lifetime_minutes", cfg.Auth.TokenLifetimeMinutes)

	// Initialize password verifier
	app.passwordVerifier = auth.NewBcryptVerifier()

	// Initialize stores
	app.userStore = postgres.NewPostgresUserStore(db, cfg.Auth.BCryptCost, logger)
	app.storyStore = postgres.NewPostgresStoryStore(db, logger)
	app.sceneStore = postgres.NewPostgresSceneStore(db, logger)

	// Initialize object storage and the retrying upload gateway
	objectStore, err := minio.New(cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize object storage: %w", err)
	}
	if err := objectStore.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure storage bucket: %w", err)
	}
	logger.Info("object storage initialized", "bucket", cfg.Storage.Bucket)

	uploadPolicy := retry.NewPolicy(
		cfg.Storage.MaxAttempts,
		time.Duration(cfg.Storage.BaseDelaySeconds)*time.Second,
		nil,
	)
	uploads, err := storage.NewUploadGateway(objectStore, uploadPolicy, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize upload gateway: %w", err)
	}

	// Create the generation clients
	narratives, err := gemini.NewNarrativeGenerator(ctx, logger, cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize narrative generator: %w", err)
	}
	images, err := gemini.NewImageGenerator(ctx, logger, cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize image generator: %w", err)
	}
	speech, err := openai.NewSynthesizer(logger, cfg.Speech)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize speech synthesizer: %w", err)
	}
	logger.Info("generation clients initialized",
		"narrative_model", cfg.LLM.NarrativeModel,
		"image_model", cfg.LLM.ImageModel,
		"speech_model", cfg.Speech.Model)

	// Assemble the scene pipeline and its workers
	pipeline, err := worker.NewAssetPipeline(app.sceneStore, images, speech, uploads, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize asset pipeline: %w", err)
	}
	sceneWorker, err := worker.NewSceneWorker(app.storyStore, pipeline, cfg.Generation.BatchSize, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize scene worker: %w", err)
	}
	coverGenerator, err := worker.NewCoverGenerator(app.storyStore, images, uploads, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cover generator: %w", err)
	}

	// Initialize the background task manager
	app.taskManager, err = task.NewManager(logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize task manager: %w", err)
	}

	// Initialize the event emitter and register the cover handler so a
	// story's cover renders in the background once its first scene is out.
	emitter, err := events.NewInMemoryEventEmitter(logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize event emitter: %w", err)
	}
	coverHandler, err := task.NewCoverEventHandler(app.taskManager, coverGenerator, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cover event handler: %w", err)
	}
	emitter.RegisterHandler(coverHandler)
	app.eventEmitter = emitter

	// Initialize user service
	app.userService, err = service.NewUserService(db, app.userStore, app.passwordVerifier, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create user service: %w", err)
	}

	// Initialize story service
	app.storyService, err = service.NewStoryService(
		service.StoryServiceDeps{
			DB:         db,
			Stories:    app.storyStore,
			Scenes:     app.sceneStore,
			Narratives: narratives,
			Pipeline:   pipeline,
			Runner:     sceneWorker,
			Tasks:      app.taskManager,
			Emitter:    app.eventEmitter,
			Logger:     logger,
		},
		service.StoryServiceConfig{
			MaxNarrativeAttempts: cfg.LLM.MaxNarrativeAttempts,
			AvgSecondsPerScene:   cfg.Generation.AvgSecondsPerScene,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create story service: %w", err)
	}

	logger.Info("application initialized successfully")
	return app, nil
}

// Run starts the application server, handling lifecycle and cleanup.
// It returns an error if the server fails to start or encounters problems.
func (app *application) Run(ctx context.Context) error {
	router := app.setupRouter()

	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	// Stop background tasks, giving in-flight scene generation a window
	// to mark its story failed rather than leaving it stuck.
	if app.taskManager != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := app.taskManager.Shutdown(shutdownCtx); err != nil {
			app.logger.Error("task manager shutdown incomplete", "error", err)
		}
	}

	// Close database connection
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database connection", "error", err)
		}
	}

	app.logger.Info("application shutdown completed")
}
