// Package main implements the entry point for the Fable API server,
// which turns a short parental prompt into an illustrated, narrated
// children's story generated scene by scene in the background.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"

	"github.com/lumenhq/fable-api/internal/config"
	"github.com/lumenhq/fable-api/internal/platform/logger"
)

func main() {
	migrateCmd := flag.String("migrate", "",
		"run a migration command (up, down, status, version) and exit")
	flag.Parse()

	if err := run(*migrateCmd); err != nil {
		log.Fatalf("fable-api: %v", err)
	}
}

// run loads configuration, sets up logging and either executes a
// migration command or starts the server. Split from main so every exit
// path flows through a single error return.
func run(migrateCmd string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}

	slog.Info("server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel)

	if migrateCmd != "" {
		return runMigrations(cfg, migrateCmd)
	}

	ctx := context.Background()

	db, err := setupAppDatabase(cfg, appLogger)
	if err != nil {
		return fmt.Errorf("failed to set up database: %w", err)
	}

	app, err := newApplication(ctx, cfg, appLogger, db)
	if err != nil {
		// The application owns the connection once construction succeeds;
		// until then closing it is still on us.
		if closeErr := db.Close(); closeErr != nil {
			appLogger.Error("failed to close database connection", "error", closeErr)
		}
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	return app.Run(ctx)
}
