// Package logger provides structured logging functionality for the application.
package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/lumenhq/fable-api/internal/config"
)

// contextKey is a private type for context keys defined in this package.
type contextKey int

// loggerKey is the context key under which a request-scoped logger travels.
const loggerKey contextKey = iota

// Setup initializes and configures the application's logging system based on
// the provided configuration. It creates a structured JSON logger with the
// appropriate log level and sets it as the default logger for the application.
func Setup(cfg config.ServerConfig) (*slog.Logger, error) {
	// Parse the log level from configuration (case-insensitive)
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		// If the log level is invalid, fall back to info and say so on stderr
		level = slog.LevelInfo

		tmpLogger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		tmpLogger.Warn("invalid log level configured, using default level",
			"configured_level", cfg.LogLevel,
			"default_level", "info")
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	// JSON to stdout; log shippers pick it up from there
	handler := slog.NewJSONHandler(os.Stdout, opts)
	logger := slog.New(handler)

	// Set as default so slog.Info etc. route through the same handler
	slog.SetDefault(logger)

	return logger, nil
}

// WithLogger returns a new context carrying the provided logger. Handlers
// and middleware use this to attach request-scoped fields (trace ID, user ID)
// that lower layers pick up via FromContext.
func WithLogger(ctx context.Context, log *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, log)
}

// FromContext retrieves the logger stored in the context, if any.
// The boolean reports whether a logger was present.
func FromContext(ctx context.Context) (*slog.Logger, bool) {
	log, ok := ctx.Value(loggerKey).(*slog.Logger)
	return log, ok
}

// FromContextOrDefault retrieves the logger stored in the context, falling
// back to the provided default when the context carries none. Passing a nil
// default falls back to slog.Default, so callers never receive nil.
func FromContextOrDefault(ctx context.Context, def *slog.Logger) *slog.Logger {
	if log, ok := FromContext(ctx); ok {
		return log
	}
	if def != nil {
		return def
	}
	return slog.Default()
}
