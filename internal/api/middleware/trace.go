package middleware

import (
	"log/slog"
	"net/http"

	"github.com/lumenhq/fable-api/internal/api/shared"
	"github.com/lumenhq/fable-api/internal/platform/logger"
)

// TraceMiddleware assigns each request a trace ID and stores a logger
// annotated with it in the request context, so every log line written
// downstream carries the same trace_id. Apply it first in the chain.
func TraceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := shared.SetTraceID(r.Context())
		traceID := shared.GetTraceID(ctx)

		log := slog.With(slog.String("trace_id", traceID))
		ctx = logger.WithLogger(ctx, log)

		log.Debug("request started",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("remote_addr", r.RemoteAddr))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
