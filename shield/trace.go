package shield

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hazyhaar/mixptrack/idgen"
)

type contextKey string

const (
	traceIDKey contextKey = "shield_trace_id"
	loggerKey  contextKey = "shield_logger"
)

var newTraceID = idgen.NanoID(12)

// TraceID returns middleware that tags each request with a trace ID, set
// in the X-Trace-ID response header and attached to a per-request logger
// derived from logger (slog.Default when nil).
func TraceID(logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := newTraceID()
			w.Header().Set("X-Trace-ID", id)

			l := logger.With("trace_id", id, "method", r.Method, "path", r.URL.Path)
			l.Debug("request", "remote_addr", r.RemoteAddr)

			ctx := context.WithValue(r.Context(), traceIDKey, id)
			ctx = context.WithValue(ctx, loggerKey, l)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetTraceID returns the request's trace ID, "" outside TraceID.
func GetTraceID(ctx context.Context) string {
	v, _ := ctx.Value(traceIDKey).(string)
	return v
}

// GetLogger returns the per-request logger, or slog.Default().
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}
