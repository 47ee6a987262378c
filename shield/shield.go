// Package shield provides the HTTP middleware stack of the mixptrack admin
// API: security headers, request body cap, and a per-request trace ID with
// a matching structured logger.
//
// Usage:
//
//	r := chi.NewRouter()
//	for _, mw := range shield.APIStack(logger) {
//	    r.Use(mw)
//	}
package shield

import (
	"log/slog"
	"net/http"
)

// MaxAPIBody is the body cap applied by APIStack.
const MaxAPIBody = 64 << 10

// APIStack returns the standard middleware for a JSON admin API, in order:
// TraceID, SecurityHeaders, MaxBody.
func APIStack(logger *slog.Logger) []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		TraceID(logger),
		SecurityHeaders(APIHeaders()),
		MaxBody(MaxAPIBody),
	}
}
