package shield

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func chain(h http.Handler) http.Handler {
	stack := APIStack(slog.New(slog.NewTextHandler(io.Discard, nil)))
	for i := len(stack) - 1; i >= 0; i-- {
		h = stack[i](h)
	}
	return h
}

func TestAPIStackHeadersAndTrace(t *testing.T) {
	var seen string
	h := chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetTraceID(r.Context())
		if GetLogger(r.Context()) == slog.Default() {
			t.Error("request logger not installed")
		}
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/pages", nil))

	if got := rec.Header().Get("X-Trace-ID"); got == "" || got != seen {
		t.Fatalf("trace id header %q, context %q", got, seen)
	}
	for k, want := range map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Cache-Control":          "no-store",
	} {
		if got := rec.Header().Get(k); got != want {
			t.Errorf("%s = %q, want %q", k, got, want)
		}
	}
}

func TestMaxBody(t *testing.T) {
	h := MaxBody(8)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := io.ReadAll(r.Body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("0123456789")))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("oversized body: status %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("short")))
	if rec.Code != http.StatusOK {
		t.Fatalf("small body: status %d", rec.Code)
	}
}

func TestGetLoggerDefault(t *testing.T) {
	if GetLogger(context.Background()) != slog.Default() {
		t.Fatal("expected slog.Default outside middleware")
	}
	if GetTraceID(context.Background()) != "" {
		t.Fatal("expected empty trace id")
	}
}
