// Command mixptrack binds data-mixp-* analytics attributes on web pages.
//
// Usage:
//
//	mixptrack -config mixptrack.yaml             # pages and sinks from YAML config
//	mixptrack -url https://example.com           # single page, stdout sink
//	mixptrack -file page.html                    # local HTML file, stdout sink
//	mixptrack -config c.yaml -listen :8090       # plus the admin API
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/mixptrack/idgen"
	"github.com/hazyhaar/mixptrack/mixptrack"
	"github.com/hazyhaar/mixptrack/shield"
)

func main() {
	configPath := flag.String("config", "", "path to mixptrack.yaml config file")
	singleURL := flag.String("url", "", "bind a single URL (stdout sink)")
	filePath := flag.String("file", "", "bind a local HTML file (stdout sink)")
	mode := flag.String("mode", "auto", "page mode for -url: static, browser, auto")
	listen := flag.String("listen", "", "admin API address, overrides http.listen")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var err error
	switch {
	case *configPath != "":
		err = runConfig(ctx, logger, *configPath, *listen)
	case *singleURL != "":
		err = runSingle(ctx, logger, *singleURL, *mode, *listen)
	case *filePath != "":
		err = runFile(ctx, logger, *filePath, *listen)
	default:
		fmt.Fprintln(os.Stderr, "usage: mixptrack -config <file> | -url <url> | -file <html>")
		os.Exit(2)
	}
	if err != nil {
		logger.Error("mixptrack: fatal", "error", err)
		os.Exit(1)
	}
}

func runConfig(ctx context.Context, logger *slog.Logger, path, listen string) error {
	cfg, err := mixptrack.LoadConfigFile(path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	sinks, journal, inPage, err := mixptrack.BuildSinks(cfg, logger)
	if err != nil {
		return fmt.Errorf("sinks: %w", err)
	}
	if journal != nil {
		defer journal.Close()
	}
	if len(sinks) == 0 && !inPage {
		sinks = append(sinks, mixptrack.NewStdoutSink(nil))
	}

	t := mixptrack.New(cfg, logger, sinks...)
	if journal != nil {
		t.SetJournal(journal)
	}
	if listen == "" {
		listen = cfg.HTTP.Listen
	}
	return serve(ctx, logger, t, listen, nil)
}

func runSingle(ctx context.Context, logger *slog.Logger, url, mode, listen string) error {
	cfg := mixptrack.DefaultConfig()
	cfg.Pages = []mixptrack.PageConfig{{
		ID:   idgen.New(),
		URL:  url,
		Mode: mode,
	}}
	if err := cfg.Validate(); err != nil {
		return err
	}
	t := mixptrack.New(cfg, logger, mixptrack.NewStdoutSink(nil))
	return serve(ctx, logger, t, listen, nil)
}

func runFile(ctx context.Context, logger *slog.Logger, path, listen string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	t := mixptrack.New(mixptrack.DefaultConfig(), logger, mixptrack.NewStdoutSink(nil))
	return serve(ctx, logger, t, listen, func() error {
		return t.AttachHTML(ctx, path, raw, "")
	})
}

// serve starts t, runs attach if given, and starts the admin API when
// listen is set. It blocks until ctx is cancelled.
func serve(ctx context.Context, logger *slog.Logger, t *mixptrack.Tracker, listen string, attach func() error) error {
	defer t.Stop()
	if err := t.Start(ctx); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	if attach != nil {
		if err := attach(); err != nil {
			return err
		}
	}

	if listen == "" {
		<-ctx.Done()
		return nil
	}

	r := chi.NewRouter()
	r.Use(shield.APIStack(logger)...)
	t.RegisterHTTP(r)
	srv := &http.Server{
		Addr:              listen,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("mixptrack: admin API listening", "addr", listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http: %w", err)
		}
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
