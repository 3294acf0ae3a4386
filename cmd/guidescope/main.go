// Command guidescope serves contributor-profile statistics extraction over
// a single HTTP route, backed by a shared headless browser.
//
// Usage:
//
//	guidescope                      # serve on :8086
//	PORT=9000 BROWSER_BIN=/usr/bin/chromium guidescope
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/guidescope/guidescope/extract"
	"github.com/guidescope/guidescope/history"
	"github.com/guidescope/guidescope/scrape"
)

func main() {
	logLevel := env("LOG_LEVEL", "info")

	var level slog.Level
	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger); err != nil {
		logger.Error("guidescope: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	port := env("PORT", "8086")
	cacheDir := env("CACHE_DIR", defaultCacheDir())
	ttl := envDuration("CACHE_TTL", 5*time.Minute, logger)
	idle := envDuration("BROWSER_IDLE_SHUTDOWN", 2*time.Minute, logger)
	limit := envInt("SCRAPE_CONCURRENCY", 2, logger)

	mapping := extract.DefaultMapping()
	if path := os.Getenv("MAPPING_FILE"); path != "" {
		m, err := extract.LoadMapping(path)
		if err != nil {
			return err
		}
		mapping = m
		logger.Info("guidescope: mapping loaded", "path", path, "labels", len(m))
	}

	var hist *history.Store
	if path := os.Getenv("HISTORY_DB"); path != "" {
		h, err := history.Open(path)
		if err != nil {
			return err
		}
		defer h.Close()
		hist = h
		logger.Info("guidescope: history enabled", "path", path)
	}

	driver := scrape.NewDriver(scrape.DriverConfig{
		Bin:          os.Getenv("BROWSER_BIN"),
		IdleShutdown: idle,
		Mapping:      mapping,
		Logger:       logger,
	})
	defer driver.Close()

	svc, err := scrape.New(scrape.Config{
		Limit:    limit,
		TTL:      ttl,
		CacheDir: cacheDir,
		History:  hist,
		Logger:   logger,
	}, driver)
	if err != nil {
		return err
	}

	srv := newServer(svc, driver, cacheDir, logger)

	r := chi.NewRouter()
	r.Get("/healthz", srv.handleHealth)
	r.Get("/api/stats", srv.handleStats)
	r.Get("/api/diag", srv.handleDiag)

	httpSrv := &http.Server{
		Addr:              ":" + port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("guidescope: listening", "port", port, "concurrency", limit, "ttl", ttl.String())
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("guidescope: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

func defaultCacheDir() string {
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, "guidescope")
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration, logger *slog.Logger) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		logger.Warn("guidescope: bad duration, using default", "key", key, "value", v, "default", def.String())
		return def
	}
	return d
}

func envInt(key string, def int, logger *slog.Logger) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var n int
	for _, r := range v {
		if r < '0' || r > '9' {
			logger.Warn("guidescope: bad integer, using default", "key", key, "value", v, "default", def)
			return def
		}
		n = n*10 + int(r-'0')
	}
	if n == 0 {
		return def
	}
	return n
}
