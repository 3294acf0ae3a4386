package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"

	"github.com/guidescope/guidescope/scrape"
)

// statsService is what the handlers need from the scrape layer. Narrowed to
// an interface so handler tests run without a browser.
type statsService interface {
	Stats(ctx context.Context, raw string, mode scrape.Mode) (*scrape.Result, error)
}

// binaryLocator reports browser-binary discovery for the diagnostics route.
type binaryLocator interface {
	BinaryPath() (string, error)
}

type server struct {
	svc      statsService
	locator  binaryLocator
	cacheDir string
	logger   *slog.Logger
}

func newServer(svc statsService, locator binaryLocator, cacheDir string, logger *slog.Logger) *server {
	return &server{svc: svc, locator: locator, cacheDir: cacheDir, logger: logger}
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleStats is the single externally-facing operation: a free-form
// identifier plus an optional mode flag, answered with the extraction
// record or a structured error carrying a machine-readable class.
func (s *server) handleStats(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("id")
	mode := scrape.ParseMode(r.URL.Query().Get("mode"))

	res, err := s.svc.Stats(r.Context(), raw, mode)
	if err != nil {
		class := scrape.Classify(err)
		s.logger.Warn("guidescope: stats failed", "id", raw, "mode", string(mode), "class", class, "error", err)
		writeJSON(w, statusFor(class), map[string]string{
			"error": err.Error(),
			"class": class,
		})
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// handleDiag is read-only introspection: binary discovery and cache
// directory presence. It never touches extraction state.
func (s *server) handleDiag(w http.ResponseWriter, _ *http.Request) {
	diag := map[string]any{
		"cacheDir": s.cacheDir,
	}
	if _, err := os.Stat(s.cacheDir); err == nil {
		diag["cacheDirPresent"] = true
	} else {
		diag["cacheDirPresent"] = false
	}
	if path, err := s.locator.BinaryPath(); err == nil {
		diag["browserBin"] = path
		diag["browserFound"] = true
	} else {
		diag["browserFound"] = false
	}
	writeJSON(w, http.StatusOK, diag)
}

// statusFor maps failure classes to HTTP statuses. Upstream trouble is a
// 502: the service is fine, the target page is not.
func statusFor(class string) int {
	switch class {
	case "invalid_identifier":
		return http.StatusBadRequest
	case "binary_not_found", "internal":
		return http.StatusInternalServerError
	case "execution_timeout":
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
