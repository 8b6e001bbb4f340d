// Package obshttp exposes the process's health, readiness, and metrics
// endpoints over HTTP, grounded on the teacher's chi router/middleware
// shape but trimmed to the operational surface this core actually needs —
// no authenticated API, since the command surface is the external contract
// (see internal/commandapi).
package obshttp

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/farmrunner/engine/internal/manager"
)

// Probe answers liveness/readiness questions about the manager without
// exposing any mutating surface over HTTP.
type Probe interface {
	ListAccounts() []*manager.Account
}

// NewRouter builds the health/readiness/metrics router.
func NewRouter(probe Probe, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", handleHealthz)
	r.Get("/readyz", handleReadyz(probe))
	r.Handle("/metrics", promhttp.Handler())

	return r
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReadyz reports ready once the account registry has loaded — the
// process answers commands even with zero accounts, so readiness never
// depends on any account actually being started.
func handleReadyz(probe Probe) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		count := len(probe.ListAccounts())
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready", "accounts": count})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// requestLogger mirrors the teacher's RequestLogger middleware: method,
// path, status, and latency per request.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
			)
		})
	}
}
