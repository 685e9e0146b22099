package api

import (
	"context"
	"log/slog"
	"net/http"
)

// Pinger checks reachability of one dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// healthHandler serves liveness and readiness probes.
type healthHandler struct {
	store     Pinger
	generator Pinger
	logger    *slog.Logger
}

// live handles GET /health. Returns 200 if the process is alive.
func (h *healthHandler) live(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, h.logger)
}

// ready handles GET /ready. Returns 200 only when both the store and the
// generation service are reachable.
func (h *healthHandler) ready(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}
	status := http.StatusOK

	if h.store != nil {
		checks["store"] = "ok"
		if err := h.store.Ping(r.Context()); err != nil {
			h.logger.Warn("readiness: store unreachable", "error", err)
			checks["store"] = err.Error()
			status = http.StatusServiceUnavailable
		}
	}
	if h.generator != nil {
		checks["generator"] = "ok"
		if err := h.generator.Ping(r.Context()); err != nil {
			h.logger.Warn("readiness: generator unreachable", "error", err)
			checks["generator"] = err.Error()
			status = http.StatusServiceUnavailable
		}
	}

	writeJSON(w, status, checks, h.logger)
}
