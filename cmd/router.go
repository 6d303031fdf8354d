package main

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angeloszaimis/admin-gateway/internal/backend"
	"github.com/angeloszaimis/admin-gateway/internal/circuitbreaker"
	"github.com/angeloszaimis/admin-gateway/internal/gateway"
	"github.com/angeloszaimis/admin-gateway/internal/handler"
	"github.com/angeloszaimis/admin-gateway/internal/metrics"
)

func setupRouter(fwd *gateway.Forwarder, routes []gateway.Route, collector *metrics.Collector, breakers *circuitbreaker.Registry, origins gateway.Origins, log *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(handler.RequestID, handler.AccessLog(log), handler.Recover(log))

	r.NotFound(gateway.NotFound)
	r.MethodNotAllowed(gateway.MethodNotAllowed)

	r.Get("/healthz", healthz(origins.Backend))
	r.Get("/stats", collector.Handler(breakerStates(breakers)))
	r.Method(http.MethodGet, "/metrics", collector.PrometheusHandler())

	gateway.Mount(r, fwd, routes)

	return r
}

func breakerStates(registry *circuitbreaker.Registry) func() map[string]string {
	if registry == nil {
		return nil
	}
	return func() map[string]string {
		stats := registry.Stats()
		states := make(map[string]string, len(stats))
		for origin, state := range stats {
			states[origin] = state.String()
		}
		return states
	}
}

type healthResponse struct {
	Status  string `json:"status"`
	Backend string `json:"backend"`
}

// healthz reports the gateway as ok only when the backend origin is
// configured and its last health check succeeded.
func healthz(origin *backend.Origin) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res := healthResponse{Status: "ok", Backend: "up"}
		status := http.StatusOK

		switch {
		case origin == nil || !origin.Configured():
			res = healthResponse{Status: "degraded", Backend: "unconfigured"}
			status = http.StatusServiceUnavailable
		case !origin.IsHealthy():
			res = healthResponse{Status: "degraded", Backend: "down"}
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(res)
	}
}
