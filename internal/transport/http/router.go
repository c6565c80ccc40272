// Package httptransport is the thin HTTP layer. Handlers delegate to domain
// services and stay free of business logic; every error reaches the wire
// through the shared envelope.
package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tessera/internal/platform/metrics"
	"tessera/internal/platform/middleware"
)

// Routable registers a group of routes on the router.
type Routable interface {
	Register(r chi.Router)
}

// NewRouter assembles the full surface. The base chain (recovery, request
// id, request time, access log, latency) applies to every route; auth and
// timeouts are per-group and live in each handler's Register.
func NewRouter(logger *slog.Logger, m *metrics.Metrics, health *HealthHandler, handlers ...Routable) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.LatencyMiddleware(m))

	r.Get("/healthz", health.ServeHTTP)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	for _, h := range handlers {
		h.Register(r)
	}
	return r
}
