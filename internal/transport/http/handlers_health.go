package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"tessera/internal/transport/http/shared"
)

// HealthCheck names one dependency ping. Checks run on every /healthz call,
// so pings must be cheap.
type HealthCheck struct {
	Name string
	Ping func(ctx context.Context) error
}

// HealthHandler reports process liveness and dependency reachability.
type HealthHandler struct {
	logger *slog.Logger
	checks []HealthCheck
}

// NewHealthHandler creates the health endpoint. With no checks it reports
// plain liveness.
func NewHealthHandler(logger *slog.Logger, checks ...HealthCheck) *HealthHandler {
	return &HealthHandler{logger: logger, checks: checks}
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

const healthCheckTimeout = 2 * time.Second

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := healthResponse{Status: "ok"}
	if len(h.checks) > 0 {
		resp.Checks = make(map[string]string, len(h.checks))
	}

	healthy := true
	for _, check := range h.checks {
		pingCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
		err := check.Ping(pingCtx)
		cancel()
		if err != nil {
			healthy = false
			resp.Checks[check.Name] = err.Error()
			h.logger.WarnContext(ctx, "health check failed",
				"check", check.Name,
				"error", err.Error(),
			)
			continue
		}
		resp.Checks[check.Name] = "ok"
	}

	statusCode := http.StatusOK
	if !healthy {
		resp.Status = "degraded"
		statusCode = http.StatusServiceUnavailable
	}
	shared.WriteJSON(w, statusCode, resp)
}
