package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/astrovoice/internal/calc"
)

// Pinger checks a dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// BackendReporter reports calculation backend liveness.
type BackendReporter interface {
	Status(ctx context.Context) []calc.BackendStatus
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	store    Pinger
	backends BackendReporter
	timeout  time.Duration
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(store Pinger, backends BackendReporter, timeout time.Duration) *HealthHandler {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HealthHandler{store: store, backends: backends, timeout: timeout}
}

// Health returns the health status of the API and its dependencies.
// Backend outages do not degrade the service, the chain falls back.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	status := map[string]interface{}{
		"status": "healthy",
		"checks": map[string]string{"api": "ok"},
	}
	statusCode := http.StatusOK

	if err := h.store.Ping(ctx); err != nil {
		slog.Error("Health check failed", "error", err)
		status["status"] = "degraded"
		status["checks"].(map[string]string)["session_store"] = "unreachable"
		statusCode = http.StatusServiceUnavailable
	} else {
		status["checks"].(map[string]string)["session_store"] = "ok"
	}

	if h.backends != nil {
		status["backends"] = h.backends.Status(ctx)
	}

	JSON(w, statusCode, status)
}

// RegisterHealth registers the health check route.
func (h *HealthHandler) RegisterHealth(r chi.Router) {
	r.Get("/health", h.Health)
}
