package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/dreschagin/monitoring-dashboard/traffic-ingest/pkg/logger"
)

// Pinger проверяет доступность хранилища
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler обслуживает liveness и readiness пробы
type HealthHandler struct {
	store   Pinger
	timeout time.Duration
	logger  *logger.Logger
}

func NewHealthHandler(store Pinger, timeout time.Duration, logger *logger.Logger) *HealthHandler {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &HealthHandler{store: store, timeout: timeout, logger: logger}
}

// Live отвечает, пока процесс жив
func (h *HealthHandler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready проверяет хранилище
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	w.Header().Set("Content-Type", "text/plain")
	if err := h.store.Ping(ctx); err != nil {
		h.logger.Warn("Readiness check failed", "error", err.Error())
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("store unavailable"))
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
