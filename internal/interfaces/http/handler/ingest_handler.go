package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/dreschagin/monitoring-dashboard/traffic-ingest/internal/application/usecase"
	"github.com/dreschagin/monitoring-dashboard/traffic-ingest/pkg/logger"
)

// EventIngester обрабатывает тело одного события
type EventIngester interface {
	Execute(ctx context.Context, raw []byte) usecase.Outcome
}

// IngestHandler принимает события от источника.
// Источник не ждет ничего, кроме 200, поэтому ошибки разбора наружу не выходят.
type IngestHandler struct {
	ingester     EventIngester
	maxBodyBytes int64
	logger       *logger.Logger
}

// NewIngestHandler создает handler; maxBodyBytes <= 0 отключает ограничение
func NewIngestHandler(ingester EventIngester, maxBodyBytes int64, logger *logger.Logger) *IngestHandler {
	return &IngestHandler{
		ingester:     ingester,
		maxBodyBytes: maxBodyBytes,
		logger:       logger,
	}
}

// Ingest обрабатывает POST /<tag>
func (h *IngestHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body := r.Body
	if h.maxBodyBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	}

	raw, err := io.ReadAll(body)
	if err != nil {
		// Слишком большое или оборванное тело считаем ошибкой разбора
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.logger.Debug("Event body too large", "limit", tooLarge.Limit)
		} else {
			h.logger.Debug("Failed to read event body", "error", err.Error())
		}
		raw = nil
	}

	// Обработка не зависит от того, дождется ли клиент ответа
	h.ingester.Execute(context.WithoutCancel(r.Context()), raw)

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
}
