package http

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dreschagin/monitoring-dashboard/traffic-ingest/internal/infrastructure/observability/metrics"
	"github.com/dreschagin/monitoring-dashboard/traffic-ingest/internal/interfaces/http/handler"
	"github.com/dreschagin/monitoring-dashboard/traffic-ingest/internal/interfaces/http/middleware"
	"github.com/dreschagin/monitoring-dashboard/traffic-ingest/pkg/logger"
)

// Router настраивает маршруты приложения
type Router struct {
	mux           *http.ServeMux
	tag           string
	ingestHandler *handler.IngestHandler
	healthHandler *handler.HealthHandler
	tailHandler   *handler.TailHandler
	metrics       *metrics.Metrics
	registry      *prometheus.Registry
	shedder       *middleware.Shedder
	logger        *logger.Logger
}

// NewRouter создает новый router.
// tailHandler, metrics и shedder могут быть nil: соответствующие маршруты не подключаются.
func NewRouter(
	tag string,
	ingestHandler *handler.IngestHandler,
	healthHandler *handler.HealthHandler,
	tailHandler *handler.TailHandler,
	metrics *metrics.Metrics,
	registry *prometheus.Registry,
	shedder *middleware.Shedder,
	logger *logger.Logger,
) *Router {
	return &Router{
		mux:           http.NewServeMux(),
		tag:           tag,
		ingestHandler: ingestHandler,
		healthHandler: healthHandler,
		tailHandler:   tailHandler,
		metrics:       metrics,
		registry:      registry,
		shedder:       shedder,
		logger:        logger,
	}
}

// IngestPath возвращает путь, на который источник отправляет события
func IngestPath(tag string) string {
	return "/" + tag
}

// Setup настраивает все маршруты
func (rt *Router) Setup() http.Handler {
	// Пробы
	rt.mux.HandleFunc("/healthz", rt.healthHandler.Live)
	rt.mux.HandleFunc("/readyz", rt.healthHandler.Ready)

	// Прием событий
	var onDrop func()
	if rt.metrics != nil {
		onDrop = rt.metrics.Dropped
	}
	ingest := middleware.Shed(rt.shedder, onDrop)(http.HandlerFunc(rt.ingestHandler.Ingest))
	rt.mux.Handle(IngestPath(rt.tag), ingest)

	// Поток принятых событий
	if rt.tailHandler != nil {
		rt.mux.HandleFunc("/tail", rt.tailHandler.HandleConnection)
	}

	if rt.registry != nil {
		rt.mux.Handle("/metrics", promhttp.HandlerFor(rt.registry, promhttp.HandlerOpts{}))
	}

	// Применяем middleware
	var handler http.Handler = rt.mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(handler)
	}
	handler = middleware.Logger(rt.logger)(handler)
	handler = middleware.RequestID(handler)
	handler = middleware.Recovery(rt.logger)(handler)

	return handler
}
