package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles prometheus collectors used by the ingest service.
// Implements port.Telemetry.
type Metrics struct {
	RequestsTotal      *prometheus.CounterVec
	RequestDurationSec *prometheus.HistogramVec
	EventsTotal        *prometheus.CounterVec
	LastActionTotal    *prometheus.CounterVec
	EmitErrors         prometheus.Counter
	FlushesTotal       *prometheus.CounterVec
	FlushDurationSec   prometheus.Histogram
	FlushedWrites      prometheus.Counter
	FlushedDeployments prometheus.Counter
	ShedDropped        prometheus.Counter

	registry  *prometheus.Registry
	ingestPath string
}

// New registers all collectors. ingestPath is reported as its own route label.
func New(registry *prometheus.Registry, ingestPath string) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"route", "method", "status"}),
		RequestDurationSec: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ingest_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
		EventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_events_total",
			Help: "Total number of inbound events by pipeline outcome.",
		}, []string{"outcome"}),
		LastActionTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_last_action_touches_total",
			Help: "Last action touches by result (updated, skipped, failed).",
		}, []string{"result"}),
		EmitErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ingest_emit_errors_total",
			Help: "Total number of downstream emit failures.",
		}),
		FlushesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_flushes_total",
			Help: "Total number of non-empty flushes by result.",
		}, []string{"result"}),
		FlushDurationSec: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ingest_flush_duration_seconds",
			Help:    "Duration of non-empty flushes in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
		FlushedWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ingest_flushed_increments_total",
			Help: "Total number of counter increments written to the store.",
		}),
		FlushedDeployments: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ingest_flushed_deployments_total",
			Help: "Total number of deployment snapshots written to the store.",
		}),
		ShedDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ingest_shed_dropped_total",
			Help: "Total number of events dropped by the load shedder.",
		}),
		registry:  registry,
		ingestPath: ingestPath,
	}

	registry.MustRegister(
		m.RequestsTotal,
		m.RequestDurationSec,
		m.EventsTotal,
		m.LastActionTotal,
		m.EmitErrors,
		m.FlushesTotal,
		m.FlushDurationSec,
		m.FlushedWrites,
		m.FlushedDeployments,
		m.ShedDropped,
	)

	return m
}

// RegisterPending exposes the number of deployments waiting for the next flush.
func (m *Metrics) RegisterPending(pending func() int) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "ingest_pending_deployments",
		Help: "Deployments with counters not yet flushed.",
	}, func() float64 { return float64(pending()) }))
}

func (m *Metrics) IngestObserved(outcome string) {
	m.EventsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) LastActionObserved(updated bool, err error) {
	result := "skipped"
	switch {
	case err != nil:
		result = "failed"
	case updated:
		result = "updated"
	}
	m.LastActionTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) EmitObserved(err error) {
	if err != nil {
		m.EmitErrors.Inc()
	}
}

func (m *Metrics) FlushObserved(deployments, writes int, duration time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.FlushesTotal.WithLabelValues(result).Inc()
	m.FlushDurationSec.Observe(duration.Seconds())
	m.FlushedWrites.Add(float64(writes))
	if err == nil {
		m.FlushedDeployments.Add(float64(deployments))
	}
}

// Dropped records an event dropped before reaching the pipeline.
func (m *Metrics) Dropped() {
	m.ShedDropped.Inc()
}

func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startedAt := time.Now()
		wrapped := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		status := strconv.Itoa(wrapped.statusCode)
		route := m.normalizeRoute(r.URL.Path)
		m.RequestsTotal.WithLabelValues(route, r.Method, status).Inc()
		m.RequestDurationSec.WithLabelValues(route, r.Method, status).Observe(time.Since(startedAt).Seconds())
	})
}

// normalizeRoute keeps label cardinality bounded
func (m *Metrics) normalizeRoute(path string) string {
	switch {
	case path == m.ingestPath:
		return "ingest"
	case path == "/healthz", path == "/readyz", path == "/metrics", path == "/tail":
		return strings.TrimPrefix(path, "/")
	default:
		return "other"
	}
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rw *statusRecorder) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

// Hijack passes websocket upgrades through wrapped ResponseWriter.
func (rw *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hijacker.Hijack()
}

// Flush keeps streaming behavior for handlers that require it.
func (rw *statusRecorder) Flush() {
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
