package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dreschagin/monitoring-dashboard/traffic-ingest/internal/application/usecase"
	"github.com/dreschagin/monitoring-dashboard/traffic-ingest/pkg/logger"
)

type recordingIngester struct {
	bodies [][]byte
}

func (r *recordingIngester) Execute(_ context.Context, raw []byte) usecase.Outcome {
	r.bodies = append(r.bodies, raw)
	return usecase.OutcomeProcessed
}

func TestIngestHandlerAlwaysOK(t *testing.T) {
	ingester := &recordingIngester{}
	h := NewIngestHandler(ingester, 8, logger.New("error"))

	tests := []struct {
		name     string
		body     string
		wantBody string
	}{
		{name: "within limit", body: `{"a":1}`, wantBody: `{"a":1}`},
		{name: "over limit", body: `{"deploymentid":"d1"}`, wantBody: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ingester.bodies = nil
			rec := httptest.NewRecorder()
			h.Ingest(rec, httptest.NewRequest(http.MethodPost, "/minio", strings.NewReader(tt.body)))

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}
			if rec.Body.Len() != 0 {
				t.Fatalf("body should be empty, got %q", rec.Body.String())
			}
			if len(ingester.bodies) != 1 || string(ingester.bodies[0]) != tt.wantBody {
				t.Fatalf("ingested %q, want %q", ingester.bodies, tt.wantBody)
			}
		})
	}
}

func TestIngestHandlerRejectsOtherMethods(t *testing.T) {
	ingester := &recordingIngester{}
	h := NewIngestHandler(ingester, 0, logger.New("error"))

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		rec := httptest.NewRecorder()
		h.Ingest(rec, httptest.NewRequest(method, "/minio", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("%s status = %d, want 405", method, rec.Code)
		}
	}
	if len(ingester.bodies) != 0 {
		t.Fatalf("non-POST requests must not be ingested")
	}
}

type stubPinger struct {
	err error
}

func (s stubPinger) Ping(context.Context) error {
	return s.err
}

func TestHealthHandlerReady(t *testing.T) {
	log := logger.New("error")

	rec := httptest.NewRecorder()
	NewHealthHandler(stubPinger{}, time.Second, log).Ready(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("ready status = %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	NewHealthHandler(stubPinger{err: errors.New("down")}, time.Second, log).Ready(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("not ready status = %d, want 503", rec.Code)
	}
}

func TestTailHandlerCheckOrigin(t *testing.T) {
	h := NewTailHandler(nil, []string{"https://ops.example.com", " "}, logger.New("error"))

	tests := []struct {
		origin string
		want   bool
	}{
		{origin: "", want: true},
		{origin: "https://ops.example.com", want: true},
		{origin: "https://ops.example.com/path", want: true},
		{origin: "https://evil.example.com", want: false},
		{origin: "not a url", want: false},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/tail", nil)
		if tt.origin != "" {
			req.Header.Set("Origin", tt.origin)
		}
		if got := h.checkOrigin(req); got != tt.want {
			t.Errorf("checkOrigin(%q) = %v, want %v", tt.origin, got, tt.want)
		}
	}

	wildcard := NewTailHandler(nil, []string{"*"}, logger.New("error"))
	req := httptest.NewRequest(http.MethodGet, "/tail", nil)
	req.Header.Set("Origin", "https://any.example.com")
	if !wildcard.checkOrigin(req) {
		t.Fatalf("wildcard should allow any origin")
	}
}
