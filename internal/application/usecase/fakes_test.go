package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/dreschagin/monitoring-dashboard/traffic-ingest/internal/application/port"
	"github.com/dreschagin/monitoring-dashboard/traffic-ingest/internal/domain/entity"
)

type fakeStore struct {
	mu       sync.Mutex
	values   map[string]string
	counters map[string]int64
	sets     int
	batches  int
	getErr   error
	setErr   error
	incrErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		values:   make(map[string]string),
		counters: make(map[string]int64),
	}
}

func (s *fakeStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return "", false, &port.StoreError{Op: "get", Key: key, Err: s.getErr}
	}
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *fakeStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setErr != nil {
		return &port.StoreError{Op: "set", Key: key, Err: s.setErr}
	}
	s.values[key] = value
	s.sets++
	return nil
}

func (s *fakeStore) IncrBy(_ context.Context, key string, amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.incrErr != nil {
		return &port.StoreError{Op: "incrby", Key: key, Err: s.incrErr}
	}
	s.counters[key] += amount
	return nil
}

func (s *fakeStore) IncrByBatch(_ context.Context, increments []port.Increment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.incrErr != nil {
		return &port.StoreError{Op: "incrby pipeline", Err: s.incrErr}
	}
	s.batches++
	for _, inc := range increments {
		s.counters[inc.Key] += inc.Amount
	}
	return nil
}

func (s *fakeStore) Ping(context.Context) error { return nil }
func (s *fakeStore) Close() error               { return nil }

func (s *fakeStore) counter(key string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters[key]
}

type emitted struct {
	tag    string
	at     time.Time
	record port.EmitRecord
}

type fakeEmitter struct {
	mu      sync.Mutex
	records []emitted
	err     error
}

func (e *fakeEmitter) Emit(_ context.Context, tag string, at time.Time, record port.EmitRecord) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.records = append(e.records, emitted{tag: tag, at: at, record: record})
	return e.err
}

func (e *fakeEmitter) Close() error { return nil }

type fakeMirror struct {
	snapshots []entity.MetricsSnapshot
	err       error
}

func (m *fakeMirror) PublishSnapshot(_ context.Context, _ time.Time, s entity.MetricsSnapshot) error {
	m.snapshots = append(m.snapshots, s)
	return m.err
}

func (m *fakeMirror) Flush(context.Context) error { return nil }
