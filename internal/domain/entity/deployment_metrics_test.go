package entity

import (
	"math"
	"testing"

	"github.com/dreschagin/monitoring-dashboard/traffic-ingest/internal/domain/valueobject"
)

func TestDeploymentMetricsApply(t *testing.T) {
	var m DeploymentMetrics
	m.Apply(valueobject.CategoryIn, 10, 20)
	m.Apply(valueobject.CategoryOut, 1, 2)
	m.Apply(valueobject.CategoryMisc, 0, 5)

	want := DeploymentMetrics{BytesIn: 11, BytesOut: 27, RequestsIn: 1, RequestsOut: 1, RequestsMisc: 1}
	if m != want {
		t.Fatalf("Apply() = %+v, want %+v", m, want)
	}
	if m.Requests() != 3 {
		t.Fatalf("Requests() = %d, want 3", m.Requests())
	}
}

func TestDeploymentMetricsApplySaturates(t *testing.T) {
	var m DeploymentMetrics
	m.Apply(valueobject.CategoryIn, 10, 20)
	m.Apply(valueobject.CategoryIn, math.MaxInt64, math.MaxInt64-5)
	m.Apply(valueobject.CategoryOut, -100, 1)

	if m.BytesIn != math.MaxInt64 || m.BytesOut != math.MaxInt64 {
		t.Fatalf("byte counters should saturate, got %+v", m)
	}
	if m.RequestsIn != 2 || m.RequestsOut != 1 {
		t.Fatalf("request counters = %+v", m)
	}

	counters := m.NonZeroCounters()
	if len(counters) != 4 || counters[0].Name != valueobject.CounterBytesIn {
		t.Fatalf("saturated counters must still be flushed: %+v", counters)
	}
}

func TestDeploymentMetricsNonZeroCounters(t *testing.T) {
	m := DeploymentMetrics{BytesIn: 5, RequestsIn: 1}

	counters := m.NonZeroCounters()
	if len(counters) != 2 {
		t.Fatalf("expected 2 non-zero counters, got %+v", counters)
	}
	if counters[0].Name != valueobject.CounterBytesIn || counters[1].Name != valueobject.CounterRequestsIn {
		t.Fatalf("unexpected counter order: %+v", counters)
	}

	if !(DeploymentMetrics{}).IsZero() {
		t.Fatalf("zero value should report IsZero")
	}
	if len(DeploymentMetrics{}.NonZeroCounters()) != 0 {
		t.Fatalf("zero value should have no non-zero counters")
	}
}

func TestMetricsSnapshot(t *testing.T) {
	source := map[string]DeploymentMetrics{
		"b": {BytesIn: 1, RequestsIn: 1},
		"a": {BytesOut: 2, RequestsOut: 1},
	}
	s := NewMetricsSnapshot(source)

	if s.Len() != 2 || s.IsEmpty() {
		t.Fatalf("unexpected snapshot size: %d", s.Len())
	}
	ids := s.DeploymentIDs()
	if ids[0] != "a" || ids[1] != "b" {
		t.Fatalf("expected sorted ids, got %v", ids)
	}

	copied := s.ToMap()
	copied["a"] = DeploymentMetrics{}
	if got, _ := s.Get("a"); got.BytesOut != 2 {
		t.Fatalf("ToMap must return a copy, snapshot changed to %+v", got)
	}

	totals := s.Totals()
	if totals.BytesIn != 1 || totals.BytesOut != 2 || totals.Requests() != 2 {
		t.Fatalf("unexpected totals: %+v", totals)
	}

	if !NewMetricsSnapshot(nil).IsEmpty() {
		t.Fatalf("nil map should produce an empty snapshot")
	}
}
