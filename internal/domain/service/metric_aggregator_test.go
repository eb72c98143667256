package service

import (
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/dreschagin/monitoring-dashboard/traffic-ingest/internal/domain/entity"
	"github.com/dreschagin/monitoring-dashboard/traffic-ingest/internal/domain/valueobject"
)

func TestMetricsAggregatorUpdateAndDrain(t *testing.T) {
	a := NewMetricsAggregator()
	a.Update("d1", valueobject.CategoryIn, 10, 20)
	a.Update("d1", valueobject.CategoryOut, 1, 300)
	a.Update("d2", valueobject.CategoryMisc, 0, 5)

	if a.Pending() != 2 {
		t.Fatalf("Pending() = %d, want 2", a.Pending())
	}

	snap := a.DrainAndReset()
	d1, ok := snap.Get("d1")
	if !ok {
		t.Fatalf("d1 missing from snapshot")
	}
	want := entity.DeploymentMetrics{BytesIn: 11, BytesOut: 320, RequestsIn: 1, RequestsOut: 1}
	if d1 != want {
		t.Fatalf("d1 = %+v, want %+v", d1, want)
	}
	if d2, _ := snap.Get("d2"); d2.RequestsMisc != 1 || d2.BytesOut != 5 {
		t.Fatalf("unexpected d2: %+v", d2)
	}

	if a.Pending() != 0 {
		t.Fatalf("aggregator should be empty after drain")
	}

	// snapshot не меняется после новых обновлений
	a.Update("d1", valueobject.CategoryIn, 1000, 1000)
	if again, _ := snap.Get("d1"); again != want {
		t.Fatalf("snapshot mutated after drain: %+v", again)
	}
}

func TestMetricsAggregatorEmptyDrain(t *testing.T) {
	a := NewMetricsAggregator()
	snap := a.DrainAndReset()
	if !snap.IsEmpty() {
		t.Fatalf("expected empty snapshot, got %d deployments", snap.Len())
	}
}

func TestMetricsAggregatorApplyEvent(t *testing.T) {
	a := NewMetricsAggregator()
	a.Apply(&entity.Event{DeploymentID: "d1", APIName: "GetObject", RequestContentLength: 3, ResponseContentLength: 7})

	m, _ := a.Peek().Get("d1")
	if m.RequestsOut != 1 || m.BytesIn != 3 || m.BytesOut != 7 {
		t.Fatalf("unexpected metrics after Apply: %+v", m)
	}
	if a.Pending() != 1 {
		t.Fatalf("Peek should not drain")
	}
}

func TestMetricsAggregatorNoLossAcrossDrain(t *testing.T) {
	const (
		workers   = 16
		perWorker = 2000
	)

	a := NewMetricsAggregator()
	categories := valueobject.AllTrafficCategories()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		drained []entity.MetricsSnapshot
	)

	start := make(chan struct{})
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			<-start
			for i := 0; i < perWorker; i++ {
				id := fmt.Sprintf("d%d", (w+i)%5)
				a.Update(id, categories[i%len(categories)], 2, 3)
			}
		}(w)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-start
		for i := 0; i < 50; i++ {
			snap := a.DrainAndReset()
			mu.Lock()
			drained = append(drained, snap)
			mu.Unlock()
		}
	}()

	close(start)
	wg.Wait()
	<-done

	var total entity.DeploymentMetrics
	for _, s := range drained {
		total = total.Add(s.Totals())
	}
	total = total.Add(a.DrainAndReset().Totals())

	const updates = workers * perWorker
	if total.Requests() != updates {
		t.Fatalf("requests = %d, want %d", total.Requests(), updates)
	}
	if total.BytesIn != 2*updates || total.BytesOut != 3*updates {
		t.Fatalf("bytes = %d/%d, want %d/%d", total.BytesIn, total.BytesOut, 2*updates, 3*updates)
	}
}

func TestMetricsAggregatorHugeContentLengthStaysPositive(t *testing.T) {
	p := NewEventParser()
	a := NewMetricsAggregator()

	bodies := []string{
		`{"deploymentid":"d1","api":{"name":"PutObject"},"requestHeader":{"Content-Length":"9223372036854775807"},"responseHeader":{}}`,
		`{"deploymentid":"d1","api":{"name":"PutObject"},"requestHeader":{"Content-Length":"10"},"responseHeader":{}}`,
	}
	for _, body := range bodies {
		payload, err := p.Parse([]byte(body))
		if err != nil {
			t.Fatalf("Parse() error = %v", err)
		}
		event, err := p.Extract(payload)
		if err != nil {
			t.Fatalf("Extract() error = %v", err)
		}
		if event.RequestContentLength < 0 {
			t.Fatalf("RequestContentLength = %d, want non-negative", event.RequestContentLength)
		}
		a.Apply(event)
	}

	m, ok := a.DrainAndReset().Get("d1")
	if !ok {
		t.Fatalf("d1 missing from snapshot")
	}
	if m.BytesIn != math.MaxInt64 || m.RequestsIn != 2 {
		t.Fatalf("unexpected metrics: %+v", m)
	}

	var hasBytesIn bool
	for _, c := range m.NonZeroCounters() {
		if c.Name == valueobject.CounterBytesIn {
			hasBytesIn = true
		}
	}
	if !hasBytesIn {
		t.Fatalf("bytes_in must be flushed")
	}
}
