package service

import (
	"sync"

	"github.com/dreschagin/monitoring-dashboard/traffic-ingest/internal/domain/entity"
	"github.com/dreschagin/monitoring-dashboard/traffic-ingest/internal/domain/valueobject"
)

// MetricsAggregator накапливает счетчики трафика по deployment в памяти (Domain Service).
// Update и DrainAndReset сериализуются одним мьютексом: каждое обновление попадает
// ровно в один snapshot.
type MetricsAggregator struct {
	mu          sync.Mutex
	deployments map[string]*entity.DeploymentMetrics
}

// NewMetricsAggregator создает пустой агрегатор
func NewMetricsAggregator() *MetricsAggregator {
	return &MetricsAggregator{
		deployments: make(map[string]*entity.DeploymentMetrics),
	}
}

// Update учитывает один запрос deployment.
// Запись для нового deployment создается с нулевыми счетчиками.
func (a *MetricsAggregator) Update(deploymentID string, category valueobject.TrafficCategory, requestLen, responseLen int64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	m, ok := a.deployments[deploymentID]
	if !ok {
		m = &entity.DeploymentMetrics{}
		a.deployments[deploymentID] = m
	}
	m.Apply(category, requestLen, responseLen)
}

// Apply учитывает событие
func (a *MetricsAggregator) Apply(event *entity.Event) {
	a.Update(event.DeploymentID, event.Category(), event.RequestContentLength, event.ResponseContentLength)
}

// DrainAndReset забирает текущие счетчики и подменяет их пустой map.
// Snapshot больше не связан с агрегатором.
func (a *MetricsAggregator) DrainAndReset() entity.MetricsSnapshot {
	a.mu.Lock()
	drained := a.deployments
	a.deployments = make(map[string]*entity.DeploymentMetrics)
	a.mu.Unlock()

	out := make(map[string]entity.DeploymentMetrics, len(drained))
	for id, m := range drained {
		out[id] = *m
	}
	return entity.NewMetricsSnapshot(out)
}

// Peek возвращает копию текущих счетчиков без сброса
func (a *MetricsAggregator) Peek() entity.MetricsSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make(map[string]entity.DeploymentMetrics, len(a.deployments))
	for id, m := range a.deployments {
		out[id] = *m
	}
	return entity.NewMetricsSnapshot(out)
}

// Pending возвращает число deployment, ожидающих сброса
func (a *MetricsAggregator) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.deployments)
}
