package entity

import "sort"

// MetricsSnapshot - неизменяемая копия счетчиков всех deployment на момент сброса
type MetricsSnapshot struct {
	deployments map[string]DeploymentMetrics
}

// NewMetricsSnapshot забирает map во владение; вызывающий не должен менять ее после передачи
func NewMetricsSnapshot(deployments map[string]DeploymentMetrics) MetricsSnapshot {
	if deployments == nil {
		deployments = make(map[string]DeploymentMetrics)
	}
	return MetricsSnapshot{deployments: deployments}
}

// Len возвращает количество deployment в snapshot
func (s MetricsSnapshot) Len() int {
	return len(s.deployments)
}

// IsEmpty проверяет, пуст ли snapshot
func (s MetricsSnapshot) IsEmpty() bool {
	return len(s.deployments) == 0
}

// Get возвращает счетчики deployment
func (s MetricsSnapshot) Get(deploymentID string) (DeploymentMetrics, bool) {
	m, ok := s.deployments[deploymentID]
	return m, ok
}

// DeploymentIDs возвращает отсортированный список идентификаторов
func (s MetricsSnapshot) DeploymentIDs() []string {
	ids := make([]string, 0, len(s.deployments))
	for id := range s.deployments {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Totals суммирует счетчики всех deployment
func (s MetricsSnapshot) Totals() DeploymentMetrics {
	var total DeploymentMetrics
	for _, m := range s.deployments {
		total = total.Add(m)
	}
	return total
}

// ToMap возвращает копию содержимого
func (s MetricsSnapshot) ToMap() map[string]DeploymentMetrics {
	out := make(map[string]DeploymentMetrics, len(s.deployments))
	for id, m := range s.deployments {
		out[id] = m
	}
	return out
}
