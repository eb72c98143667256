package entity

import "github.com/dreschagin/monitoring-dashboard/traffic-ingest/internal/domain/valueobject"

// Event - одно событие вызова API объектного хранилища.
// Живет только в рамках обработки запроса и не сохраняется.
type Event struct {
	DeploymentID          string
	APIName               string
	RequestContentLength  int64
	ResponseContentLength int64
	ResponseCached        bool

	// Payload - исходный разобранный документ, уходит дальше при маршрутизации
	Payload map[string]interface{}
}

// Category возвращает направление трафика события
func (e *Event) Category() valueobject.TrafficCategory {
	return valueobject.Classify(e.APIName)
}
