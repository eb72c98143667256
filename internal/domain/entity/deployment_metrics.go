package entity

import (
	"math"

	"github.com/dreschagin/monitoring-dashboard/traffic-ingest/internal/domain/valueobject"
)

// DeploymentMetrics - счетчики трафика одного deployment между сбросами.
// Нулевое значение готово к использованию.
type DeploymentMetrics struct {
	BytesIn      int64
	BytesOut     int64
	RequestsIn   int64
	RequestsOut  int64
	RequestsMisc int64
}

// Counter - пара имя/значение для записи в хранилище
type Counter struct {
	Name  valueobject.CounterName
	Value int64
}

// Apply учитывает один запрос. Отрицательные длины считаются нулем,
// счетчики насыщаются на math.MaxInt64.
func (m *DeploymentMetrics) Apply(category valueobject.TrafficCategory, requestLen, responseLen int64) {
	m.BytesIn = saturatingAdd(m.BytesIn, requestLen)
	m.BytesOut = saturatingAdd(m.BytesOut, responseLen)

	switch category {
	case valueobject.CategoryIn:
		m.RequestsIn = saturatingAdd(m.RequestsIn, 1)
	case valueobject.CategoryOut:
		m.RequestsOut = saturatingAdd(m.RequestsOut, 1)
	default:
		m.RequestsMisc = saturatingAdd(m.RequestsMisc, 1)
	}
}

// saturatingAdd складывает неотрицательные значения без переполнения
func saturatingAdd(a, b int64) int64 {
	if b <= 0 {
		return a
	}
	if a > math.MaxInt64-b {
		return math.MaxInt64
	}
	return a + b
}

// Add возвращает покомпонентную сумму
func (m DeploymentMetrics) Add(other DeploymentMetrics) DeploymentMetrics {
	return DeploymentMetrics{
		BytesIn:      saturatingAdd(m.BytesIn, other.BytesIn),
		BytesOut:     saturatingAdd(m.BytesOut, other.BytesOut),
		RequestsIn:   saturatingAdd(m.RequestsIn, other.RequestsIn),
		RequestsOut:  saturatingAdd(m.RequestsOut, other.RequestsOut),
		RequestsMisc: saturatingAdd(m.RequestsMisc, other.RequestsMisc),
	}
}

// Requests возвращает общее число запросов
func (m DeploymentMetrics) Requests() int64 {
	return m.RequestsIn + m.RequestsOut + m.RequestsMisc
}

// IsZero проверяет, что все счетчики нулевые
func (m DeploymentMetrics) IsZero() bool {
	return m == DeploymentMetrics{}
}

// Counters возвращает все счетчики в порядке valueobject.AllCounterNames
func (m DeploymentMetrics) Counters() []Counter {
	return []Counter{
		{Name: valueobject.CounterBytesIn, Value: m.BytesIn},
		{Name: valueobject.CounterBytesOut, Value: m.BytesOut},
		{Name: valueobject.CounterRequestsIn, Value: m.RequestsIn},
		{Name: valueobject.CounterRequestsOut, Value: m.RequestsOut},
		{Name: valueobject.CounterRequestsMisc, Value: m.RequestsMisc},
	}
}

// NonZeroCounters возвращает только положительные счетчики
func (m DeploymentMetrics) NonZeroCounters() []Counter {
	counters := make([]Counter, 0, 5)
	for _, c := range m.Counters() {
		if c.Value > 0 {
			counters = append(counters, c)
		}
	}
	return counters
}
