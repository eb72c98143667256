package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/coder/quartz"

	"github.com/dreschagin/monitoring-dashboard/traffic-ingest/internal/application/port"
	"github.com/dreschagin/monitoring-dashboard/traffic-ingest/internal/domain/entity"
	"github.com/dreschagin/monitoring-dashboard/traffic-ingest/internal/domain/valueobject"
	"github.com/dreschagin/monitoring-dashboard/traffic-ingest/pkg/logger"
)

// MetricsDrainer отдает накопленные счетчики и сбрасывает их
type MetricsDrainer interface {
	DrainAndReset() entity.MetricsSnapshot
}

// FlushMetricsConfig - настройки сброса счетчиков
type FlushMetricsConfig struct {
	KeyPrefix string
	Timeout   time.Duration
}

// FlushResult - итог одного сброса
type FlushResult struct {
	Deployments int
	Writes      int
	Duration    time.Duration
}

// FlushMetricsUseCase переносит накопленные счетчики в хранилище через INCRBY
type FlushMetricsUseCase struct {
	aggregator MetricsDrainer
	store      port.KeyValueStore
	mirror     port.SnapshotPublisher
	clock      quartz.Clock
	cfg        FlushMetricsConfig
	telemetry  port.Telemetry
	logger     *logger.Logger
}

// NewFlushMetricsUseCase создает use case. mirror может быть nil.
func NewFlushMetricsUseCase(
	aggregator MetricsDrainer,
	store port.KeyValueStore,
	mirror port.SnapshotPublisher,
	clock quartz.Clock,
	cfg FlushMetricsConfig,
	telemetry port.Telemetry,
	logger *logger.Logger,
) *FlushMetricsUseCase {
	if telemetry == nil {
		telemetry = port.NopTelemetry{}
	}
	return &FlushMetricsUseCase{
		aggregator: aggregator,
		store:      store,
		mirror:     mirror,
		clock:      clock,
		cfg:        cfg,
		telemetry:  telemetry,
		logger:     logger,
	}
}

// MetricKey возвращает ключ счетчика "{prefix}:{deploymentId}:{counter}"
func MetricKey(prefix, deploymentID string, counter valueobject.CounterName) string {
	return prefix + ":" + deploymentID + ":" + counter.String()
}

// Execute забирает snapshot и записывает ненулевые счетчики одним pipeline.
// При ошибке хранилища snapshot теряется, повторной попытки нет.
func (uc *FlushMetricsUseCase) Execute(ctx context.Context) (FlushResult, error) {
	start := uc.clock.Now()

	// 1. Забираем счетчики, ingestion продолжает писать в новую map
	snapshot := uc.aggregator.DrainAndReset()
	if snapshot.IsEmpty() {
		uc.logger.Debug("Nothing to flush")
		return FlushResult{}, nil
	}

	// 2. Строим пачку инкрементов, нулевые счетчики пропускаем
	increments := BuildIncrements(uc.cfg.KeyPrefix, snapshot)
	result := FlushResult{Deployments: snapshot.Len(), Writes: len(increments)}

	if uc.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, uc.cfg.Timeout)
		defer cancel()
	}

	// 3. Записываем в хранилище
	if err := uc.store.IncrByBatch(ctx, increments); err != nil {
		result.Duration = uc.clock.Since(start)
		uc.telemetry.FlushObserved(result.Deployments, 0, result.Duration, err)
		uc.logger.Error("Failed to flush metrics, snapshot dropped", err,
			"deployments", result.Deployments,
			"writes", result.Writes,
		)
		return result, fmt.Errorf("failed to flush metrics: %w", err)
	}

	result.Duration = uc.clock.Since(start)
	uc.telemetry.FlushObserved(result.Deployments, result.Writes, result.Duration, nil)
	uc.logger.Info("Metrics flushed",
		"deployments", result.Deployments,
		"writes", result.Writes,
		"duration_ms", result.Duration.Milliseconds(),
	)

	// 4. Зеркалируем в систему наблюдения, результат сброса от этого не зависит
	if uc.mirror != nil {
		if err := uc.mirror.PublishSnapshot(ctx, start, snapshot); err != nil {
			uc.logger.Warn("Failed to mirror flushed metrics", "error", err.Error())
		}
	}

	return result, nil
}

// BuildIncrements возвращает инкременты в порядке deployment и счетчиков
func BuildIncrements(prefix string, snapshot entity.MetricsSnapshot) []port.Increment {
	increments := make([]port.Increment, 0, snapshot.Len()*len(valueobject.AllCounterNames()))
	for _, id := range snapshot.DeploymentIDs() {
		m, _ := snapshot.Get(id)
		for _, c := range m.NonZeroCounters() {
			increments = append(increments, port.Increment{
				Key:    MetricKey(prefix, id, c.Name),
				Amount: c.Value,
			})
		}
	}
	return increments
}
