package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/coder/quartz"

	"github.com/dreschagin/monitoring-dashboard/traffic-ingest/internal/application/port"
	"github.com/dreschagin/monitoring-dashboard/traffic-ingest/pkg/logger"
)

// LastActionLayout - формат хранимой метки: UTC, 8 знаков дробной части
const LastActionLayout = "2006-01-02T15:04:05.00000000Z"

// lastActionParseLayouts принимаются при чтении, в том числе записи с явным смещением
var lastActionParseLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// LastActionConfig - настройки трекера последней активности
type LastActionConfig struct {
	KeyPrefix   string
	GracePeriod time.Duration
	OpTimeout   time.Duration
}

// LastActionTracker обновляет метку последней активности deployment не чаще,
// чем раз в grace period. Чтение и запись не атомарны: два конкурентных вызова
// могут оба записать метку, это допустимо.
type LastActionTracker struct {
	store     port.KeyValueStore
	clock     quartz.Clock
	cfg       LastActionConfig
	telemetry port.Telemetry
	logger    *logger.Logger
}

// NewLastActionTracker создает трекер
func NewLastActionTracker(
	store port.KeyValueStore,
	clock quartz.Clock,
	cfg LastActionConfig,
	telemetry port.Telemetry,
	logger *logger.Logger,
) *LastActionTracker {
	if telemetry == nil {
		telemetry = port.NopTelemetry{}
	}
	return &LastActionTracker{
		store:     store,
		clock:     clock,
		cfg:       cfg,
		telemetry: telemetry,
		logger:    logger,
	}
}

// Key возвращает ключ метки deployment
func (t *LastActionTracker) Key(deploymentID string) string {
	return t.cfg.KeyPrefix + ":" + deploymentID
}

// Touch записывает текущее время, если метки нет или она старше grace period.
// Ошибки хранилища и формата не пробрасываются: результат false.
func (t *LastActionTracker) Touch(ctx context.Context, deploymentID string) bool {
	updated, err := t.touch(ctx, deploymentID)
	t.telemetry.LastActionObserved(updated, err)
	if err != nil {
		t.logger.Error("Failed to update last action", err, "deployment_id", deploymentID)
		return false
	}
	return updated
}

func (t *LastActionTracker) touch(ctx context.Context, deploymentID string) (bool, error) {
	key := t.Key(deploymentID)

	if t.cfg.OpTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.cfg.OpTimeout)
		defer cancel()
	}

	// 1. Читаем текущую метку
	stored, found, err := t.store.Get(ctx, key)
	if err != nil {
		return false, err
	}

	now := t.clock.Now()

	// 2. Проверяем, истек ли grace period
	if found {
		last, err := ParseLastAction(stored)
		if err != nil {
			return false, fmt.Errorf("parse last action %q: %w", key, err)
		}
		if ElapsedSeconds(last, now) < int64(t.cfg.GracePeriod/time.Second) {
			t.logger.Debug("Last action within grace period", "deployment_id", deploymentID, "last_action", stored)
			return false, nil
		}
	}

	// 3. Записываем новую метку
	if err := t.store.Set(ctx, key, FormatLastAction(now)); err != nil {
		return false, err
	}

	t.logger.Debug("Last action updated", "deployment_id", deploymentID, "first_seen", !found)
	return true, nil
}

// FormatLastAction форматирует метку для хранения
func FormatLastAction(at time.Time) string {
	return at.UTC().Format(LastActionLayout)
}

// ParseLastAction разбирает сохраненную метку. Метки без смещения считаются UTC.
func ParseLastAction(value string) (time.Time, error) {
	var firstErr error
	for _, layout := range lastActionParseLayouts {
		parsed, err := time.Parse(layout, value)
		if err == nil {
			return parsed, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}

// ElapsedSeconds - целое число секунд между метками, с округлением вниз
func ElapsedSeconds(from, to time.Time) int64 {
	d := to.Sub(from)
	secs := int64(d / time.Second)
	if d < 0 && d%time.Second != 0 {
		secs--
	}
	return secs
}
