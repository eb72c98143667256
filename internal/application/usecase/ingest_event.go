package usecase

import (
	"context"
	"errors"

	"github.com/coder/quartz"

	"github.com/dreschagin/monitoring-dashboard/traffic-ingest/internal/application/port"
	"github.com/dreschagin/monitoring-dashboard/traffic-ingest/internal/domain/entity"
	"github.com/dreschagin/monitoring-dashboard/traffic-ingest/internal/domain/service"
	"github.com/dreschagin/monitoring-dashboard/traffic-ingest/pkg/logger"
)

// Outcome - итог обработки одного события
type Outcome string

const (
	OutcomeProcessed          Outcome = port.OutcomeProcessed
	OutcomeRejectedParse      Outcome = port.OutcomeRejectedParse
	OutcomeRejectedValidation Outcome = port.OutcomeRejectedValidation
)

// MetricsRecorder учитывает событие в счетчиках
type MetricsRecorder interface {
	Apply(event *entity.Event)
}

// LastActionToucher обновляет метку последней активности
type LastActionToucher interface {
	Touch(ctx context.Context, deploymentID string) bool
}

// IngestEventUseCase обрабатывает одно входящее событие:
// разбор, проверка полей, классификация, агрегация, метка активности, маршрутизация.
// Ошибки не пробрасываются наружу, вызывающий всегда отвечает успехом.
type IngestEventUseCase struct {
	parser     *service.EventParser
	aggregator MetricsRecorder
	tracker    LastActionToucher
	emitter    port.EventEmitter
	clock      quartz.Clock
	tag        string
	telemetry  port.Telemetry
	logger     *logger.Logger
}

// NewIngestEventUseCase создает use case
func NewIngestEventUseCase(
	parser *service.EventParser,
	aggregator MetricsRecorder,
	tracker LastActionToucher,
	emitter port.EventEmitter,
	clock quartz.Clock,
	tag string,
	telemetry port.Telemetry,
	logger *logger.Logger,
) *IngestEventUseCase {
	if telemetry == nil {
		telemetry = port.NopTelemetry{}
	}
	return &IngestEventUseCase{
		parser:     parser,
		aggregator: aggregator,
		tracker:    tracker,
		emitter:    emitter,
		clock:      clock,
		tag:        tag,
		telemetry:  telemetry,
		logger:     logger,
	}
}

// Tag возвращает тег, под которым маршрутизируются события
func (uc *IngestEventUseCase) Tag() string {
	return uc.tag
}

// Execute обрабатывает тело запроса
func (uc *IngestEventUseCase) Execute(ctx context.Context, raw []byte) Outcome {
	outcome := uc.execute(ctx, raw)
	uc.telemetry.IngestObserved(string(outcome))
	return outcome
}

func (uc *IngestEventUseCase) execute(ctx context.Context, raw []byte) Outcome {
	// 1. Разбор
	payload, err := uc.parser.Parse(raw)
	if err != nil {
		uc.logger.Debug("Rejected malformed event", "error", err.Error(), "size", len(raw))
		return OutcomeRejectedParse
	}

	// 2. Обязательные поля и производные размеры
	event, err := uc.parser.Extract(payload)
	if err != nil {
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			uc.logger.Debug("Rejected event without required field", "field", verr.Field)
		} else {
			uc.logger.Debug("Rejected event", "error", err.Error())
		}
		return OutcomeRejectedValidation
	}

	// 3. Классификация и агрегация
	uc.aggregator.Apply(event)

	// 4. Метка активности; сбой хранилища не влияет на результат
	uc.tracker.Touch(ctx, event.DeploymentID)

	// 5. Маршрутизация исходного документа
	record := port.EmitRecord{Message: event.Payload}
	err = uc.emitter.Emit(ctx, uc.tag, uc.clock.Now(), record)
	uc.telemetry.EmitObserved(err)
	if err != nil {
		uc.logger.Warn("Failed to emit event", "deployment_id", event.DeploymentID, "error", err.Error())
	}

	uc.logger.Debug("Event processed",
		"deployment_id", event.DeploymentID,
		"api", event.APIName,
		"category", event.Category().String(),
		"request_length", event.RequestContentLength,
		"response_length", event.ResponseContentLength,
		"cached", event.ResponseCached,
	)

	return OutcomeProcessed
}
