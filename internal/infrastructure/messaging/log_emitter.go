package messaging

import (
	"context"
	"fmt"
	"time"

	"github.com/dreschagin/monitoring-dashboard/traffic-ingest/internal/application/port"
	"github.com/dreschagin/monitoring-dashboard/traffic-ingest/pkg/logger"
)

// LogEmitter writes routed records to the service log.
type LogEmitter struct {
	logger *logger.Logger
}

// NewLogEmitter creates a log sink
func NewLogEmitter(log *logger.Logger) *LogEmitter {
	return &LogEmitter{logger: log}
}

// Emit logs the record at info level
func (e *LogEmitter) Emit(_ context.Context, tag string, at time.Time, record port.EmitRecord) error {
	data, err := NewEnvelope(tag, at, record).Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	e.logger.Info("Event routed", "tag", tag, "record", string(data))
	return nil
}

// Close is a no-op
func (e *LogEmitter) Close() error {
	return nil
}
