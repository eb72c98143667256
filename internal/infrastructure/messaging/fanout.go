package messaging

import (
	"context"
	"errors"
	"time"

	"github.com/dreschagin/monitoring-dashboard/traffic-ingest/internal/application/port"
)

// FanOut routes every record to all configured sinks.
// A failing sink does not prevent delivery to the others.
type FanOut struct {
	sinks []port.EventEmitter
}

// NewFanOut creates a fan-out emitter over sinks
func NewFanOut(sinks ...port.EventEmitter) *FanOut {
	return &FanOut{sinks: sinks}
}

// Len returns the number of sinks
func (f *FanOut) Len() int {
	return len(f.sinks)
}

// Emit delivers the record to every sink and joins their errors
func (f *FanOut) Emit(ctx context.Context, tag string, at time.Time, record port.EmitRecord) error {
	var errs []error
	for _, s := range f.sinks {
		if err := s.Emit(ctx, tag, at, record); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes all sinks in reverse order
func (f *FanOut) Close() error {
	var errs []error
	for i := len(f.sinks) - 1; i >= 0; i-- {
		if err := f.sinks[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
