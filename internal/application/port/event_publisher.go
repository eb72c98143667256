package port

import (
	"context"
	"time"
)

// EmitRecord is the record routed downstream for every accepted event.
type EmitRecord struct {
	Message map[string]interface{} `json:"message"`
}

// EventEmitter defines the downstream routing capability for accepted events
type EventEmitter interface {
	// Emit routes a record under the given tag, stamped with the processing time
	Emit(ctx context.Context, tag string, at time.Time, record EmitRecord) error

	// Close releases the sink and flushes buffered records
	Close() error
}
