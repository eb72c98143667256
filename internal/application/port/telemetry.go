package port

import "time"

// Ingest outcomes reported to Telemetry
const (
	OutcomeProcessed          = "processed"
	OutcomeRejectedParse      = "rejected_parse"
	OutcomeRejectedValidation = "rejected_validation"
)

// Telemetry receives pipeline observations. Implementations must be safe for concurrent use.
type Telemetry interface {
	IngestObserved(outcome string)
	LastActionObserved(updated bool, err error)
	EmitObserved(err error)
	FlushObserved(deployments, writes int, duration time.Duration, err error)
}

// NopTelemetry discards all observations.
type NopTelemetry struct{}

func (NopTelemetry) IngestObserved(string)                        {}
func (NopTelemetry) LastActionObserved(bool, error)               {}
func (NopTelemetry) EmitObserved(error)                           {}
func (NopTelemetry) FlushObserved(int, int, time.Duration, error) {}
