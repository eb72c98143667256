package messaging

import (
	"encoding/json"
	"time"

	"github.com/dreschagin/monitoring-dashboard/traffic-ingest/internal/application/port"
)

// Envelope is the wire form of a routed record shared by the byte-oriented sinks.
type Envelope struct {
	Tag    string          `json:"tag"`
	Time   float64         `json:"time"`
	Record port.EmitRecord `json:"record"`
}

// NewEnvelope stamps the record with the processing time in fractional Unix seconds.
func NewEnvelope(tag string, at time.Time, record port.EmitRecord) Envelope {
	return Envelope{
		Tag:    tag,
		Time:   float64(at.Unix()) + float64(at.Nanosecond())/float64(time.Second),
		Record: record,
	}
}

// Marshal encodes the envelope as JSON
func (e Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}
