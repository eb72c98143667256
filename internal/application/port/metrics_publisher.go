package port

import (
	"context"
	"time"

	"github.com/dreschagin/monitoring-dashboard/traffic-ingest/internal/domain/entity"
)

// SnapshotPublisher mirrors flushed traffic counters to an external observability platform.
// It is called after the store write and never affects flush outcome.
type SnapshotPublisher interface {
	// PublishSnapshot publishes the drained counters collected at the given time.
	PublishSnapshot(ctx context.Context, at time.Time, snapshot entity.MetricsSnapshot) error

	// Flush forces immediate publication of any buffered data.
	Flush(ctx context.Context) error
}
