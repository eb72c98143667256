package redis

import (
	"context"
	"time"

	"github.com/coder/retry"

	"github.com/dreschagin/monitoring-dashboard/traffic-ingest/pkg/logger"
)

// Pinger is the liveness probe used while waiting for the store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// WaitForStore blocks until a ping succeeds, retrying with a fixed backoff.
// It only gives up when ctx is done.
func WaitForStore(ctx context.Context, store Pinger, backoff, probeTimeout time.Duration, log *logger.Logger) error {
	attempt := 0
	for r := retry.New(backoff, backoff); r.Wait(ctx); {
		attempt++

		probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
		err := store.Ping(probeCtx)
		cancel()
		if err == nil {
			log.Info("Connected to Redis", "attempts", attempt)
			return nil
		}

		log.Warn("Redis not reachable, retrying",
			"attempt", attempt,
			"backoff", backoff.String(),
			"error", err.Error(),
		)
	}
	return ctx.Err()
}
