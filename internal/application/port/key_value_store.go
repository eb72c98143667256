package port

import (
	"context"
	"fmt"
)

// Increment is a single counter increment in a pipelined batch.
type Increment struct {
	Key    string
	Amount int64
}

// KeyValueStore defines the external store used for last-action timestamps
// and persisted traffic counters.
type KeyValueStore interface {
	// Get returns the stored value. found is false when the key does not exist.
	Get(ctx context.Context, key string) (value string, found bool, err error)

	// Set stores a value without expiration.
	Set(ctx context.Context, key, value string) error

	// IncrBy atomically increments an integer counter.
	IncrBy(ctx context.Context, key string, amount int64) error

	// IncrByBatch applies all increments in one round-trip where supported.
	IncrByBatch(ctx context.Context, increments []Increment) error

	// Ping checks that the store is reachable.
	Ping(ctx context.Context) error

	// Close closes the store connection
	Close() error
}

// StoreError wraps a failed store operation.
type StoreError struct {
	Op  string
	Key string
	Err error
}

func (e *StoreError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("store %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("store %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
