package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dreschagin/monitoring-dashboard/traffic-ingest/internal/application/port"
)

// Options holds connection settings for the Redis store.
type Options struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Store implements port.KeyValueStore on top of Redis
type Store struct {
	client redis.UniversalClient
}

// NewClient creates a Redis client without checking connectivity.
// Client-side retries are disabled: a pipeline resent after a dropped
// connection would apply its INCRBYs twice.
func NewClient(opts Options) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     opts.PoolSize,
		DialTimeout:  opts.DialTimeout,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		MaxRetries:   -1,
	})
}

// NewStore wraps an existing client
func NewStore(client redis.UniversalClient) *Store {
	return &Store{client: client}
}

// Get retrieves a string value. found is false on redis.Nil.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, &port.StoreError{Op: "get", Key: key, Err: err}
	}
	return val, true, nil
}

// Set stores a value without TTL
func (s *Store) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, key, value, 0).Err(); err != nil {
		return &port.StoreError{Op: "set", Key: key, Err: err}
	}
	return nil
}

// IncrBy increments a single counter
func (s *Store) IncrBy(ctx context.Context, key string, amount int64) error {
	if err := s.client.IncrBy(ctx, key, amount).Err(); err != nil {
		return &port.StoreError{Op: "incrby", Key: key, Err: err}
	}
	return nil
}

// IncrByBatch sends all increments in one pipeline round-trip.
func (s *Store) IncrByBatch(ctx context.Context, increments []port.Increment) error {
	if len(increments) == 0 {
		return nil
	}

	pipe := s.client.Pipeline()
	for _, inc := range increments {
		pipe.IncrBy(ctx, inc.Key, inc.Amount)
	}

	cmds, err := pipe.Exec(ctx)
	if err != nil {
		// report the first failed key if any command failed on its own
		for _, cmd := range cmds {
			if cmdErr := cmd.Err(); cmdErr != nil {
				return &port.StoreError{Op: "incrby pipeline", Key: fmt.Sprint(cmd.Args()[1]), Err: cmdErr}
			}
		}
		return &port.StoreError{Op: "incrby pipeline", Err: err}
	}

	return nil
}

// Ping checks connectivity
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return &port.StoreError{Op: "ping", Err: err}
	}
	return nil
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}
