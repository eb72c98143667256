package nats

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/dreschagin/monitoring-dashboard/traffic-ingest/internal/application/port"
	"github.com/dreschagin/monitoring-dashboard/traffic-ingest/internal/infrastructure/messaging"
	"github.com/dreschagin/monitoring-dashboard/traffic-ingest/pkg/logger"
)

// Config holds NATS sink settings
type Config struct {
	URL           string
	SubjectPrefix string
	JetStream     bool
}

// Publisher implements port.EventEmitter over NATS core or JetStream
type Publisher struct {
	nc            *nats.Conn
	js            nats.JetStreamContext
	subjectPrefix string
	logger        *logger.Logger
}

// NewPublisher connects to NATS
func NewPublisher(cfg Config, log *logger.Logger) (*Publisher, error) {
	// Connect to NATS with retry
	nc, err := nats.Connect(cfg.URL,
		nats.Name("traffic-ingest"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				log.Warn("NATS disconnected", "error", err.Error())
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	p := &Publisher{
		nc:            nc,
		subjectPrefix: strings.Trim(cfg.SubjectPrefix, "."),
		logger:        log,
	}

	if cfg.JetStream {
		js, err := nc.JetStream()
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("failed to get JetStream context: %w", err)
		}
		p.js = js
	}

	log.Info("Connected to NATS", "url", cfg.URL, "jetstream", cfg.JetStream)

	return p, nil
}

// Subject returns the subject a tag is published on
func (p *Publisher) Subject(tag string) string {
	return Subject(p.subjectPrefix, tag)
}

// Subject joins prefix and tag; slashes in the tag become tokens.
func Subject(prefix, tag string) string {
	tag = strings.ReplaceAll(strings.Trim(tag, "/"), "/", ".")
	if prefix == "" {
		return tag
	}
	return prefix + "." + tag
}

// Emit publishes the record envelope (async on JetStream)
func (p *Publisher) Emit(_ context.Context, tag string, at time.Time, record port.EmitRecord) error {
	data, err := messaging.NewEnvelope(tag, at, record).Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	subject := p.Subject(tag)

	if p.js != nil {
		// fire-and-forget, acks are not awaited
		_, err = p.js.PublishAsync(subject, data)
	} else {
		err = p.nc.Publish(subject, data)
	}
	if err != nil {
		p.logger.Error("Failed to publish event", err, "subject", subject)
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Debug("Event published",
		"subject", subject,
		"size", len(data),
	)

	return nil
}

// Close drains pending async publishes and closes the connection
func (p *Publisher) Close() error {
	if p.nc == nil {
		return nil
	}
	p.logger.Info("Closing NATS connection")
	if p.js != nil {
		select {
		case <-p.js.PublishAsyncComplete():
		case <-time.After(5 * time.Second):
			p.logger.Warn("Timed out waiting for JetStream acks", "pending", p.js.PublishAsyncPending())
		}
	}
	if err := p.nc.Drain(); err != nil {
		p.nc.Close()
		return fmt.Errorf("failed to drain NATS connection: %w", err)
	}
	return nil
}
