// Crumb - Budget Bundle Recommendation and Customer Ledger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crumb

// Package events publishes ledger domain events over Watermill.
//
// The default backend is an in-process gochannel pub/sub. Setting the backend
// to "nats" publishes to an external NATS server instead, so other services
// can follow customer activity. Publishing goes through a circuit breaker so
// a dead broker does not slow every checkout down to the publish timeout.
package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	natsgo "github.com/nats-io/nats.go"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/crumb/internal/logging"
	"github.com/tomtom215/crumb/internal/metrics"
)

// Backend names.
const (
	BackendGoChannel = "gochannel"
	BackendNATS      = "nats"
)

// Metadata keys set on every message.
const (
	MetaTopic         = "topic"
	MetaCorrelationID = "correlation_id"
	MetaRequestID     = "request_id"
	MetaPublishedAt   = "published_at"
)

// ErrClosed is returned by Notify after Close.
var ErrClosed = errors.New("event bus is closed")

// Config configures the event bus.
type Config struct {
	Backend string

	// BufferSize is the gochannel output buffer per subscriber.
	BufferSize int64

	NATSURL       string
	QueueGroup    string
	MaxReconnects int
	ReconnectWait time.Duration

	// BreakerFailures consecutive publish failures open the breaker for BreakerTimeout.
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

// DefaultConfig returns an in-process configuration.
func DefaultConfig() Config {
	return Config{
		Backend:         BackendGoChannel,
		BufferSize:      256,
		NATSURL:         natsgo.DefaultURL,
		QueueGroup:      "crumb",
		MaxReconnects:   -1,
		ReconnectWait:   2 * time.Second,
		BreakerFailures: 5,
		BreakerTimeout:  30 * time.Second,
	}
}

// Validate checks the configuration for errors.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendGoChannel:
	case BackendNATS:
		if c.NATSURL == "" {
			return errors.New("nats url is required for the nats backend")
		}
	default:
		return fmt.Errorf("unknown event backend %q", c.Backend)
	}
	if c.BreakerFailures == 0 {
		return errors.New("breaker failures must be positive")
	}
	return nil
}

// Bus publishes domain events and hands out the matching subscriber.
// It implements ledger.Notifier.
type Bus struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	shared     bool
	breaker    *gobreaker.CircuitBreaker[any]
	logger     watermill.LoggerAdapter

	mu     sync.RWMutex
	closed bool
}

// NewBus creates the bus for cfg.Backend.
func NewBus(cfg Config, logger watermill.LoggerAdapter) (*Bus, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid events config: %w", err)
	}
	if logger == nil {
		logger = watermill.NewSlogLogger(logging.NewComponentSlogLogger("events"))
	}

	if cfg.Backend == BackendNATS {
		pub, sub, err := newNATS(cfg, logger)
		if err != nil {
			return nil, err
		}
		return newBus(pub, sub, false, cfg, logger), nil
	}

	pubsub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: cfg.BufferSize,
	}, logger)
	return newBus(pubsub, pubsub, true, cfg, logger), nil
}

// newBus wires a bus. shared means pub and sub are one object closed once.
func newBus(pub message.Publisher, sub message.Subscriber, shared bool, cfg Config, logger watermill.LoggerAdapter) *Bus {
	return &Bus{
		publisher:  pub,
		subscriber: sub,
		shared:     shared,
		breaker:    newBreaker(cfg, logger),
		logger:     logger,
	}
}

func newBreaker(cfg Config, logger watermill.LoggerAdapter) *gobreaker.CircuitBreaker[any] {
	return gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "event-publish",
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("Circuit breaker state changed", watermill.LogFields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			})
		},
	})
}

func newNATS(cfg Config, logger watermill.LoggerAdapter) (message.Publisher, message.Subscriber, error) {
	natsOpts := []natsgo.Option{
		natsgo.Name("crumb"),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{"url": nc.ConnectedUrl()})
		}),
	}

	// Core NATS: ledger events are notifications, replay is not needed.
	jsConfig := wmNats.JetStreamConfig{Disabled: true}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         cfg.NATSURL,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream:   jsConfig,
	}, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("create NATS publisher: %w", err)
	}

	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              cfg.NATSURL,
		QueueGroupPrefix: cfg.QueueGroup,
		SubscribersCount: 1,
		CloseTimeout:     10 * time.Second,
		AckWaitTimeout:   30 * time.Second,
		NatsOptions:      natsOpts,
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream:        jsConfig,
	}, logger)
	if err != nil {
		_ = pub.Close()
		return nil, nil, fmt.Errorf("create NATS subscriber: %w", err)
	}
	return pub, sub, nil
}

// Notify publishes payload as JSON on topic. Request and correlation ids from
// ctx travel as message metadata.
func (b *Bus) Notify(ctx context.Context, topic string, payload any) error {
	b.mu.RLock()
	closed := b.closed
	b.mu.RUnlock()
	if closed {
		return ErrClosed
	}

	data, err := json.Marshal(payload)
	if err != nil {
		metrics.RecordEventPublished(topic, err)
		return fmt.Errorf("marshal %s event: %w", topic, err)
	}

	msg := message.NewMessage(watermill.NewUUID(), data)
	msg.Metadata.Set(MetaTopic, topic)
	msg.Metadata.Set(MetaPublishedAt, time.Now().UTC().Format(time.RFC3339Nano))
	if id := logging.CorrelationIDFromContext(ctx); id != "" {
		msg.Metadata.Set(MetaCorrelationID, id)
	}
	if id := logging.RequestIDFromContext(ctx); id != "" {
		msg.Metadata.Set(MetaRequestID, id)
	}

	_, err = b.breaker.Execute(func() (any, error) {
		return nil, b.publisher.Publish(topic, msg)
	})
	metrics.RecordEventPublished(topic, err)
	if err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Subscriber returns the subscriber paired with the publisher.
func (b *Bus) Subscriber() message.Subscriber {
	return b.subscriber
}

// BreakerState reports the publish circuit breaker state.
func (b *Bus) BreakerState() string {
	return b.breaker.State().String()
}

// Close closes the publisher and subscriber. It is safe to call more than once.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true

	err := b.publisher.Close()
	if !b.shared {
		err = errors.Join(err, b.subscriber.Close())
	}
	return err
}
