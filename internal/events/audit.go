// Crumb - Budget Bundle Recommendation and Customer Ledger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crumb

package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/crumb/internal/metrics"
)

// defaultRecentLimit bounds the audit ring buffer.
const defaultRecentLimit = 100

// Record is one consumed event as kept by the audit consumer.
type Record struct {
	Topic         string          `json:"topic"`
	MessageID     string          `json:"message_id"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	ReceivedAt    time.Time       `json:"received_at"`
	Payload       json.RawMessage `json:"payload"`
}

// AuditConsumer subscribes to ledger topics, writes one structured log line
// per event and keeps the most recent events in memory.
//
// It is a suture service: Serve builds a fresh Watermill router per run so
// the supervisor can restart it.
type AuditConsumer struct {
	subscriber message.Subscriber
	topics     []string
	wmLogger   watermill.LoggerAdapter
	logger     zerolog.Logger
	limit      int

	readyOnce sync.Once
	ready     chan struct{}

	mu     sync.Mutex
	counts map[string]int64
	recent []Record
}

// NewAuditConsumer creates a consumer for topics on sub.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewAuditConsumer(sub message.Subscriber, topics []string, wmLogger watermill.LoggerAdapter, logger zerolog.Logger) (*AuditConsumer, error) {
	if sub == nil {
		return nil, fmt.Errorf("audit consumer needs a subscriber")
	}
	if len(topics) == 0 {
		return nil, fmt.Errorf("audit consumer needs at least one topic")
	}
	if wmLogger == nil {
		wmLogger = watermill.NopLogger{}
	}
	return &AuditConsumer{
		subscriber: sub,
		topics:     topics,
		wmLogger:   wmLogger,
		logger:     logger.With().Str("component", "audit").Logger(),
		limit:      defaultRecentLimit,
		ready:      make(chan struct{}),
		counts:     make(map[string]int64),
	}, nil
}

func (c *AuditConsumer) newRouter() (*message.Router, error) {
	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: 10 * time.Second}, c.wmLogger)
	if err != nil {
		return nil, fmt.Errorf("create watermill router: %w", err)
	}

	router.AddMiddleware(middleware.Recoverer)
	retry := middleware.Retry{
		MaxRetries:      3,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		Multiplier:      2,
		Logger:          c.wmLogger,
	}
	router.AddMiddleware(retry.Middleware)

	for _, topic := range c.topics {
		router.AddConsumerHandler("audit."+topic, topic, c.subscriber, c.handle)
	}
	return router, nil
}

// Serve runs the consumer until ctx is canceled.
func (c *AuditConsumer) Serve(ctx context.Context) error {
	router, err := c.newRouter()
	if err != nil {
		return err
	}

	go func() {
		select {
		case <-router.Running():
			c.readyOnce.Do(func() { close(c.ready) })
		case <-ctx.Done():
		}
	}()

	c.logger.Info().Strs("topics", c.topics).Msg("Audit consumer starting")
	if err := router.Run(ctx); err != nil {
		return fmt.Errorf("audit router: %w", err)
	}
	return nil
}

// String names the service in supervisor logs.
func (c *AuditConsumer) String() string {
	return "event-audit"
}

// Ready is closed once the first router is subscribed to every topic.
func (c *AuditConsumer) Ready() <-chan struct{} {
	return c.ready
}

func (c *AuditConsumer) handle(msg *message.Message) error {
	topic := msg.Metadata.Get(MetaTopic)
	if topic == "" {
		topic = message.SubscribeTopicFromCtx(msg.Context())
	}

	// A malformed payload would fail every retry; record it and move on.
	if !json.Valid(msg.Payload) {
		c.logger.Warn().Str("topic", topic).Str("message_id", msg.UUID).Msg("Dropping event with invalid JSON payload")
		return nil
	}

	record := Record{
		Topic:         topic,
		MessageID:     msg.UUID,
		CorrelationID: msg.Metadata.Get(MetaCorrelationID),
		ReceivedAt:    time.Now().UTC(),
		Payload:       append(json.RawMessage(nil), msg.Payload...),
	}

	c.mu.Lock()
	c.counts[topic]++
	c.recent = append(c.recent, record)
	if len(c.recent) > c.limit {
		c.recent = c.recent[len(c.recent)-c.limit:]
	}
	c.mu.Unlock()

	metrics.RecordEventConsumed(topic)
	c.logger.Info().
		Str("topic", topic).
		Str("message_id", msg.UUID).
		Str("correlation_id", record.CorrelationID).
		Str("request_id", msg.Metadata.Get(MetaRequestID)).
		Int("bytes", len(msg.Payload)).
		Msg("Ledger event")
	return nil
}

// SetRecentLimit changes how many events Recent retains. n < 1 is ignored.
func (c *AuditConsumer) SetRecentLimit(n int) {
	if n < 1 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.limit = n
	if len(c.recent) > n {
		c.recent = append([]Record(nil), c.recent[len(c.recent)-n:]...)
	}
}

// Counts returns the number of events consumed per topic.
func (c *AuditConsumer) Counts() map[string]int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]int64, len(c.counts))
	for k, v := range c.counts {
		out[k] = v
	}
	return out
}

// Recent returns the retained events, newest last.
func (c *AuditConsumer) Recent() []Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Record(nil), c.recent...)
}
