// Crumb - Budget Bundle Recommendation and Customer Ledger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crumb

package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/crumb/internal/ledger"
	"github.com/tomtom215/crumb/internal/logging"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func startAudit(t *testing.T, bus *Bus) *AuditConsumer {
	t.Helper()

	consumer, err := NewAuditConsumer(bus.Subscriber(), ledger.Topics(), watermill.NopLogger{}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewAuditConsumer() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- consumer.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	select {
	case <-consumer.Ready():
	case <-time.After(5 * time.Second):
		t.Fatal("audit consumer did not start")
	}
	return consumer
}

func TestNotifyDeliversToAuditConsumer(t *testing.T) {
	bus, err := NewBus(DefaultConfig(), watermill.NopLogger{})
	if err != nil {
		t.Fatalf("NewBus() error = %v", err)
	}
	defer bus.Close()

	consumer := startAudit(t, bus)

	ctx := logging.ContextWithCorrelationID(context.Background(), "corr1234")
	ctx = logging.ContextWithRequestID(ctx, "req-1")
	order := ledger.Order{ID: "o1", CustomerID: "c1", Code: "CRB-20260314-0001", Total: 5500}
	if err := bus.Notify(ctx, ledger.TopicOrderPlaced, order); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	if err := bus.Notify(context.Background(), ledger.TopicVisitLogged, ledger.Visit{ID: "v1"}); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}

	waitFor(t, 5*time.Second, func() bool {
		c := consumer.Counts()
		return c[ledger.TopicOrderPlaced] == 1 && c[ledger.TopicVisitLogged] == 1
	})

	var found *Record
	for _, r := range consumer.Recent() {
		if r.Topic == ledger.TopicOrderPlaced {
			r := r
			found = &r
		}
	}
	if found == nil {
		t.Fatal("order event not retained")
	}
	if found.CorrelationID != "corr1234" {
		t.Errorf("CorrelationID = %q, want corr1234", found.CorrelationID)
	}

	var got ledger.Order
	if err := json.Unmarshal(found.Payload, &got); err != nil {
		t.Fatalf("payload is not an order: %v", err)
	}
	if got.Code != order.Code || got.Total != order.Total {
		t.Errorf("payload = %+v, want %+v", got, order)
	}
	if bus.BreakerState() != "closed" {
		t.Errorf("BreakerState() = %s, want closed", bus.BreakerState())
	}
}

func TestAuditConsumerDropsInvalidPayload(t *testing.T) {
	bus, err := NewBus(DefaultConfig(), watermill.NopLogger{})
	if err != nil {
		t.Fatal(err)
	}
	defer bus.Close()

	consumer := startAudit(t, bus)

	bad := message.NewMessage(watermill.NewUUID(), []byte("{not json"))
	if err := bus.publisher.Publish(ledger.TopicCouponIssued, bad); err != nil {
		t.Fatal(err)
	}
	good := message.NewMessage(watermill.NewUUID(), []byte(`{"code":"LCK-AAAA-BBBB"}`))
	good.Metadata.Set(MetaTopic, ledger.TopicCouponIssued)
	if err := bus.publisher.Publish(ledger.TopicCouponIssued, good); err != nil {
		t.Fatal(err)
	}

	waitFor(t, 5*time.Second, func() bool {
		return consumer.Counts()[ledger.TopicCouponIssued] == 1
	})
	if n := len(consumer.Recent()); n != 1 {
		t.Errorf("retained %d records, want only the valid one", n)
	}
}

func TestAuditRecentIsBounded(t *testing.T) {
	consumer, err := NewAuditConsumer(&failingPublisher{}, []string{"t"}, nil, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	consumer.SetRecentLimit(3)

	for i := 0; i < 5; i++ {
		msg := message.NewMessage(watermill.NewUUID(), []byte(`{}`))
		msg.Metadata.Set(MetaTopic, "t")
		if err := consumer.handle(msg); err != nil {
			t.Fatal(err)
		}
	}
	if n := len(consumer.Recent()); n != 3 {
		t.Errorf("Recent() length = %d, want 3", n)
	}
	if consumer.Counts()["t"] != 5 {
		t.Errorf("Counts()[t] = %d, want 5", consumer.Counts()["t"])
	}
}

// failingPublisher rejects every publish. It doubles as an idle subscriber.
type failingPublisher struct{}

func (failingPublisher) Publish(string, ...*message.Message) error {
	return errors.New("broker unreachable")
}

func (failingPublisher) Subscribe(context.Context, string) (<-chan *message.Message, error) {
	return make(chan *message.Message), nil
}

func (failingPublisher) Close() error { return nil }

func TestBreakerOpensAfterFailures(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BreakerFailures = 2
	cfg.BreakerTimeout = time.Minute
	fp := &failingPublisher{}
	bus := newBus(fp, fp, true, cfg, watermill.NopLogger{})

	for i := 0; i < 2; i++ {
		if err := bus.Notify(context.Background(), "t", map[string]int{"n": i}); err == nil {
			t.Fatal("Notify() succeeded on a failing publisher")
		}
	}

	err := bus.Notify(context.Background(), "t", map[string]int{"n": 3})
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("error = %v, want ErrOpenState", err)
	}
	if bus.BreakerState() != "open" {
		t.Errorf("BreakerState() = %s, want open", bus.BreakerState())
	}
}

func TestNotifyErrors(t *testing.T) {
	bus, err := NewBus(DefaultConfig(), watermill.NopLogger{})
	if err != nil {
		t.Fatal(err)
	}

	if err := bus.Notify(context.Background(), "t", make(chan int)); err == nil {
		t.Error("Notify() accepted an unmarshalable payload")
	}

	if err := bus.Close(); err != nil {
		t.Fatal(err)
	}
	if err := bus.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := bus.Notify(context.Background(), "t", "x"); !errors.Is(err, ErrClosed) {
		t.Errorf("Notify() after close error = %v, want ErrClosed", err)
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"default", func(*Config) {}, false},
		{"nats", func(c *Config) { c.Backend = BackendNATS }, false},
		{"nats without url", func(c *Config) { c.Backend = BackendNATS; c.NATSURL = "" }, true},
		{"unknown backend", func(c *Config) { c.Backend = "kafka" }, true},
		{"zero breaker failures", func(c *Config) { c.BreakerFailures = 0 }, true},
	}
	for _, tt := range tests {
		cfg := DefaultConfig()
		tt.mutate(&cfg)
		if err := cfg.Validate(); (err != nil) != tt.wantErr {
			t.Errorf("%s: Validate() error = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
	}
}

func TestNewAuditConsumerValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewAuditConsumer(nil, []string{"t"}, nil, zerolog.Nop()); err == nil {
		t.Error("accepted nil subscriber")
	}
	if _, err := NewAuditConsumer(&failingPublisher{}, nil, nil, zerolog.Nop()); err == nil {
		t.Error("accepted no topics")
	}
}
