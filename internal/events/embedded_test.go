// Crumb - Budget Bundle Recommendation and Customer Ledger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crumb

package events

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"

	"github.com/tomtom215/crumb/internal/ledger"
)

func startEmbedded(t *testing.T) *EmbeddedServer {
	t.Helper()

	srv, err := StartEmbeddedServer(EmbeddedServerConfig{Host: "127.0.0.1", Port: -1}, zerolog.Nop())
	if err != nil {
		t.Fatalf("StartEmbeddedServer() error = %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return srv
}

func TestEmbeddedServerLifecycle(t *testing.T) {
	srv := startEmbedded(t)

	if !strings.HasPrefix(srv.ClientURL(), "nats://127.0.0.1:") {
		t.Errorf("ClientURL() = %q", srv.ClientURL())
	}
	if !srv.IsRunning() {
		t.Fatal("server should be running after start")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if srv.IsRunning() {
		t.Error("server still running after Shutdown")
	}
}

func TestNATSBackendDeliversToAuditConsumer(t *testing.T) {
	srv := startEmbedded(t)

	cfg := DefaultConfig()
	cfg.Backend = BackendNATS
	cfg.NATSURL = srv.ClientURL()
	cfg.MaxReconnects = 0

	bus, err := NewBus(cfg, watermill.NopLogger{})
	if err != nil {
		t.Fatalf("NewBus() error = %v", err)
	}
	defer bus.Close()

	consumer := startAudit(t, bus)

	// Core NATS drops messages published before the server has seen the
	// subscription, so keep publishing until one arrives.
	coupon := ledger.Coupon{Code: "LCK-AB12-CD34", CustomerID: "c1", Status: ledger.StatusActive}
	waitFor(t, 10*time.Second, func() bool {
		if err := bus.Notify(context.Background(), ledger.TopicCouponIssued, coupon); err != nil {
			t.Fatalf("Notify() error = %v", err)
		}
		time.Sleep(20 * time.Millisecond)
		return consumer.Counts()[ledger.TopicCouponIssued] > 0
	})

	recent := consumer.Recent()
	if len(recent) == 0 || recent[len(recent)-1].Topic != ledger.TopicCouponIssued {
		t.Fatalf("Recent() = %+v, want a coupon event", recent)
	}
}
