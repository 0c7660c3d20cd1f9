// Crumb - Budget Bundle Recommendation and Customer Ledger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crumb

//go:build integration

package events

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/tomtom215/crumb/internal/ledger"
	"github.com/tomtom215/crumb/internal/testinfra"
)

func TestNATSContainer_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	testinfra.SkipIfNoDocker(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	nats, err := testinfra.NewNATSContainer(ctx)
	if err != nil {
		t.Fatalf("Failed to create NATS container: %v", err)
	}
	defer testinfra.CleanupContainer(t, ctx, nats.Container)

	cfg := DefaultConfig()
	cfg.Backend = BackendNATS
	cfg.NATSURL = nats.URL

	bus, err := NewBus(cfg, watermill.NopLogger{})
	if err != nil {
		t.Fatalf("NewBus() error = %v", err)
	}
	defer bus.Close()

	consumer := startAudit(t, bus)

	visit := ledger.Visit{ID: "v1", CustomerID: "c1"}
	waitFor(t, 30*time.Second, func() bool {
		if err := bus.Notify(ctx, ledger.TopicVisitLogged, visit); err != nil {
			t.Fatalf("Notify() error = %v", err)
		}
		time.Sleep(50 * time.Millisecond)
		return consumer.Counts()[ledger.TopicVisitLogged] > 0
	})
}
