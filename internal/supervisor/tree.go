// Crumb - Budget Bundle Recommendation and Customer Ledger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crumb

package supervisor

import (
	"cmp"
	"context"
	"log/slog"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"
)

// Supervisor names as they appear in suture log events.
const (
	RootName       = "crumb"
	LedgerLayer    = "ledger-layer"
	MessagingLayer = "messaging-layer"
	APILayer       = "api-layer"
)

// TreeConfig tunes restart backoff and shutdown for every supervisor in the
// tree. Zero fields take the DefaultTreeConfig value.
type TreeConfig struct {
	// FailureThreshold failures, decaying at FailureDecay seconds each, put a
	// supervisor into backoff for FailureBackoff.
	FailureThreshold float64
	FailureDecay     float64
	FailureBackoff   time.Duration

	// ShutdownTimeout bounds how long each service gets to return from Serve.
	ShutdownTimeout time.Duration
}

// DefaultTreeConfig mirrors suture's own defaults.
func DefaultTreeConfig() TreeConfig {
	return TreeConfig{
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

func (c TreeConfig) spec() suture.Spec {
	return suture.Spec{
		FailureThreshold: c.FailureThreshold,
		FailureDecay:     c.FailureDecay,
		FailureBackoff:   c.FailureBackoff,
		Timeout:          c.ShutdownTimeout,
	}
}

// SupervisorTree is a root supervisor over three independent layers. A
// service that keeps failing only backs off its own layer.
//
//	crumb
//	├── ledger-layer     storage maintenance
//	├── messaging-layer  event consumers
//	└── api-layer        HTTP server
type SupervisorTree struct {
	root      *suture.Supervisor
	ledger    *suture.Supervisor
	messaging *suture.Supervisor
	api       *suture.Supervisor
	config    TreeConfig
}

// NewSupervisorTree builds the tree and routes suture events to logger.
func NewSupervisorTree(logger *slog.Logger, config TreeConfig) (*SupervisorTree, error) {
	d := DefaultTreeConfig()
	config.FailureThreshold = cmp.Or(config.FailureThreshold, d.FailureThreshold)
	config.FailureDecay = cmp.Or(config.FailureDecay, d.FailureDecay)
	config.FailureBackoff = cmp.Or(config.FailureBackoff, d.FailureBackoff)
	config.ShutdownTimeout = cmp.Or(config.ShutdownTimeout, d.ShutdownTimeout)

	layerSpec := config.spec()
	rootSpec := layerSpec
	hooks := &sutureslog.Handler{Logger: logger}
	rootSpec.EventHook = hooks.MustHook()

	t := &SupervisorTree{
		root:   suture.New(RootName, rootSpec),
		config: config,
	}
	// Layers pick up the root's EventHook when added.
	for _, layer := range []struct {
		dst  **suture.Supervisor
		name string
	}{
		{&t.ledger, LedgerLayer},
		{&t.messaging, MessagingLayer},
		{&t.api, APILayer},
	} {
		*layer.dst = suture.New(layer.name, layerSpec)
		t.root.Add(*layer.dst)
	}
	return t, nil
}

func (t *SupervisorTree) Root() *suture.Supervisor { return t.root }

// Config returns the configuration with defaults filled in.
func (t *SupervisorTree) Config() TreeConfig { return t.config }

// AddLedgerService supervises a storage maintenance service such as GC.
func (t *SupervisorTree) AddLedgerService(svc suture.Service) suture.ServiceToken {
	return t.ledger.Add(svc)
}

// AddMessagingService supervises an event consumer.
func (t *SupervisorTree) AddMessagingService(svc suture.Service) suture.ServiceToken {
	return t.messaging.Add(svc)
}

func (t *SupervisorTree) RemoveMessagingService(token suture.ServiceToken) error {
	return t.messaging.Remove(token)
}

// AddAPIService supervises an HTTP listener.
func (t *SupervisorTree) AddAPIService(svc suture.Service) suture.ServiceToken {
	return t.api.Add(svc)
}

// Serve blocks until ctx is cancelled and every layer has stopped.
func (t *SupervisorTree) Serve(ctx context.Context) error {
	return t.root.Serve(ctx)
}

// ServeBackground runs the tree in a goroutine. The returned channel receives
// one value when the root stops and is never closed.
func (t *SupervisorTree) ServeBackground(ctx context.Context) <-chan error {
	return t.root.ServeBackground(ctx)
}

// UnstoppedServiceReport lists services still running after ShutdownTimeout.
func (t *SupervisorTree) UnstoppedServiceReport() ([]suture.UnstoppedService, error) {
	return t.root.UnstoppedServiceReport()
}
