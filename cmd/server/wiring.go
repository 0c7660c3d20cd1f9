// Crumb - Budget Bundle Recommendation and Customer Ledger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crumb

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/tomtom215/crumb/internal/api"
	"github.com/tomtom215/crumb/internal/catalog"
	"github.com/tomtom215/crumb/internal/config"
	"github.com/tomtom215/crumb/internal/events"
	"github.com/tomtom215/crumb/internal/identity"
	"github.com/tomtom215/crumb/internal/ledger"
	"github.com/tomtom215/crumb/internal/ledger/badgerstore"
	"github.com/tomtom215/crumb/internal/ledger/sqlitestore"
	"github.com/tomtom215/crumb/internal/logging"
	"github.com/tomtom215/crumb/internal/recommend"
	"github.com/tomtom215/crumb/internal/supervisor/services"
)

// Version is set at build time with -ldflags "-X main.Version=...".
var Version = "dev"

// application holds the wired components between startup and shutdown.
type application struct {
	cfg     *config.Config
	store   ledger.Store
	gc      services.GarbageCollector
	nats    *events.EmbeddedServer
	bus     *events.Bus
	audit   *events.AuditConsumer
	handler http.Handler
}

// buildApplication wires every component from cfg. On error, anything already
// opened is closed before returning.
func buildApplication(cfg *config.Config) (app *application, err error) {
	app = &application{cfg: cfg}
	defer func() {
		if err != nil {
			if cerr := app.Close(); cerr != nil {
				logging.Warn().Err(cerr).Msg("Cleanup after failed startup")
			}
			app = nil
		}
	}()

	cache := catalog.NewCache(nil, logging.WithComponent("catalog"))
	source := cache.Source(cfg.Catalog.Path)
	// The cache logs the load; this only surfaces a bad file before serving.
	if _, err := source.View(); err != nil {
		return app, fmt.Errorf("load catalog %s: %w", cfg.Catalog.Path, err)
	}

	app.store, app.gc, err = openStore(cfg.Ledger)
	if err != nil {
		return app, err
	}

	busCfg := eventsConfig(cfg.Events)
	if cfg.Events.EmbeddedNATS {
		app.nats, err = events.StartEmbeddedServer(events.EmbeddedServerConfig{
			Host: cfg.Events.EmbeddedHost,
			Port: cfg.Events.EmbeddedPort,
		}, logging.WithComponent("events"))
		if err != nil {
			return app, fmt.Errorf("start embedded NATS: %w", err)
		}
		busCfg.NATSURL = app.nats.ClientURL()
		logging.Info().Str("url", busCfg.NATSURL).Msg("Embedded NATS server started")
	}

	app.bus, err = events.NewBus(busCfg,
		watermill.NewSlogLogger(logging.NewComponentSlogLogger("events")))
	if err != nil {
		return app, fmt.Errorf("create event bus: %w", err)
	}

	led, err := ledger.New(app.store, ledgerConfig(cfg), logging.WithComponent("ledger"),
		ledger.WithNotifier(app.bus))
	if err != nil {
		return app, fmt.Errorf("create ledger: %w", err)
	}

	hasher, err := identity.NewHasher(cfg.Identity.Salt)
	if err != nil {
		return app, fmt.Errorf("create contact hasher: %w", err)
	}
	resolver, err := identity.NewResolver(app.store, hasher, logging.WithComponent("identity"),
		identity.WithNotifier(app.bus),
		identity.WithAttempts(cfg.Ledger.RetryAttempts))
	if err != nil {
		return app, fmt.Errorf("create identity resolver: %w", err)
	}

	engine, err := recommend.NewEngine(recommendConfig(cfg.Recommend), source, led,
		logging.WithComponent("recommend"))
	if err != nil {
		return app, fmt.Errorf("create recommendation engine: %w", err)
	}

	handler, err := api.NewHandler(api.Deps{
		Catalog:        source,
		Recommender:    engine,
		Resolver:       resolver,
		Ledger:         led,
		Events:         app.bus,
		Version:        Version,
		RequestTimeout: cfg.Server.Timeout,
	})
	if err != nil {
		return app, fmt.Errorf("create api handler: %w", err)
	}
	app.handler = api.NewRouter(handler, middlewareConfig(cfg.Security)).Handler()

	if cfg.Events.AuditEnabled {
		app.audit, err = events.NewAuditConsumer(app.bus.Subscriber(), ledger.Topics(),
			watermill.NewSlogLogger(logging.NewComponentSlogLogger("event-audit")),
			logging.WithComponent("event-audit"))
		if err != nil {
			return app, fmt.Errorf("create event audit consumer: %w", err)
		}
		app.audit.SetRecentLimit(cfg.Events.AuditRecent)
	}

	return app, nil
}

// Close releases the event bus, the embedded NATS server and the ledger
// store, in that order, so no event handler observes a closed store.
func (a *application) Close() error {
	var errs []error
	if a.bus != nil {
		if err := a.bus.Close(); err != nil && !errors.Is(err, events.ErrClosed) {
			errs = append(errs, fmt.Errorf("close event bus: %w", err))
		}
	}
	if a.nats != nil {
		ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		err := a.nats.Shutdown(ctx)
		cancel()
		if err != nil {
			errs = append(errs, fmt.Errorf("stop embedded NATS: %w", err))
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil && !errors.Is(err, ledger.ErrClosed) {
			errs = append(errs, fmt.Errorf("close ledger store: %w", err))
		}
	}
	return errors.Join(errs...)
}

// openStore opens the configured ledger backend. gc is nil unless the backend
// needs periodic value log collection.
func openStore(cfg config.LedgerConfig) (ledger.Store, services.GarbageCollector, error) {
	switch cfg.Backend {
	case "sqlite":
		store, err := sqlitestore.Open(cfg.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite ledger %s: %w", cfg.Path, err)
		}
		return store, nil, nil
	case "badger", "":
		store, err := badgerstore.Open(badgerstore.Options{
			Path:       cfg.Path,
			SyncWrites: cfg.SyncWrites,
			GCRatio:    cfg.GCRatio,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("open badger ledger %s: %w", cfg.Path, err)
		}
		return store, store, nil
	default:
		return nil, nil, fmt.Errorf("unknown ledger backend %q", cfg.Backend)
	}
}

func ledgerConfig(cfg *config.Config) ledger.Config {
	return ledger.Config{
		OrderPrefix:        cfg.Order.Prefix,
		CouponPrefix:       cfg.Coupon.Prefix,
		CouponTTL:          cfg.Coupon.TTL,
		WelcomeDescription: cfg.Coupon.WelcomeDescription,
		WelcomeUsageLimit:  cfg.Coupon.WelcomeUsageLimit,
		RetryAttempts:      cfg.Ledger.RetryAttempts,
	}
}

func recommendConfig(cfg config.RecommendConfig) *recommend.Config {
	return &recommend.Config{
		Weights: recommend.ScoreWeights{
			TagMatch:        cfg.TagWeight,
			SweetnessWindow: cfg.SweetnessWindow,
			PopularBonus:    cfg.PopularBonus,
		},
		PopularTag:       cfg.PopularTag,
		CandidateCap:     cfg.CandidateCap,
		MinBundleSize:    cfg.MinBundleSize,
		MaxBundleSize:    cfg.MaxBundleSize,
		TopK:             cfg.TopK,
		DrinkTopK:        cfg.DrinkTopK,
		BakeryCategories: cfg.BakeryCategories,
		DrinkCategories:  cfg.DrinkCategories,
	}
}

func eventsConfig(cfg config.EventsConfig) events.Config {
	return events.Config{
		Backend:         cfg.Backend,
		BufferSize:      cfg.BufferSize,
		NATSURL:         cfg.NATSURL,
		QueueGroup:      cfg.QueueGroup,
		MaxReconnects:   cfg.MaxReconnects,
		ReconnectWait:   cfg.ReconnectWait,
		BreakerFailures: cfg.BreakerFailures,
		BreakerTimeout:  cfg.BreakerTimeout,
	}
}

func middlewareConfig(cfg config.SecurityConfig) *api.ChiMiddlewareConfig {
	mw := api.DefaultChiMiddlewareConfig()
	mw.CORSAllowedOrigins = cfg.CORSOrigins
	if cfg.CORSMaxAgeSeconds > 0 {
		mw.CORSMaxAge = cfg.CORSMaxAgeSeconds
	}
	mw.RateLimitRequests = cfg.RateLimitReqs
	mw.WriteLimitRequests = cfg.WriteLimitReqs
	mw.RateLimitWindow = cfg.RateLimitWindow
	mw.RateLimitDisabled = cfg.RateLimitDisabled
	return mw
}
