// Crumb - Budget Bundle Recommendation and Customer Ledger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crumb

package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomtom215/crumb/internal/config"
	"github.com/tomtom215/crumb/internal/logging"
	"github.com/tomtom215/crumb/internal/supervisor"
	"github.com/tomtom215/crumb/internal/supervisor/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
		Service:   "crumb",
		Output:    os.Stderr,
	})

	logging.Info().
		Str("version", Version).
		Str("environment", cfg.Server.Environment).
		Msg("Starting Crumb")

	if cfg.ShouldWarnAboutCORS() {
		logging.Warn().Msg("CORS allows every origin; set CORS_ORIGINS before exposing the API")
	}

	app, err := buildApplication(cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize application")
	}

	if err := run(app); err != nil {
		logging.Error().Err(err).Msg("Supervisor tree error")
	}

	if err := app.Close(); err != nil {
		logging.Error().Err(err).Msg("Shutdown error")
	}
	logging.Info().Msg("Application stopped gracefully")
}

// run serves the supervisor tree until SIGINT or SIGTERM.
func run(app *application) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tree, err := buildTree(app)
	if err != nil {
		return err
	}

	logging.Info().Str("addr", app.cfg.Server.Address()).Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	// errCh receives exactly once and is never closed.
	var serveErr error
	select {
	case <-ctx.Done():
		logging.Info().Msg("Received shutdown signal, waiting for supervisor to finish...")
		serveErr = <-errCh
	case serveErr = <-errCh:
	}
	if errors.Is(serveErr, context.Canceled) {
		serveErr = nil
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}
	return serveErr
}

// buildTree places the application's long-running services under supervision.
func buildTree(app *application) (*supervisor.SupervisorTree, error) {
	cfg := app.cfg
	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		return nil, err
	}

	if app.gc != nil && cfg.Ledger.GCInterval > 0 {
		gcService, err := services.NewLedgerGCService(app.gc, cfg.Ledger.GCInterval, logging.Logger())
		if err != nil {
			return nil, err
		}
		tree.AddLedgerService(gcService)
		logging.Info().Dur("interval", cfg.Ledger.GCInterval).Msg("Ledger GC service added")
	}

	if app.audit != nil {
		tree.AddMessagingService(app.audit)
		logging.Info().Msg("Event audit consumer added")
	}

	server := services.NewHTTPServer(cfg.Server.Address(), app.handler, cfg.Server.Timeout)
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	return tree, nil
}
