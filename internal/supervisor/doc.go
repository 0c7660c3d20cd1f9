// Crumb - Budget Bundle Recommendation and Customer Ledger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crumb

/*
Package supervisor provides process supervision for Crumb using suture v4.

Long-running services are grouped into three child supervisors so a failing
consumer cannot take the HTTP listener down with it:

	RootSupervisor ("crumb")
	├── LedgerSupervisor ("ledger-layer")
	│   └── LedgerGCService (badger backend only)
	├── MessagingSupervisor ("messaging-layer")
	│   └── events.AuditConsumer (if EVENTS_AUDIT_ENABLED)
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

Supervisor events (restarts, backoff, stop timeouts) are logged through
sutureslog into the zerolog-backed slog handler from the logging package.

# Usage

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
	    ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
	    return err
	}
*/
package supervisor
