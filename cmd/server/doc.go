// Crumb - Budget Bundle Recommendation and Customer Ledger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crumb

/*
Package main is the entry point for the Crumb server.

Crumb recommends bakery bundles that fit a customer's budget and taste,
suggests matching drinks, and keeps a small customer ledger of visits,
orders and welcome coupons keyed by a salted contact digest.

# Application Architecture

	RootSupervisor ("crumb")
	├── LedgerSupervisor ("ledger-layer")
	│   └── LedgerGCService (badger backend only)
	├── MessagingSupervisor ("messaging-layer")
	│   └── Event audit consumer (optional)
	└── APISupervisor ("api-layer")
	    └── HTTP Server

Component initialization order:

 1. Configuration: Koanf v2 with defaults, config.yaml and environment variables
 2. Logging: zerolog with JSON or console output
 3. Catalog: menu CSV or JSON loaded and validated before serving
 4. Ledger store: BadgerDB (default) or SQLite
 5. Event bus: Watermill over an in-process channel or NATS
 6. Ledger, identity resolver and recommendation engine
 7. HTTP router: chi with CORS, rate limiting and Prometheus metrics
 8. Supervisor tree: Suture v4 process supervision

# Configuration

	IDENTITY_SALT   secret salt for contact digests (required, 16+ characters)
	CATALOG_PATH    menu file (default /data/menu.csv)
	LEDGER_BACKEND  badger or sqlite (default badger)
	LEDGER_PATH     data directory or database file
	EVENTS_BACKEND  gochannel or nats
	NATS_URL        NATS server URL for the nats backend
	HTTP_PORT       listen port (default 8080)

See internal/config for the complete list.

# Signal Handling

SIGINT and SIGTERM cancel the root context. The HTTP server drains in-flight
requests within the shutdown timeout, then the event bus and ledger store are
closed.
*/
package main
