// Crumb - Budget Bundle Recommendation and Customer Ledger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crumb

/*
Package config provides centralized configuration management for Crumb.

Configuration is layered with koanf. Later layers override earlier ones:

 1. Struct defaults (defaultConfig)
 2. An optional YAML file: CONFIG_PATH, then config.yaml, config.yml,
    /etc/crumb/config.yaml
 3. Environment variables, through an explicit mapping table. Unmapped
    variables are ignored.

Comma-separated environment values for list settings (CORS origins, category
lists) are split after loading. The result is validated before it is returned.

# Sections

  - server: listen address, timeouts, environment
  - catalog: menu file path
  - recommend: score weights, candidate cap, bundle sizes, categories
  - identity: digest salt
  - ledger: storage backend (badger or sqlite), path, retry attempts
  - coupon: code prefix, validity window, welcome texts
  - order: order code prefix
  - events: in-process or NATS backend, circuit breaker
  - logging: level, format, caller
  - security: CORS origins and rate limits

# Environment Variables

Selected variables (see envTransformFunc for the full table):

  - HTTP_PORT, HTTP_HOST, HTTP_TIMEOUT, ENVIRONMENT
  - CATALOG_PATH
  - IDENTITY_SALT (required, at least 16 characters)
  - LEDGER_BACKEND, LEDGER_PATH, LEDGER_RETRY_ATTEMPTS
  - COUPON_PREFIX, COUPON_TTL, ORDER_PREFIX
  - EVENTS_BACKEND, NATS_URL
  - LOG_LEVEL, LOG_FORMAT, LOG_CALLER
  - CORS_ORIGINS, RATE_LIMIT_REQUESTS, RATE_LIMIT_WINDOW, DISABLE_RATE_LIMIT

# Usage

	cfg, err := config.LoadWithKoanf()
	if err != nil {
	    log.Fatal(err)
	}
	addr := cfg.Server.Address()
*/
package config
