// Crumb - Budget Bundle Recommendation and Customer Ledger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crumb

/*
Package middleware provides HTTP middleware for the Crumb API.

Key Components:

  - RequestID: request and correlation ids for tracing, echoed in response headers
  - PrometheusMetrics: request counts and latencies labelled by chi route pattern
  - AccessLog: one structured zerolog line per request, slow requests at warn level

All middleware uses the func(http.Handler) http.Handler shape so it composes
with chi's r.Use:

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.PrometheusMetrics)
	r.Use(middleware.AccessLog(500 * time.Millisecond))

RequestID must run first: the other two read the ids it stores in the context.

Customer contact values never pass through this package; request bodies are
not logged.
*/
package middleware
