// Crumb - Budget Bundle Recommendation and Customer Ledger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crumb

package middleware

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/crumb/internal/logging"
)

// AccessLog writes one log line per request through the context logger, so
// the line carries request_id and correlation_id. Requests slower than
// slowThreshold, and 5xx responses, are logged at warn level; everything else
// at debug. A zero slowThreshold disables the slow-request promotion.
func AccessLog(slowThreshold time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := newStatusRecorder(w)

			next.ServeHTTP(rec, r)

			duration := time.Since(start)
			level := zerolog.DebugLevel
			switch {
			case rec.status >= http.StatusInternalServerError:
				level = zerolog.WarnLevel
			case slowThreshold > 0 && duration > slowThreshold:
				level = zerolog.WarnLevel
			}

			logging.Ctx(r.Context()).WithLevel(level).
				Str("method", r.Method).
				Str("route", routePattern(r)).
				Int("status", rec.status).
				Int("bytes", rec.bytes).
				Dur("duration", duration).
				Str("remote_addr", r.RemoteAddr).
				Msg("HTTP request")
		})
	}
}
