// Crumb - Budget Bundle Recommendation and Customer Ledger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crumb

package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/tomtom215/crumb/internal/logging"
)

// Header names.
const (
	HeaderRequestID     = "X-Request-ID"
	HeaderCorrelationID = "X-Correlation-ID"
)

// maxInboundIDLen bounds ids accepted from clients or proxies.
const maxInboundIDLen = 128

type contextKey string

const RequestIDKey contextKey = "request_id"

// RequestID generates a unique ID for each request and adds it to the
// response header and the request context. An X-Request-ID set by an
// upstream proxy is kept when it is short and printable.
//
// The logging context receives the request id and a correlation id. The
// correlation id is taken from X-Correlation-ID when present, so one
// customer journey across several requests can be followed in the logs and
// in published ledger events.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(HeaderRequestID)
		if !acceptableID(requestID) {
			requestID = uuid.New().String()
		}
		w.Header().Set(HeaderRequestID, requestID)

		ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
		ctx = logging.ContextWithRequestID(ctx, requestID)

		if correlationID := r.Header.Get(HeaderCorrelationID); acceptableID(correlationID) {
			ctx = logging.ContextWithCorrelationID(ctx, correlationID)
		} else {
			ctx = logging.ContextWithNewCorrelationID(ctx)
		}
		w.Header().Set(HeaderCorrelationID, logging.CorrelationIDFromContext(ctx))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID extracts the request ID from context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// acceptableID rejects empty, oversized and non-printable ids so a client
// cannot inject newlines into log lines through a header.
func acceptableID(id string) bool {
	if id == "" || len(id) > maxInboundIDLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return false
		}
	}
	return true
}
