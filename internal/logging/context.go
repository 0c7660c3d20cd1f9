// Crumb - Budget Bundle Recommendation and Customer Ledger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crumb

package logging

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type contextKey string

// Context keys double as the log field names Ctx writes.
const (
	correlationIDKey contextKey = "correlation_id"
	requestIDKey     contextKey = "request_id"
	customerIDKey    contextKey = "customer_id"
)

var ctxFields = []contextKey{correlationIDKey, requestIDKey, customerIDKey}

func stringValue(ctx context.Context, key contextKey) string {
	s, _ := ctx.Value(key).(string)
	return s
}

// GenerateCorrelationID returns the first 8 characters of a random UUID.
func GenerateCorrelationID() string {
	return uuid.NewString()[:8]
}

func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

// ContextWithNewCorrelationID attaches a freshly generated correlation id.
func ContextWithNewCorrelationID(ctx context.Context) context.Context {
	return ContextWithCorrelationID(ctx, GenerateCorrelationID())
}

func CorrelationIDFromContext(ctx context.Context) string {
	return stringValue(ctx, correlationIDKey)
}

func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

func RequestIDFromContext(ctx context.Context) string {
	return stringValue(ctx, requestIDKey)
}

// ContextWithCustomerID tags the context with the resolved customer so every
// later log line of the request carries it.
func ContextWithCustomerID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, customerIDKey, id)
}

func CustomerIDFromContext(ctx context.Context) string {
	return stringValue(ctx, customerIDKey)
}

// Ctx returns the global logger with the correlation, request and customer
// ids of ctx attached. Empty values are omitted.
//
//	logging.Ctx(ctx).Info().Msg("Order placed")
func Ctx(ctx context.Context) *zerolog.Logger {
	lc := current().With()
	for _, key := range ctxFields {
		if v := stringValue(ctx, key); v != "" {
			lc = lc.Str(string(key), v)
		}
	}
	l := lc.Logger()
	return &l
}
