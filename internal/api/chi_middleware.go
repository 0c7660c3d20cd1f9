// Crumb - Budget Bundle Recommendation and Customer Ledger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crumb

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
)

// ChiMiddlewareConfig configures CORS and the two rate limits.
type ChiMiddlewareConfig struct {
	CORSAllowedOrigins []string
	CORSMaxAge         int // seconds

	// RateLimitRequests per RateLimitWindow per client IP on /api/v1.
	RateLimitRequests int
	RateLimitWindow   time.Duration
	RateLimitDisabled bool

	// WriteLimitRequests per RateLimitWindow per client IP on identify and
	// checkout, which create ledger rows.
	WriteLimitRequests int
}

// DefaultChiMiddlewareConfig allows no cross-origin callers until origins are
// configured.
func DefaultChiMiddlewareConfig() *ChiMiddlewareConfig {
	return &ChiMiddlewareConfig{
		CORSAllowedOrigins: []string{},
		CORSMaxAge:         86400,
		RateLimitRequests:  120,
		RateLimitWindow:    time.Minute,
		WriteLimitRequests: 30,
	}
}

// ChiMiddleware builds the router's CORS and rate limit middleware.
type ChiMiddleware struct {
	config *ChiMiddlewareConfig
	cors   func(http.Handler) http.Handler
}

// NewChiMiddleware uses DefaultChiMiddlewareConfig when config is nil.
func NewChiMiddleware(config *ChiMiddlewareConfig) *ChiMiddleware {
	if config == nil {
		config = DefaultChiMiddlewareConfig()
	}

	corsHandler := cors.Handler(cors.Options{
		AllowedOrigins:   config.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "X-Request-ID", "X-Correlation-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "X-Correlation-ID", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           config.CORSMaxAge,
	})

	return &ChiMiddleware{
		config: config,
		cors:   corsHandler,
	}
}

// CORS returns the go-chi/cors handler.
func (m *ChiMiddleware) CORS() func(http.Handler) http.Handler {
	return m.cors
}

// RateLimit limits all API requests per client IP.
func (m *ChiMiddleware) RateLimit() func(http.Handler) http.Handler {
	return m.limit(m.config.RateLimitRequests, httprate.KeyByIP)
}

// RateLimitWrite is the stricter limit for endpoints that create ledger rows.
// Each endpoint has its own budget per client IP.
func (m *ChiMiddleware) RateLimitWrite() func(http.Handler) http.Handler {
	return m.limit(m.config.WriteLimitRequests, httprate.KeyByIP, httprate.KeyByEndpoint)
}

func passthrough(next http.Handler) http.Handler { return next }

func (m *ChiMiddleware) limit(requests int, keys ...httprate.KeyFunc) func(http.Handler) http.Handler {
	if m.config.RateLimitDisabled || requests <= 0 {
		return passthrough
	}
	return httprate.Limit(requests, m.config.RateLimitWindow,
		httprate.WithKeyFuncs(keys...),
		httprate.WithLimitHandler(rateLimited),
	)
}

func rateLimited(w http.ResponseWriter, r *http.Request) {
	respondError(w, r, http.StatusTooManyRequests, &APIError{
		Code:    ErrCodeTooManyRequests,
		Message: "Too many requests, slow down",
	}, nil)
}

// securityHeaders are set on every API response.
var securityHeaders = [][2]string{
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "DENY"},
	{"Referrer-Policy", "no-referrer"},
}

// APISecurityHeaders sets securityHeaders, plus HSTS behind TLS.
func APISecurityHeaders() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			for _, kv := range securityHeaders {
				h.Set(kv[0], kv[1])
			}
			if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
				h.Set("Strict-Transport-Security", "max-age=31536000")
			}
			next.ServeHTTP(w, r)
		})
	}
}
