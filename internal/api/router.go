// Crumb - Budget Bundle Recommendation and Customer Ledger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crumb

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/crumb/internal/middleware"
)

// slowRequestThreshold promotes access log lines to warn level.
const slowRequestThreshold = 500 * time.Millisecond

// Router sets up HTTP routes using Chi router.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
}

// NewRouter creates a router. A nil config uses DefaultChiMiddlewareConfig.
func NewRouter(handler *Handler, config *ChiMiddlewareConfig) *Router {
	return &Router{
		handler:       handler,
		chiMiddleware: NewChiMiddleware(config),
	}
}

// Handler builds the chi route table.
func (router *Router) Handler() http.Handler {
	r := chi.NewRouter()

	// Global Middleware Stack, applied to all routes in order
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.AccessLog(slowRequestThreshold))
	r.Use(router.chiMiddleware.CORS())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusNotFound, &APIError{Code: ErrCodeNotFound, Message: "Route not found"}, nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusMethodNotAllowed, &APIError{Code: ErrCodeMethodNotAllowed, Message: "Method not allowed"}, nil)
	})

	r.Handle("/metrics", promhttp.Handler())

	h := router.handler
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(APISecurityHeaders())
		r.Use(middleware.PrometheusMetrics)
		r.Use(chimiddleware.Compress(5, "application/json"))

		r.Get("/health", h.Health)

		r.Route("/catalog", func(r chi.Router) {
			r.Get("/", h.Catalog)
			r.Get("/tags", h.CatalogTags)
			r.Post("/reload", h.ReloadCatalog)
		})

		r.Route("/recommendations", func(r chi.Router) {
			r.Post("/bundles", h.RecommendBundles)
			r.Get("/drinks", h.RecommendDrinks)
		})

		r.Route("/customers", func(r chi.Router) {
			r.With(router.chiMiddleware.RateLimitWrite()).Post("/identify", h.IdentifyCustomer)

			r.Route("/{customerID}", func(r chi.Router) {
				r.With(router.chiMiddleware.RateLimitWrite()).Post("/orders", h.Checkout)
				r.Get("/orders/last", h.LastOrder)
				r.Get("/coupons", h.Coupons)
				r.With(router.chiMiddleware.RateLimitWrite()).Post("/coupons/welcome", h.IssueWelcomeCoupon)
				r.Get("/summary", h.Summary)
			})
		})

		r.Patch("/coupons/{code}", h.SetCouponStatus)
	})

	return r
}
