// Crumb - Budget Bundle Recommendation and Customer Ledger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crumb

// Package api serves the Crumb HTTP JSON API.
//
// Handler methods are split across files:
//   - handler.go: Handler struct, collaborator interfaces, constructor (this file)
//   - handlers_catalog.go: health and catalog endpoints
//   - handlers_recommend.go: bundle and drink recommendations
//   - handlers_customers.go: identification, checkout, coupons and summaries
//   - router.go: chi route table and middleware stack
package api

import (
	"context"
	"errors"
	"time"

	"github.com/tomtom215/crumb/internal/catalog"
	"github.com/tomtom215/crumb/internal/identity"
	"github.com/tomtom215/crumb/internal/ledger"
	"github.com/tomtom215/crumb/internal/recommend"
)

// CatalogSource serves and reloads the catalog.
type CatalogSource interface {
	View() (*catalog.View, error)
	Reload() (*catalog.View, error)
}

// Recommender produces bundle and drink recommendations.
type Recommender interface {
	RecommendBundles(ctx context.Context, req recommend.BundleRequest) (*recommend.BundleResponse, error)
	RecommendDrinks(ctx context.Context, category string, sweetness int) ([]recommend.ScoredItem, error)
	Config() *recommend.Config
}

// Resolver maps a normalised contact to a customer id.
type Resolver interface {
	Resolve(ctx context.Context, contact string) (identity.ResolveResult, error)
}

// Ledger records and reads customer activity.
type Ledger interface {
	Checkout(ctx context.Context, customerID string, items []ledger.OrderItem, total int64) (ledger.Receipt, error)
	IssueWelcomeCoupon(ctx context.Context, customerID string) (ledger.Coupon, bool, error)
	LastOrder(ctx context.Context, customerID string) (ledger.Order, bool, error)
	Coupons(ctx context.Context, customerID string) ([]ledger.Coupon, error)
	Summary(ctx context.Context, customerID string) (ledger.Summary, error)
	SetCouponStatus(ctx context.Context, code string, status ledger.CouponStatus) error
}

// EventStatus reports the state of the event bus. Optional.
type EventStatus interface {
	BreakerState() string
}

// Deps are the collaborators of a Handler. Every field except Events is required.
type Deps struct {
	Catalog     CatalogSource
	Recommender Recommender
	Resolver    Resolver
	Ledger      Ledger
	Events      EventStatus

	// Version is reported by the health endpoint.
	Version string

	// RequestTimeout bounds each ledger or recommendation call. Zero uses 10s.
	RequestTimeout time.Duration
}

// Handler contains dependencies for API handlers
type Handler struct {
	catalog     CatalogSource
	recommender Recommender
	resolver    Resolver
	ledger      Ledger
	events      EventStatus
	version     string
	timeout     time.Duration
	startTime   time.Time
}

// NewHandler creates a handler from deps.
func NewHandler(deps Deps) (*Handler, error) {
	if deps.Catalog == nil || deps.Recommender == nil || deps.Resolver == nil || deps.Ledger == nil {
		return nil, errors.New("api handler needs a catalog, recommender, resolver and ledger")
	}
	timeout := deps.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Handler{
		catalog:     deps.Catalog,
		recommender: deps.Recommender,
		resolver:    deps.Resolver,
		ledger:      deps.Ledger,
		events:      deps.Events,
		version:     deps.Version,
		timeout:     timeout,
		startTime:   time.Now(),
	}, nil
}

func (h *Handler) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, h.timeout)
}
