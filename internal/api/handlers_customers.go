// Crumb - Budget Bundle Recommendation and Customer Ledger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crumb

package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/crumb/internal/catalog"
	"github.com/tomtom215/crumb/internal/identity"
	"github.com/tomtom215/crumb/internal/ledger"
	"github.com/tomtom215/crumb/internal/logging"
)

// CouponIssueResponse is the payload of POST .../coupons/welcome.
type CouponIssueResponse struct {
	Issued bool           `json:"issued"`
	Coupon *ledger.Coupon `json:"coupon,omitempty"`
}

// customerID returns the {customerID} path parameter.
func customerID(r *http.Request) string {
	return chi.URLParam(r, "customerID")
}

// IdentifyCustomer handles POST /api/v1/customers/identify. The contact is
// normalised, digested and discarded; it is never stored or logged.
// A newly created customer answers 201, a known one 200.
func (h *Handler) IdentifyCustomer(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req IdentifyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondServiceError(w, r, err)
		return
	}

	contact, err := identity.NormalizeContact(req.Contact)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	result, err := h.resolver.Resolve(ctx, contact)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	respondData(w, r, status, result, start)
}

// Checkout handles POST /api/v1/customers/{customerID}/orders. Every item must
// match a current catalog row exactly. The order is placed and the welcome
// coupon issued; a coupon failure is reported in the receipt, never as an
// error of the request.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id := customerID(r)

	var req OrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondServiceError(w, r, err)
		return
	}

	items, err := h.catalogItems(req.Items)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	ctx, cancel := h.withTimeout(logging.ContextWithCustomerID(r.Context(), id))
	defer cancel()

	receipt, err := h.ledger.Checkout(ctx, id, items, req.Total)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondData(w, r, http.StatusCreated, receipt, start)
}

// catalogItems converts order lines to ledger items after checking each one
// against the current catalog, so a client cannot invent items or prices.
func (h *Handler) catalogItems(lines []OrderItemRequest) ([]ledger.OrderItem, error) {
	view, err := h.catalog.View()
	if err != nil {
		return nil, err
	}

	known := make(map[string]bool, view.Len())
	for _, it := range view.Items() {
		known[it.Key()] = true
	}

	items := make([]ledger.OrderItem, 0, len(lines))
	for i, line := range lines {
		item := ledger.OrderItem{Name: line.Name, Category: line.Category, Price: line.Price}
		if !known[catalog.Item{Name: line.Name, Category: line.Category, Price: line.Price}.Key()] {
			return nil, &ledger.ValidationError{
				Field:   fmt.Sprintf("items[%d]", i),
				Message: fmt.Sprintf("%s (%s, %d) is not on the current menu", line.Name, line.Category, line.Price),
			}
		}
		items = append(items, item)
	}
	return items, nil
}

// LastOrder handles GET /api/v1/customers/{customerID}/orders/last.
// A customer without orders answers 404.
func (h *Handler) LastOrder(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	order, found, err := h.ledger.LastOrder(ctx, customerID(r))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if !found {
		respondError(w, r, http.StatusNotFound, &APIError{Code: ErrCodeNotFound, Message: "No orders yet"}, nil)
		return
	}
	respondData(w, r, http.StatusOK, order, start)
}

// Coupons handles GET /api/v1/customers/{customerID}/coupons, newest first.
func (h *Handler) Coupons(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	coupons, err := h.ledger.Coupons(ctx, customerID(r))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if coupons == nil {
		coupons = []ledger.Coupon{}
	}
	respondData(w, r, http.StatusOK, coupons, start)
}

// IssueWelcomeCoupon handles POST /api/v1/customers/{customerID}/coupons/welcome.
// A new coupon answers 201; an existing live welcome coupon answers 200 with
// issued=false.
func (h *Handler) IssueWelcomeCoupon(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id := customerID(r)
	ctx, cancel := h.withTimeout(logging.ContextWithCustomerID(r.Context(), id))
	defer cancel()

	coupon, issued, err := h.ledger.IssueWelcomeCoupon(ctx, id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if !issued {
		respondData(w, r, http.StatusOK, CouponIssueResponse{Issued: false}, start)
		return
	}
	respondData(w, r, http.StatusCreated, CouponIssueResponse{Issued: true, Coupon: &coupon}, start)
}

// Summary handles GET /api/v1/customers/{customerID}/summary.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	summary, err := h.ledger.Summary(ctx, customerID(r))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondData(w, r, http.StatusOK, summary, start)
}

// SetCouponStatus handles PATCH /api/v1/coupons/{code}. It is the hook for
// redemption and expiry jobs; any known status may be set.
func (h *Handler) SetCouponStatus(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	code := chi.URLParam(r, "code")

	var req CouponStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondServiceError(w, r, err)
		return
	}

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	status := ledger.CouponStatus(req.Status)
	if err := h.ledger.SetCouponStatus(ctx, code, status); err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondData(w, r, http.StatusOK, map[string]string{"code": code, "status": string(status)}, start)
}
