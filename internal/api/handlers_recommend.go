// Crumb - Budget Bundle Recommendation and Customer Ledger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crumb

package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/tomtom215/crumb/internal/logging"
	"github.com/tomtom215/crumb/internal/recommend"
	"github.com/tomtom215/crumb/internal/validation"
)

// DrinksResponse is the payload of GET /api/v1/recommendations/drinks.
type DrinksResponse struct {
	Category  string                 `json:"category"`
	Sweetness int                    `json:"sweetness"`
	Drinks    []recommend.ScoredItem `json:"drinks"`
}

// RecommendBundles handles POST /api/v1/recommendations/bundles.
//
// A budget below the cheapest item answers 422 BUDGET_TOO_LOW. A budget that
// covers some item but admits no bundle answers 200 with an empty list. When
// customer_id is set and bundles were found, the visit is recorded.
func (h *Handler) RecommendBundles(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req BundleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondServiceError(w, r, err)
		return
	}

	ctx := r.Context()
	if req.CustomerID != "" {
		ctx = logging.ContextWithCustomerID(ctx, req.CustomerID)
	}
	ctx, cancel := h.withTimeout(ctx)
	defer cancel()

	resp, err := h.recommender.RecommendBundles(ctx, recommend.BundleRequest{
		CustomerID: req.CustomerID,
		Budget:     req.Budget,
		Sweetness:  req.Sweetness,
		Tags:       req.Tags,
		Categories: req.Categories,
		TopK:       req.TopK,
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if resp.Bundles == nil {
		resp.Bundles = []recommend.Bundle{}
	}

	respondData(w, r, http.StatusOK, resp, start)
}

// RecommendDrinks handles GET /api/v1/recommendations/drinks?category=&sweetness=.
// sweetness defaults to 0.
func (h *Handler) RecommendDrinks(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	req := DrinkRequest{Category: r.URL.Query().Get("category")}
	if raw := r.URL.Query().Get("sweetness"); raw != "" {
		sweetness, err := strconv.Atoi(raw)
		if err != nil {
			respondError(w, r, http.StatusBadRequest, &APIError{
				Code:    ErrCodeValidation,
				Message: fmt.Sprintf("sweetness must be an integer, got %q", raw),
				Details: map[string]interface{}{"field": "sweetness"},
			}, nil)
			return
		}
		req.Sweetness = sweetness
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondServiceError(w, r, verr)
		return
	}

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	drinks, err := h.recommender.RecommendDrinks(ctx, req.Category, req.Sweetness)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if drinks == nil {
		drinks = []recommend.ScoredItem{}
	}

	respondData(w, r, http.StatusOK, DrinksResponse{
		Category:  req.Category,
		Sweetness: req.Sweetness,
		Drinks:    drinks,
	}, start)
}
