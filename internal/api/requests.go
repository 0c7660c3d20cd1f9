// Crumb - Budget Bundle Recommendation and Customer Ledger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crumb

package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/tomtom215/crumb/internal/validation"
)

// maxBodyBytes bounds request bodies. The largest legitimate body is a
// three-item order.
const maxBodyBytes = 64 << 10

// errBadBody is returned for bodies that are not a single JSON object.
var errBadBody = errors.New("request body must be a single JSON object")

// BundleRequest is the body of POST /api/v1/recommendations/bundles.
type BundleRequest struct {
	CustomerID string   `json:"customer_id" validate:"omitempty,uuid"`
	Budget     int64    `json:"budget" validate:"gte=0"`
	Sweetness  int      `json:"sweetness" validate:"gte=0,lte=5"`
	Tags       []string `json:"tags" validate:"max=3,dive,tag_label"`
	Categories []string `json:"categories" validate:"max=8,dive,required"`
	TopK       int      `json:"top_k" validate:"gte=0,lte=10"`
}

// DrinkRequest holds the query parameters of GET /api/v1/recommendations/drinks.
type DrinkRequest struct {
	Category  string `json:"category" validate:"required"`
	Sweetness int    `json:"sweetness" validate:"gte=0,lte=5"`
}

// IdentifyRequest is the body of POST /api/v1/customers/identify.
// Consent must be given explicitly; a missing or false consent is rejected.
type IdentifyRequest struct {
	Contact string `json:"contact" validate:"required,phone_digits"`
	Consent bool   `json:"consent" validate:"required"`
}

// OrderItemRequest is one line of an order.
type OrderItemRequest struct {
	Name     string `json:"name" validate:"required"`
	Category string `json:"category" validate:"required"`
	Price    int64  `json:"price" validate:"gte=0"`
}

// OrderRequest is the body of POST /api/v1/customers/{customerID}/orders.
type OrderRequest struct {
	Items []OrderItemRequest `json:"items" validate:"required,min=1,max=3,dive"`
	Total int64              `json:"total" validate:"gte=0"`
}

// CouponStatusRequest is the body of PATCH /api/v1/coupons/{code}.
type CouponStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=active used expired"`
}

// decodeJSON reads one JSON object from the request body into dst and
// validates it. Unknown fields are rejected so typos surface as errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", errBadBody, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errBadBody
	}

	if verr := validation.ValidateStruct(dst); verr != nil {
		return verr
	}
	return nil
}
