// Crumb - Budget Bundle Recommendation and Customer Ledger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crumb

package ledger

import (
	"time"
)

// CouponStatus is the lifecycle state of a coupon.
type CouponStatus string

const (
	StatusActive  CouponStatus = "active"
	StatusUsed    CouponStatus = "used"
	StatusExpired CouponStatus = "expired"
)

// Valid reports whether s is a known status.
func (s CouponStatus) Valid() bool {
	switch s {
	case StatusActive, StatusUsed, StatusExpired:
		return true
	}
	return false
}

// Live reports whether a coupon in this status blocks issuing another of the
// same kind to the same customer.
func (s CouponStatus) Live() bool {
	return s == StatusActive || s == StatusUsed
}

// KindWelcome is the coupon kind issued after a customer's first checkout.
const KindWelcome = "welcome"

// Customer is an identified customer. Only the contact digest is stored.
type Customer struct {
	ID          string    `json:"id"`
	ContactHash string    `json:"contact_hash"`
	ConsentedAt time.Time `json:"consented_at"`
	CreatedAt   time.Time `json:"created_at"`
	LastSeenAt  time.Time `json:"last_seen_at"`
}

// Visit records one recommendation request of an identified customer.
type Visit struct {
	ID         string    `json:"id"`
	CustomerID string    `json:"customer_id"`
	Budget     int64     `json:"budget"`
	Sweetness  int       `json:"sweetness"`
	Tags       []string  `json:"tags"`
	CreatedAt  time.Time `json:"created_at"`
}

// OrderItem is a snapshot of a catalog item at order time.
type OrderItem struct {
	Name     string `json:"name" validate:"required"`
	Category string `json:"category" validate:"required"`
	Price    int64  `json:"price" validate:"gte=0"`
}

// Order is an immutable placed order.
type Order struct {
	ID         string      `json:"id"`
	CustomerID string      `json:"customer_id"`
	Items      []OrderItem `json:"items"`
	Total      int64       `json:"total"`
	Code       string      `json:"code"`
	CreatedAt  time.Time   `json:"created_at"`
}

// CouponMeta carries display text for a coupon.
type CouponMeta struct {
	Description string `json:"description"`
	UsageLimit  string `json:"usage_limit"`
}

// Coupon is a promotional coupon issued to a customer.
type Coupon struct {
	ID         string       `json:"id"`
	CustomerID string       `json:"customer_id"`
	Code       string       `json:"code"`
	Kind       string       `json:"kind"`
	Status     CouponStatus `json:"status"`
	IssuedAt   time.Time    `json:"issued_at"`
	ExpiresAt  time.Time    `json:"expires_at"`
	Meta       CouponMeta   `json:"meta"`
}

// Receipt is the result of a checkout. Coupon is the welcome coupon: issued
// by this checkout when CouponIssued, otherwise the live one the customer
// already held. It is nil when neither exists.
type Receipt struct {
	Order        Order   `json:"order"`
	Coupon       *Coupon `json:"coupon,omitempty"`
	CouponIssued bool    `json:"coupon_issued"`

	// CouponError describes a coupon issuance failure after the order was
	// already placed.
	CouponError string `json:"coupon_error,omitempty"`
}

// Summary aggregates a customer's ledger activity.
type Summary struct {
	CustomerID    string    `json:"customer_id"`
	OrderCount    int       `json:"order_count"`
	CouponCount   int       `json:"coupon_count"`
	ActiveCoupons int       `json:"active_coupons"`
	LastSeenAt    time.Time `json:"last_seen_at"`
}
