// Crumb - Budget Bundle Recommendation and Customer Ledger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crumb

package ledger

import (
	"context"
	"time"
)

// Store persists ledger records. Implementations must enforce the unique
// constraints atomically, since the ledger relies on them instead of
// checking first:
//
//   - customer contact digest
//   - order code
//   - coupon code
//   - at most one live (active or used) coupon per (customer, kind)
//
// Records returned by a Store are copies; mutating them has no effect.
type Store interface {
	// InsertCustomer adds a customer. ErrDuplicate if the digest or id is taken.
	InsertCustomer(ctx context.Context, c Customer) error

	// CustomerByDigest returns the customer with the digest or ErrNotFound.
	CustomerByDigest(ctx context.Context, digest string) (Customer, error)

	// Customer returns the customer with the id or ErrNotFound.
	Customer(ctx context.Context, id string) (Customer, error)

	// TouchCustomer sets LastSeenAt. ErrNotFound for an unknown id.
	TouchCustomer(ctx context.Context, id string, at time.Time) error

	InsertVisit(ctx context.Context, v Visit) error

	// CountVisits returns the number of visits logged for the customer.
	CountVisits(ctx context.Context, customerID string) (int, error)

	// InsertOrder adds an order. ErrDuplicate if the code is taken.
	InsertOrder(ctx context.Context, o Order) error

	// LastOrder returns the customer's most recent order or ErrNotFound.
	LastOrder(ctx context.Context, customerID string) (Order, error)

	CountOrders(ctx context.Context, customerID string) (int, error)

	// InsertCoupon adds a coupon. ErrDuplicate if the code is taken,
	// ErrCouponExists if the coupon is live and the customer already holds a
	// live coupon of the same kind.
	InsertCoupon(ctx context.Context, c Coupon) error

	// Coupons returns the customer's coupons, newest first.
	Coupons(ctx context.Context, customerID string) ([]Coupon, error)

	// SetCouponStatus changes a coupon's status. ErrNotFound for an unknown
	// code, ErrCouponExists if reviving it would break kind uniqueness.
	SetCouponStatus(ctx context.Context, code string, status CouponStatus) error

	Close() error
}
