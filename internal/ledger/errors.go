// Crumb - Budget Bundle Recommendation and Customer Ledger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crumb

package ledger

import (
	"errors"
	"fmt"
)

// Store errors. Backends wrap their native errors in these so callers can
// use errors.Is regardless of the backend.
var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when a unique key (contact digest, order code,
	// coupon code) is already taken.
	ErrDuplicate = errors.New("duplicate key")

	// ErrConflict is returned when a transaction lost a concurrent write.
	ErrConflict = errors.New("transaction conflict")

	// ErrCouponExists is returned when the customer already holds a live
	// coupon of the same kind.
	ErrCouponExists = errors.New("live coupon of this kind already exists")

	// ErrClosed is returned by a store after Close.
	ErrClosed = errors.New("store is closed")
)

// Ledger errors.
var (
	// ErrIdentityRequired is returned when an operation needs a known customer
	// and none was given.
	ErrIdentityRequired = errors.New("customer identity required")

	// ErrRetriesExhausted is returned when every attempt hit a constraint
	// violation. It wraps the last cause.
	ErrRetriesExhausted = errors.New("retries exhausted")
)

// ValidationError reports invalid input to a ledger operation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is or wraps a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// retryable reports whether err is a constraint violation worth another attempt.
func retryable(err error) bool {
	return errors.Is(err, ErrDuplicate) || errors.Is(err, ErrConflict)
}

func retryReason(err error) string {
	if errors.Is(err, ErrConflict) {
		return "conflict"
	}
	return "duplicate"
}
