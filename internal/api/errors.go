// Crumb - Budget Bundle Recommendation and Customer Ledger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crumb

package api

import (
	"errors"
	"net/http"

	"github.com/tomtom215/crumb/internal/catalog"
	"github.com/tomtom215/crumb/internal/identity"
	"github.com/tomtom215/crumb/internal/ledger"
	"github.com/tomtom215/crumb/internal/recommend"
	"github.com/tomtom215/crumb/internal/validation"
)

// ErrCodeConflict is used when a coupon status change would create a second
// live coupon of one kind.
const ErrCodeConflict = "CONFLICT"

// retryAfterSeconds is sent with LEDGER_BUSY responses.
const retryAfterSeconds = "1"

// classifyError maps a service error to an HTTP status and API error.
// The message of a 500 never contains the underlying error text.
func classifyError(err error) (int, *APIError) {
	var reqErr *validation.RequestValidationError
	var ledgerErr *ledger.ValidationError

	switch {
	case errors.As(err, &reqErr):
		apiErr := reqErr.ToAPIError()
		return http.StatusBadRequest, &APIError{Code: apiErr.Code, Message: apiErr.Message, Details: apiErr.Details}

	case errors.As(err, &ledgerErr):
		return http.StatusBadRequest, &APIError{
			Code:    ErrCodeValidation,
			Message: ledgerErr.Message,
			Details: map[string]interface{}{"field": ledgerErr.Field},
		}

	case errors.Is(err, recommend.ErrBudgetBelowMinimum):
		return http.StatusUnprocessableEntity, &APIError{Code: ErrCodeBudgetTooLow, Message: err.Error()}

	case errors.Is(err, errBadBody),
		errors.Is(err, recommend.ErrInvalidRequest),
		errors.Is(err, recommend.ErrUnknownCategory),
		errors.Is(err, catalog.ErrTooManyTags),
		errors.Is(err, identity.ErrInvalidContact):
		return http.StatusBadRequest, &APIError{Code: ErrCodeValidation, Message: err.Error()}

	case errors.Is(err, ledger.ErrIdentityRequired):
		return http.StatusPreconditionFailed, &APIError{
			Code:    ErrCodeIdentityRequired,
			Message: "Identify the customer before using the ledger",
		}

	case errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound, &APIError{Code: ErrCodeNotFound, Message: "Not found"}

	case errors.Is(err, ledger.ErrCouponExists):
		return http.StatusConflict, &APIError{Code: ErrCodeConflict, Message: "Customer already holds a live coupon of this kind"}

	case errors.Is(err, ledger.ErrRetriesExhausted), errors.Is(err, ledger.ErrClosed):
		return http.StatusServiceUnavailable, &APIError{
			Code:    ErrCodeLedgerBusy,
			Message: "The ledger is busy, please retry",
		}

	case errors.Is(err, catalog.ErrSchema), errors.Is(err, catalog.ErrUnsupportedFormat):
		return http.StatusInternalServerError, &APIError{Code: ErrCodeCatalogError, Message: "The catalog could not be loaded"}

	default:
		return http.StatusInternalServerError, &APIError{Code: ErrCodeInternal, Message: "Internal server error"}
	}
}

// respondServiceError classifies err and writes the error envelope.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, apiErr := classifyError(err)
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", retryAfterSeconds)
	}
	respondError(w, r, status, apiErr, err)
}
