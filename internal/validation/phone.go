// Crumb - Budget Bundle Recommendation and Customer Ledger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crumb

package validation

import (
	"fmt"
	"strings"
)

// NormalizePhone returns the digits of raw after trimming surrounding
// whitespace and dropping the separators people type into phone numbers
// ("-", ".", spaces). Exactly 10 or 11 digits must remain.
//
// The phone_digits tag and identity.NormalizeContact both use it.
func NormalizePhone(raw string) (string, error) {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range strings.TrimSpace(raw) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '.' || r == ' ':
		default:
			return "", fmt.Errorf("unexpected character %q", r)
		}
	}

	digits := b.String()
	if n := len(digits); n != 10 && n != 11 {
		return "", fmt.Errorf("expected 10 or 11 digits, got %d", n)
	}
	return digits, nil
}
