// Crumb - Budget Bundle Recommendation and Customer Ledger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crumb

package ledger

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"
)

// OrderCode formats PREFIX-YYYYMMDD-NNNN. NNNN is the low four digits of the
// millisecond clock plus attempt, so a retry after a collision yields a new code.
func OrderCode(prefix string, now time.Time, attempt int) string {
	seq := (now.UnixMilli() + int64(attempt)) % 10000
	return fmt.Sprintf("%s-%s-%04d", prefix, now.Format("20060102"), seq)
}

// CouponCode formats PREFIX-XXXX-XXXX from the first four bytes of a BLAKE2b
// hash over the clock and attempt, in upper-case hex.
func CouponCode(prefix string, now time.Time, attempt int) string {
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[:8], uint64(now.UnixNano()))
	binary.BigEndian.PutUint64(buf[8:], uint64(attempt))
	sum := blake2b.Sum256(buf[:])

	code := strings.ToUpper(hex.EncodeToString(sum[:4]))
	return prefix + "-" + code[:4] + "-" + code[4:]
}
