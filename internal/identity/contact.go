// Crumb - Budget Bundle Recommendation and Customer Ledger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crumb

package identity

import (
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/blake2b"

	"github.com/tomtom215/crumb/internal/validation"
)

// ErrInvalidContact is returned for a contact value that cannot identify a customer.
var ErrInvalidContact = errors.New("invalid contact")

// NormalizeContact reduces a typed phone number to its digits with the same
// rule the phone_digits request tag applies.
func NormalizeContact(raw string) (string, error) {
	digits, err := validation.NormalizePhone(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidContact, err)
	}
	return digits, nil
}

// Hasher derives contact digests. The salt is the BLAKE2b key, so digests are
// stable for one deployment and useless without its salt.
type Hasher struct {
	key []byte
}

// NewHasher creates a hasher keyed with salt. Salts longer than the 64 byte
// BLAKE2b key limit are compressed to 32 bytes first.
func NewHasher(salt string) (*Hasher, error) {
	if salt == "" {
		return nil, errors.New("identity salt is required")
	}
	key := []byte(salt)
	if len(key) > blake2b.Size {
		sum := blake2b.Sum256(key)
		key = sum[:]
	}
	if _, err := blake2b.New256(key); err != nil {
		return nil, fmt.Errorf("init blake2b: %w", err)
	}
	return &Hasher{key: key}, nil
}

// Digest returns the hex encoded keyed BLAKE2b-256 of contact.
func (h *Hasher) Digest(contact string) string {
	mac, _ := blake2b.New256(h.key) // key checked in NewHasher
	mac.Write([]byte(contact))
	return hex.EncodeToString(mac.Sum(nil))
}
