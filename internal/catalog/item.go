// Crumb - Budget Bundle Recommendation and Customer Ledger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crumb

// Package catalog holds the read-only item catalog the recommender draws from.
//
// A catalog is ingested once from a CSV or JSON file into a View. Views are
// never mutated after construction; a reload builds a new View and swaps it
// into the Cache. The package also provides TagSet, the bounded set of tags
// a customer may select for one request.
package catalog

import (
	"slices"
	"strconv"
)

// Item is one catalog row.
//
// Items are identified by the (name, category, price) tuple; names alone are
// not unique across categories.
type Item struct {
	// Category is the menu section, e.g. "빵" or "커피".
	Category string `json:"category" validate:"required"`

	// Name is the display name.
	Name string `json:"name" validate:"required"`

	// Price is in the smallest currency unit.
	Price int64 `json:"price" validate:"gte=0"`

	// Sweetness is the sweetness level from 0 (none) to 5 (very sweet).
	Sweetness int `json:"sweetness" validate:"min=0,max=5"`

	// Tags are free-form labels such as "#바삭한". The popular tag marks
	// best sellers and earns a scoring bonus.
	Tags []string `json:"tags" validate:"dive,required"`
}

// HasTag reports whether the item carries tag.
//
//nolint:gocritic // Item is a small value type passed by value throughout
func (it Item) HasTag(tag string) bool {
	return slices.Contains(it.Tags, tag)
}

// Key returns the identity tuple of the item as a single string.
//
//nolint:gocritic // Item is a small value type passed by value throughout
func (it Item) Key() string {
	return it.Category + "|" + it.Name + "|" + strconv.FormatInt(it.Price, 10)
}

// clone returns a copy of the item that shares no memory with it.
//
//nolint:gocritic // Item is a small value type passed by value throughout
func (it Item) clone() Item {
	it.Tags = slices.Clone(it.Tags)
	return it
}
