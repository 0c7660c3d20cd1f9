// Crumb - Budget Bundle Recommendation and Customer Ledger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crumb

package catalog

import (
	"slices"
	"time"
)

// View is an immutable snapshot of a loaded catalog.
// It is safe for concurrent use without locking.
type View struct {
	items      []Item
	categories []string
	source     string
	version    string
	loadedAt   time.Time
}

// NewView copies items into a new View.
// source and version identify where the items came from.
func NewView(items []Item, source, version string) *View {
	copied := make([]Item, len(items))
	var categories []string
	for i, it := range items {
		copied[i] = it.clone()
		if !slices.Contains(categories, it.Category) {
			categories = append(categories, it.Category)
		}
	}
	return &View{
		items:      copied,
		categories: categories,
		source:     source,
		version:    version,
		loadedAt:   time.Now().UTC(),
	}
}

// Items returns a copy of every item in catalog order.
func (v *View) Items() []Item {
	out := make([]Item, len(v.items))
	for i, it := range v.items {
		out[i] = it.clone()
	}
	return out
}

// InCategories returns copies of the items whose category is one of
// categories, in catalog order. No categories selects nothing.
func (v *View) InCategories(categories ...string) []Item {
	var out []Item
	for _, it := range v.items {
		if slices.Contains(categories, it.Category) {
			out = append(out, it.clone())
		}
	}
	return out
}

// Categories returns the distinct categories in order of first appearance.
func (v *View) Categories() []string {
	return slices.Clone(v.categories)
}

// Len returns the number of items.
func (v *View) Len() int {
	return len(v.items)
}

// Source returns the path or name the view was loaded from.
func (v *View) Source() string {
	return v.source
}

// Version returns the content fingerprint of the source.
func (v *View) Version() string {
	return v.version
}

// LoadedAt returns when the view was built.
func (v *View) LoadedAt() time.Time {
	return v.loadedAt
}

// MinPrice returns the lowest price among items and false when items is empty.
func MinPrice(items []Item) (int64, bool) {
	if len(items) == 0 {
		return 0, false
	}
	lowest := items[0].Price
	for _, it := range items[1:] {
		if it.Price < lowest {
			lowest = it.Price
		}
	}
	return lowest, true
}
