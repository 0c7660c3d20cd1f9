// Crumb - Budget Bundle Recommendation and Customer Ledger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crumb

package recommend

import (
	"sort"

	"github.com/tomtom215/crumb/internal/catalog"
)

// ScoredItem is a catalog item with its affinity score for one request.
type ScoredItem struct {
	catalog.Item
	Score int `json:"score"`
}

// defaults backs the package-level Score, Rank and SearchCombos functions.
var defaults = DefaultConfig()

// Score returns the affinity of item to the requested tags and sweetness
// using the default weights.
//
//nolint:gocritic // Item is a small value type passed by value throughout
func Score(item catalog.Item, requested catalog.TagSet, sweetness int) int {
	return defaults.Score(item, requested, sweetness)
}

// Score returns the affinity of item under c's weights. The result is never negative.
//
//nolint:gocritic // Item is a small value type passed by value throughout
func (c *Config) Score(item catalog.Item, requested catalog.TagSet, sweetness int) int {
	diff := item.Sweetness - sweetness
	if diff < 0 {
		diff = -diff
	}
	sweetScore := c.Weights.SweetnessWindow - diff
	if sweetScore < 0 {
		sweetScore = 0
	}

	score := c.Weights.TagMatch*requested.MatchCount(item) + sweetScore
	if c.PopularTag != "" && item.HasTag(c.PopularTag) {
		score += c.Weights.PopularBonus
	}
	return score
}

// Rank scores items with the default weights and orders them.
func Rank(items []catalog.Item, requested catalog.TagSet, sweetness int) []ScoredItem {
	return defaults.Rank(items, requested, sweetness)
}

// Rank scores every item and orders by score descending, then price
// ascending. Items tied on both keep their input order. Nothing is filtered.
func (c *Config) Rank(items []catalog.Item, requested catalog.TagSet, sweetness int) []ScoredItem {
	ranked := make([]ScoredItem, len(items))
	for i, it := range items {
		ranked[i] = ScoredItem{Item: it, Score: c.Score(it, requested, sweetness)}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Price < ranked[j].Price
	})
	return ranked
}
