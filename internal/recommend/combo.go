// Crumb - Budget Bundle Recommendation and Customer Ledger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crumb

package recommend

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/tomtom215/crumb/internal/catalog"
)

// ErrBudgetBelowMinimum means no single item is affordable, so a search
// cannot produce anything.
var ErrBudgetBelowMinimum = errors.New("budget is below the cheapest item")

// Bundle is a set of items whose total fits the budget.
type Bundle struct {
	Items []ScoredItem `json:"items"`
	Total int64        `json:"total"`
	Score int          `json:"score"`
}

// Size returns the number of items in the bundle.
func (b *Bundle) Size() int {
	return len(b.Items)
}

// Names returns the item names in bundle order.
func (b *Bundle) Names() []string {
	names := make([]string, len(b.Items))
	for i := range b.Items {
		names[i] = b.Items[i].Name
	}
	return names
}

// nameKey identifies a bundle by its sorted item names.
func (b *Bundle) nameKey() string {
	names := b.Names()
	sort.Strings(names)
	return strings.Join(names, "\x00")
}

// CheckBudget fails when even the cheapest item costs more than budget. An
// empty pool passes; the search then finds no bundles.
func CheckBudget(items []catalog.Item, budget int64) error {
	lowest, ok := catalog.MinPrice(items)
	if ok && lowest > budget {
		return fmt.Errorf("%w: budget %d, cheapest %d", ErrBudgetBelowMinimum, budget, lowest)
	}
	return nil
}

// SearchResult is the outcome of one combo search.
type SearchResult struct {
	Bundles []Bundle

	// Candidates is the number of ranked items that entered enumeration.
	Candidates int

	// SubsetsEvaluated is the number of subsets enumerated before filtering.
	SubsetsEvaluated int
}

// SearchCombos returns up to topK bundles using the default configuration.
// An empty result means nothing fits; it is not an error.
func SearchCombos(items []catalog.Item, requested catalog.TagSet, sweetness int, budget int64, topK int) []Bundle {
	return defaults.SearchCombos(items, requested, sweetness, budget, topK).Bundles
}

// SearchCombos ranks items, keeps the top CandidateCap, enumerates every
// subset of MinBundleSize..MaxBundleSize items, drops those over budget and
// returns the best topK distinct bundles. topK <= 0 uses c.TopK.
//
// Bundles are ordered by score descending, total ascending, then size
// descending. Bundles with the same multiset of item names are duplicates and
// only the best ranked one is kept.
func (c *Config) SearchCombos(items []catalog.Item, requested catalog.TagSet, sweetness int, budget int64, topK int) SearchResult {
	if topK <= 0 {
		topK = c.TopK
	}

	ranked := c.Rank(items, requested, sweetness)
	if len(ranked) > c.CandidateCap {
		ranked = ranked[:c.CandidateCap]
	}
	result := SearchResult{Candidates: len(ranked)}

	var feasible []Bundle
	for size := c.MinBundleSize; size <= c.MaxBundleSize && size <= len(ranked); size++ {
		forEachCombination(len(ranked), size, func(idx []int) {
			result.SubsetsEvaluated++

			var total int64
			for _, i := range idx {
				total += ranked[i].Price
			}
			if total > budget {
				return
			}

			bundle := Bundle{Items: make([]ScoredItem, len(idx)), Total: total}
			for k, i := range idx {
				bundle.Items[k] = ranked[i]
				bundle.Score += ranked[i].Score
			}
			feasible = append(feasible, bundle)
		})
	}

	sort.SliceStable(feasible, func(i, j int) bool {
		a, b := &feasible[i], &feasible[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Total != b.Total {
			return a.Total < b.Total
		}
		return a.Size() > b.Size()
	})

	seen := make(map[string]struct{}, len(feasible))
	for i := range feasible {
		key := feasible[i].nameKey()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		result.Bundles = append(result.Bundles, feasible[i])
		if len(result.Bundles) == topK {
			break
		}
	}
	if result.Bundles == nil {
		result.Bundles = []Bundle{}
	}
	return result
}

// forEachCombination calls fn with every k-subset of [0, n) as ascending
// indices, in lexicographic order. fn must not retain idx.
func forEachCombination(n, k int, fn func(idx []int)) {
	if k <= 0 || k > n {
		return
	}
	idx := make([]int, k)
	for i := range idx {
		idx[i] = i
	}
	for {
		fn(idx)

		// Find the rightmost index that can still move right.
		i := k - 1
		for i >= 0 && idx[i] == n-k+i {
			i--
		}
		if i < 0 {
			return
		}
		idx[i]++
		for j := i + 1; j < k; j++ {
			idx[j] = idx[j-1] + 1
		}
	}
}
