// Crumb - Budget Bundle Recommendation and Customer Ledger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crumb

package recommend

import (
	"fmt"
	"slices"

	"github.com/tomtom215/crumb/internal/catalog"
)

// Config contains all configuration for the recommendation engine.
type Config struct {
	// Weights are the coefficients of the affinity score.
	Weights ScoreWeights `json:"weights"`

	// PopularTag is the tag that earns Weights.PopularBonus.
	PopularTag string `json:"popular_tag"`

	// CandidateCap is how many top-ranked items enter subset enumeration.
	// C(12,3) = 220 subsets is the worst case at the default.
	CandidateCap int `json:"candidate_cap"`

	// MinBundleSize and MaxBundleSize bound the number of items per bundle.
	MinBundleSize int `json:"min_bundle_size"`
	MaxBundleSize int `json:"max_bundle_size"`

	// TopK is the number of bundles returned when a request does not ask for a count.
	TopK int `json:"top_k"`

	// DrinkTopK is the number of drinks returned per drink category.
	DrinkTopK int `json:"drink_top_k"`

	// BakeryCategories are searched for bundles when a request names none.
	BakeryCategories []string `json:"bakery_categories"`

	// DrinkCategories are the categories accepted by RecommendDrinks.
	DrinkCategories []string `json:"drink_categories"`
}

// ScoreWeights are the coefficients of the affinity score:
//
//	TagMatch*|tags ∩ requested| + max(0, SweetnessWindow-|Δsweetness|) + PopularBonus*[popular]
type ScoreWeights struct {
	TagMatch        int `json:"tag_match"`
	SweetnessWindow int `json:"sweetness_window"`
	PopularBonus    int `json:"popular_bonus"`
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() *Config {
	return &Config{
		Weights: ScoreWeights{
			TagMatch:        3,
			SweetnessWindow: 3,
			PopularBonus:    2,
		},
		PopularTag:       catalog.PopularTag,
		CandidateCap:     12,
		MinBundleSize:    1,
		MaxBundleSize:    3,
		TopK:             3,
		DrinkTopK:        3,
		BakeryCategories: []string{"빵", "샌드위치", "샐러드", "디저트"},
		DrinkCategories:  []string{"커피", "라떼", "에이드", "스무디", "티"},
	}
}

// maxCandidateCap keeps C(cap, MaxBundleSize) within a few thousand subsets.
const maxCandidateCap = 24

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Weights.TagMatch < 0 || c.Weights.SweetnessWindow < 0 || c.Weights.PopularBonus < 0 {
		return fmt.Errorf("weights must be non-negative, got %+v", c.Weights)
	}
	if c.CandidateCap < 1 || c.CandidateCap > maxCandidateCap {
		return fmt.Errorf("candidate_cap must be in [1, %d], got %d", maxCandidateCap, c.CandidateCap)
	}
	if c.MinBundleSize < 1 {
		return fmt.Errorf("min_bundle_size must be positive, got %d", c.MinBundleSize)
	}
	if c.MaxBundleSize < c.MinBundleSize {
		return fmt.Errorf("max_bundle_size (%d) must be >= min_bundle_size (%d)", c.MaxBundleSize, c.MinBundleSize)
	}
	if c.MaxBundleSize > 4 {
		return fmt.Errorf("max_bundle_size must be at most 4, got %d", c.MaxBundleSize)
	}
	if c.TopK < 1 {
		return fmt.Errorf("top_k must be positive, got %d", c.TopK)
	}
	if c.DrinkTopK < 1 {
		return fmt.Errorf("drink_top_k must be positive, got %d", c.DrinkTopK)
	}
	if len(c.BakeryCategories) == 0 {
		return fmt.Errorf("bakery_categories must not be empty")
	}
	for _, cat := range c.DrinkCategories {
		if slices.Contains(c.BakeryCategories, cat) {
			return fmt.Errorf("category %q is listed as both bakery and drink", cat)
		}
	}
	return nil
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	clone.BakeryCategories = slices.Clone(c.BakeryCategories)
	clone.DrinkCategories = slices.Clone(c.DrinkCategories)
	return &clone
}
