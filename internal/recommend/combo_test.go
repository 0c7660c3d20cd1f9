// Crumb - Budget Bundle Recommendation and Customer Ledger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crumb

package recommend

import (
	"errors"
	"fmt"
	"math/rand"
	"slices"
	"sort"
	"strings"
	"testing"

	"github.com/tomtom215/crumb/internal/catalog"
)

func TestSearchCombosBunCroissant(t *testing.T) {
	t.Parallel()

	items := []catalog.Item{
		{Category: "빵", Name: "Bun", Price: 2000, Sweetness: 1},
		{Category: "빵", Name: "Croissant", Price: 3500, Sweetness: 3, Tags: []string{catalog.PopularTag}},
	}

	got := SearchCombos(items, catalog.TagSet{}, 3, 5000, 3)
	if len(got) != 2 {
		t.Fatalf("got %d bundles, want 2: %+v", len(got), got)
	}

	if n := got[0].Names(); len(n) != 1 || n[0] != "Croissant" || got[0].Score != 5 || got[0].Total != 3500 {
		t.Errorf("first bundle = %v score=%d total=%d, want [Croissant] 5 3500", n, got[0].Score, got[0].Total)
	}
	if n := got[1].Names(); len(n) != 1 || n[0] != "Bun" || got[1].Score != 1 {
		t.Errorf("second bundle = %v score=%d, want [Bun] 1", n, got[1].Score)
	}
	for _, b := range got {
		if b.Size() == 2 {
			t.Errorf("pair totalling %d exceeds budget 5000 but was returned", b.Total)
		}
	}
}

func TestSearchCombosPairWhenAffordable(t *testing.T) {
	t.Parallel()

	items := []catalog.Item{
		{Name: "Bun", Price: 2000, Sweetness: 1},
		{Name: "Croissant", Price: 3500, Sweetness: 3, Tags: []string{catalog.PopularTag}},
	}

	got := SearchCombos(items, catalog.TagSet{}, 3, 6000, 3)
	if len(got) != 3 {
		t.Fatalf("got %d bundles, want 3", len(got))
	}
	if got[0].Size() != 2 || got[0].Score != 6 || got[0].Total != 5500 {
		t.Errorf("best bundle = %v score=%d total=%d, want pair 6 5500", got[0].Names(), got[0].Score, got[0].Total)
	}
}

func TestSearchCombosZeroBudget(t *testing.T) {
	t.Parallel()

	items := []catalog.Item{{Name: "Bun", Price: 2000}, {Name: "Tea", Price: 1}}
	got := SearchCombos(items, catalog.TagSet{}, 3, 0, 3)
	if got == nil || len(got) != 0 {
		t.Errorf("SearchCombos(budget 0) = %#v, want empty slice", got)
	}
}

func TestSearchCombosEmptyPool(t *testing.T) {
	t.Parallel()

	if got := SearchCombos(nil, catalog.TagSet{}, 3, 10000, 3); len(got) != 0 {
		t.Errorf("SearchCombos(nil) = %v, want empty", got)
	}
}

func TestSearchCombosTieBreaks(t *testing.T) {
	t.Parallel()

	// All items score 0 (sweetness far away, no tags), so order is by total
	// ascending and then by size descending.
	items := []catalog.Item{
		{Name: "A", Price: 1000, Sweetness: 5},
		{Name: "B", Price: 0, Sweetness: 5},
		{Name: "C", Price: 500, Sweetness: 5},
	}

	got := SearchCombos(items, catalog.TagSet{}, 0, 1000, 4)
	want := []string{"B", "B+C", "C", "A+B"}
	var gotKeys []string
	for _, b := range got {
		n := b.Names()
		sort.Strings(n)
		gotKeys = append(gotKeys, strings.Join(n, "+"))
	}
	if !slices.Equal(gotKeys, want) {
		t.Errorf("bundles = %v, want %v", gotKeys, want)
	}
}

func TestSearchCombosPrefersLargerBundleOnFullTie(t *testing.T) {
	t.Parallel()

	// Bread alone and Water+Bread tie on score and total.
	items := []catalog.Item{
		{Name: "Water", Price: 0, Sweetness: 5},
		{Name: "Bread", Price: 1000, Sweetness: 0},
	}
	got := SearchCombos(items, catalog.TagSet{}, 0, 1000, 1)
	if len(got) != 1 || got[0].Size() != 2 {
		t.Errorf("got %v, want the two-item bundle first", got)
	}
}

func TestSearchCombosDeduplicatesByNames(t *testing.T) {
	t.Parallel()

	// The same pastry sold in two categories yields two rows with one name.
	items := []catalog.Item{
		{Category: "빵", Name: "Madeleine", Price: 2200, Sweetness: 4},
		{Category: "디저트", Name: "Madeleine", Price: 2200, Sweetness: 4},
		{Category: "빵", Name: "Bun", Price: 2000, Sweetness: 4},
	}

	got := SearchCombos(items, catalog.TagSet{}, 4, 10000, 10)
	seen := map[string]bool{}
	for _, b := range got {
		n := b.Names()
		sort.Strings(n)
		key := strings.Join(n, "+")
		if seen[key] {
			t.Errorf("duplicate bundle %s", key)
		}
		seen[key] = true
	}
	// Distinct name multisets: M, B, M+M, M+B, M+M+B.
	if len(got) != 5 {
		t.Errorf("got %d bundles, want 5: %v", len(got), seen)
	}
}

func TestSearchCombosCandidateCap(t *testing.T) {
	t.Parallel()

	var items []catalog.Item
	for i := 0; i < 20; i++ {
		items = append(items, catalog.Item{Name: fmt.Sprintf("item-%02d", i), Price: int64(100 + i), Sweetness: 3})
	}

	res := DefaultConfig().SearchCombos(items, catalog.TagSet{}, 3, 1_000_000, 3)
	if res.Candidates != 12 {
		t.Errorf("Candidates = %d, want 12", res.Candidates)
	}
	// C(12,1)+C(12,2)+C(12,3) = 12+66+220
	if res.SubsetsEvaluated != 298 {
		t.Errorf("SubsetsEvaluated = %d, want 298", res.SubsetsEvaluated)
	}
	for _, b := range res.Bundles {
		for _, it := range b.Items {
			if it.Price >= 112 {
				t.Errorf("bundle uses %s which is outside the top 12 candidates", it.Name)
			}
		}
	}
}

func TestSearchCombosCustomSizeRange(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.MinBundleSize = 2
	cfg.MaxBundleSize = 2
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}

	items := []catalog.Item{{Name: "A", Price: 1}, {Name: "B", Price: 1}, {Name: "C", Price: 1}}
	res := cfg.SearchCombos(items, catalog.TagSet{}, 0, 100, 10)
	for _, b := range res.Bundles {
		if b.Size() != 2 {
			t.Errorf("bundle size %d outside configured range", b.Size())
		}
	}
	if len(res.Bundles) != 3 {
		t.Errorf("got %d pairs, want 3", len(res.Bundles))
	}
}

func TestSearchCombosDefaultTopK(t *testing.T) {
	t.Parallel()

	items := []catalog.Item{{Name: "A", Price: 1}, {Name: "B", Price: 2}, {Name: "C", Price: 3}}
	if got := SearchCombos(items, catalog.TagSet{}, 0, 100, 0); len(got) != 3 {
		t.Errorf("topK=0 returned %d bundles, want default 3", len(got))
	}
}

// TestSearchCombosProperties checks the result contract on random catalogs
// against a brute force enumeration of the same candidates.
func TestSearchCombosProperties(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(7)) //nolint:gosec // deterministic test data
	vocab := []string{"#달콤한", "#짭짤한", "#고소한", "#바삭한", catalog.PopularTag}

	for round := 0; round < 200; round++ {
		n := rng.Intn(16)
		items := make([]catalog.Item, n)
		for i := range items {
			var tags []string
			for _, tag := range vocab {
				if rng.Intn(3) == 0 {
					tags = append(tags, tag)
				}
			}
			items[i] = catalog.Item{
				Name:      fmt.Sprintf("p%d", rng.Intn(10)),
				Price:     int64(rng.Intn(50)) * 100,
				Sweetness: rng.Intn(6),
				Tags:      tags,
			}
		}
		requested := mustTags(t, vocab[rng.Intn(4)])
		sweetness := rng.Intn(6)
		budget := int64(rng.Intn(80)) * 100
		topK := 1 + rng.Intn(5)

		got := SearchCombos(items, requested, sweetness, budget, topK)

		distinct := bruteForceDistinct(items, requested, sweetness, budget)
		if len(got) > topK || len(got) > len(distinct) {
			t.Fatalf("round %d: %d bundles, topK %d, distinct feasible %d", round, len(got), topK, len(distinct))
		}
		if len(got) < topK && len(got) != len(distinct) {
			t.Fatalf("round %d: returned %d of %d distinct feasible bundles", round, len(got), len(distinct))
		}

		seen := map[string]bool{}
		for i, b := range got {
			if b.Total > budget {
				t.Fatalf("round %d: bundle total %d exceeds budget %d", round, b.Total, budget)
			}
			if b.Size() < 1 || b.Size() > 3 {
				t.Fatalf("round %d: bundle size %d", round, b.Size())
			}
			key := b.nameKey()
			if seen[key] {
				t.Fatalf("round %d: duplicate name set %q", round, key)
			}
			seen[key] = true

			if i > 0 && !ordered(&got[i-1], &b) {
				t.Fatalf("round %d: bundles %d and %d out of order", round, i-1, i)
			}
		}
		if len(got) > 0 && len(distinct) > 0 {
			best := 0
			for _, score := range distinct {
				if score > best {
					best = score
				}
			}
			if got[0].Score != best {
				t.Fatalf("round %d: best score %d, brute force %d", round, got[0].Score, best)
			}
		}
	}
}

func ordered(a, b *Bundle) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.Total != b.Total {
		return a.Total < b.Total
	}
	return a.Size() >= b.Size()
}

// bruteForceDistinct returns the best score per distinct feasible name set
// among subsets of the top 12 ranked items.
func bruteForceDistinct(items []catalog.Item, requested catalog.TagSet, sweetness int, budget int64) map[string]int {
	ranked := Rank(items, requested, sweetness)
	if len(ranked) > 12 {
		ranked = ranked[:12]
	}
	out := map[string]int{}
	for mask := 1; mask < 1<<len(ranked); mask++ {
		var b Bundle
		for i := range ranked {
			if mask&(1<<i) != 0 {
				b.Items = append(b.Items, ranked[i])
				b.Total += ranked[i].Price
				b.Score += ranked[i].Score
			}
		}
		if b.Size() > 3 || b.Total > budget {
			continue
		}
		key := b.nameKey()
		if prev, ok := out[key]; !ok || b.Score > prev {
			out[key] = b.Score
		}
	}
	return out
}

func TestCheckBudget(t *testing.T) {
	t.Parallel()

	items := []catalog.Item{{Price: 3000}, {Price: 2200}}

	if err := CheckBudget(items, 2200); err != nil {
		t.Errorf("CheckBudget(2200) = %v, want nil", err)
	}
	if err := CheckBudget(items, 2199); !errors.Is(err, ErrBudgetBelowMinimum) {
		t.Errorf("CheckBudget(2199) = %v, want ErrBudgetBelowMinimum", err)
	}
	if err := CheckBudget(nil, 5000); err != nil {
		t.Errorf("CheckBudget(nil) = %v, want nil for an empty pool", err)
	}
}

func TestForEachCombination(t *testing.T) {
	t.Parallel()

	var got []string
	forEachCombination(4, 2, func(idx []int) {
		got = append(got, fmt.Sprint(idx))
	})
	want := []string{"[0 1]", "[0 2]", "[0 3]", "[1 2]", "[1 3]", "[2 3]"}
	if !slices.Equal(got, want) {
		t.Errorf("combinations = %v, want %v", got, want)
	}

	calls := 0
	forEachCombination(2, 3, func([]int) { calls++ })
	forEachCombination(3, 0, func([]int) { calls++ })
	if calls != 0 {
		t.Errorf("degenerate combinations produced %d calls", calls)
	}
}
