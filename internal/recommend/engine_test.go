// Crumb - Budget Bundle Recommendation and Customer Ledger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crumb

package recommend

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/tomtom215/crumb/internal/catalog"
)

// staticCatalog implements CatalogProvider over a fixed view.
type staticCatalog struct {
	view *catalog.View
	err  error
}

func (s *staticCatalog) View() (*catalog.View, error) {
	return s.view, s.err
}

// mockRecorder implements VisitRecorder for testing.
type mockRecorder struct {
	mu     sync.Mutex
	visits []string
	err    error
}

func (m *mockRecorder) RecordVisit(_ context.Context, customerID string, _ int64, _ int, _ []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.visits = append(m.visits, customerID)
	return nil
}

func (m *mockRecorder) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.visits)
}

func newTestEngine(t *testing.T, recorder VisitRecorder) *Engine {
	t.Helper()

	view, err := catalog.LoadFile("../catalog/testdata/catalog.csv")
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	engine, err := NewEngine(nil, &staticCatalog{view: view}, recorder, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	return engine
}

func TestNewEngine(t *testing.T) {
	t.Parallel()

	provider := &staticCatalog{view: catalog.NewView(nil, "mem", "v0")}

	tests := []struct {
		name     string
		cfg      *Config
		provider CatalogProvider
		wantErr  bool
	}{
		{"nil config uses defaults", nil, provider, false},
		{"custom valid config", &Config{
			Weights:          ScoreWeights{TagMatch: 1, SweetnessWindow: 2},
			CandidateCap:     6,
			MinBundleSize:    1,
			MaxBundleSize:    2,
			TopK:             5,
			DrinkTopK:        1,
			BakeryCategories: []string{"빵"},
		}, provider, false},
		{"invalid config", &Config{CandidateCap: 0}, provider, true},
		{"missing provider", nil, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewEngine(tt.cfg, tt.provider, nil, zerolog.Nop())
			if (err != nil) != tt.wantErr {
				t.Errorf("NewEngine() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative weight", func(c *Config) { c.Weights.TagMatch = -1 }},
		{"cap too large", func(c *Config) { c.CandidateCap = 100 }},
		{"min size zero", func(c *Config) { c.MinBundleSize = 0 }},
		{"max below min", func(c *Config) { c.MinBundleSize = 3; c.MaxBundleSize = 2 }},
		{"max size five", func(c *Config) { c.MaxBundleSize = 5 }},
		{"top k zero", func(c *Config) { c.TopK = 0 }},
		{"no bakery categories", func(c *Config) { c.BakeryCategories = nil }},
		{"overlapping categories", func(c *Config) { c.DrinkCategories = append(c.DrinkCategories, "빵") }},
	}

	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("DefaultConfig().Validate() = %v", err)
	}
	for _, tt := range tests {
		cfg := DefaultConfig()
		tt.mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: Validate() = nil, want error", tt.name)
		}
	}
}

func TestConfigCloneIsDeep(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	clone := cfg.Clone()
	clone.BakeryCategories[0] = "changed"
	if cfg.BakeryCategories[0] == "changed" {
		t.Error("Clone() shares BakeryCategories with the original")
	}
}

func TestRecommendBundlesUsesBakeryCategories(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t, nil)
	resp, err := engine.RecommendBundles(context.Background(), BundleRequest{
		Budget:    9000,
		Sweetness: 4,
		Tags:      []string{"#달콤한"},
	})
	if err != nil {
		t.Fatalf("RecommendBundles() error = %v", err)
	}
	if len(resp.Bundles) != 3 {
		t.Fatalf("got %d bundles, want 3", len(resp.Bundles))
	}
	for _, b := range resp.Bundles {
		if b.Total > 9000 {
			t.Errorf("bundle total %d over budget", b.Total)
		}
		for _, it := range b.Items {
			switch it.Category {
			case "빵", "샌드위치", "샐러드", "디저트":
			default:
				t.Errorf("bundle contains drink %s (%s)", it.Name, it.Category)
			}
		}
	}
	if resp.CatalogVersion == "" {
		t.Error("CatalogVersion should be set")
	}
	// 7 bakery items: C(7,1)+C(7,2)+C(7,3) = 7+21+35
	if resp.Candidates != 7 || resp.SubsetsEvaluated != 63 {
		t.Errorf("Candidates=%d SubsetsEvaluated=%d, want 7 and 63", resp.Candidates, resp.SubsetsEvaluated)
	}
}

func TestRecommendBundlesBudgetBelowMinimum(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t, nil)
	// The cheapest bakery item costs 2200.
	_, err := engine.RecommendBundles(context.Background(), BundleRequest{Budget: 2000, Sweetness: 3})
	if !errors.Is(err, ErrBudgetBelowMinimum) {
		t.Errorf("error = %v, want ErrBudgetBelowMinimum", err)
	}
}

func TestRecommendBundlesUnknownCategoryIsEmpty(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t, nil)
	resp, err := engine.RecommendBundles(context.Background(),
		BundleRequest{Budget: 9000, Sweetness: 3, Categories: []string{"피자"}})
	if err != nil {
		t.Fatalf("RecommendBundles() error = %v, want nil", err)
	}
	if resp.Bundles == nil || len(resp.Bundles) != 0 {
		t.Errorf("Bundles = %#v, want an empty non-nil slice", resp.Bundles)
	}
	if resp.Candidates != 0 {
		t.Errorf("Candidates = %d, want 0", resp.Candidates)
	}
}

func TestRecommendBundlesInvalidRequests(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t, nil)
	tests := []struct {
		name string
		req  BundleRequest
	}{
		{"negative budget", BundleRequest{Budget: -1}},
		{"sweetness too high", BundleRequest{Budget: 5000, Sweetness: 6}},
		{"four tags", BundleRequest{Budget: 5000, Tags: []string{"#a", "#b", "#c", "#d"}}},
	}
	for _, tt := range tests {
		_, err := engine.RecommendBundles(context.Background(), tt.req)
		if !errors.Is(err, ErrInvalidRequest) {
			t.Errorf("%s: error = %v, want ErrInvalidRequest", tt.name, err)
		}
	}

	_, err := engine.RecommendBundles(context.Background(), BundleRequest{Budget: 5000, Tags: []string{"#a", "#b", "#c", "#d"}})
	if !errors.Is(err, catalog.ErrTooManyTags) {
		t.Errorf("error = %v, want to wrap ErrTooManyTags", err)
	}
}

func TestRecommendBundlesLogsVisitOnlyForIdentifiedNonEmpty(t *testing.T) {
	t.Parallel()

	recorder := &mockRecorder{}
	engine := newTestEngine(t, recorder)
	ctx := context.Background()

	anon, err := engine.RecommendBundles(ctx, BundleRequest{Budget: 5000, Sweetness: 2})
	if err != nil {
		t.Fatal(err)
	}
	if anon.VisitLogged || recorder.count() != 0 {
		t.Errorf("anonymous request logged a visit")
	}

	identified, err := engine.RecommendBundles(ctx, BundleRequest{CustomerID: "cust-1", Budget: 5000, Sweetness: 2})
	if err != nil {
		t.Fatal(err)
	}
	if !identified.VisitLogged || recorder.count() != 1 {
		t.Errorf("identified request: VisitLogged=%v visits=%d, want true and 1", identified.VisitLogged, recorder.count())
	}

	failing := &mockRecorder{err: errors.New("ledger down")}
	engine = newTestEngine(t, failing)
	resp, err := engine.RecommendBundles(ctx, BundleRequest{CustomerID: "cust-1", Budget: 5000, Sweetness: 2})
	if err != nil {
		t.Fatalf("visit failure should not fail the recommendation: %v", err)
	}
	if resp.VisitLogged {
		t.Error("VisitLogged = true after recorder failure")
	}
}

func TestRecommendBundlesEmptyResultNotLogged(t *testing.T) {
	t.Parallel()

	recorder := &mockRecorder{}
	view := catalog.NewView([]catalog.Item{{Category: "빵", Name: "Bun", Price: 2000}}, "mem", "v1")
	cfg := DefaultConfig()
	cfg.MinBundleSize = 2
	cfg.MaxBundleSize = 3
	engine, err := NewEngine(cfg, &staticCatalog{view: view}, recorder, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}

	// The single item is affordable, but no bundle of size >= 2 exists.
	resp, err := engine.RecommendBundles(context.Background(), BundleRequest{CustomerID: "cust-1", Budget: 5000})
	if err != nil {
		t.Fatalf("RecommendBundles() error = %v", err)
	}
	if len(resp.Bundles) != 0 || resp.Bundles == nil {
		t.Errorf("Bundles = %#v, want empty non-nil", resp.Bundles)
	}
	if recorder.count() != 0 {
		t.Error("visit logged for an empty result")
	}
	if engine.Stats().EmptyResults != 1 {
		t.Errorf("EmptyResults = %d, want 1", engine.Stats().EmptyResults)
	}
}

func TestRecommendBundlesCatalogError(t *testing.T) {
	t.Parallel()

	boom := errors.New("catalog missing")
	engine, err := NewEngine(nil, &staticCatalog{err: boom}, nil, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := engine.RecommendBundles(context.Background(), BundleRequest{Budget: 5000}); !errors.Is(err, boom) {
		t.Errorf("error = %v, want catalog error", err)
	}
}

func TestRecommendDrinks(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t, nil)
	ctx := context.Background()

	coffee, err := engine.RecommendDrinks(ctx, "커피", 4)
	if err != nil {
		t.Fatalf("RecommendDrinks() error = %v", err)
	}
	if len(coffee) != 2 || coffee[0].Name != "카페모카" {
		t.Errorf("coffee ranking = %v, want 카페모카 first of 2", names(coffee))
	}

	smoothie, err := engine.RecommendDrinks(ctx, "스무디", 2)
	if err != nil || len(smoothie) != 0 {
		t.Errorf("smoothie = %v, %v; want empty, nil", smoothie, err)
	}

	if _, err := engine.RecommendDrinks(ctx, "빵", 2); !errors.Is(err, ErrUnknownCategory) {
		t.Errorf("bakery category as drink: error = %v, want ErrUnknownCategory", err)
	}
	if _, err := engine.RecommendDrinks(ctx, "커피", -1); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("negative sweetness: error = %v, want ErrInvalidRequest", err)
	}
}

func TestRecommendDrinksTopK(t *testing.T) {
	t.Parallel()

	var items []catalog.Item
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		items = append(items, catalog.Item{Category: "티", Name: name, Price: 4000, Sweetness: 1})
	}
	engine, err := NewEngine(nil, &staticCatalog{view: catalog.NewView(items, "mem", "v1")}, nil, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}

	got, err := engine.RecommendDrinks(context.Background(), "티", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Errorf("got %d drinks, want DrinkTopK 3", len(got))
	}
}

func TestEngineConcurrentRequests(t *testing.T) {
	t.Parallel()

	recorder := &mockRecorder{}
	engine := newTestEngine(t, recorder)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := engine.RecommendBundles(context.Background(), BundleRequest{
				CustomerID: "cust",
				Budget:     int64(5000 + i*100),
				Sweetness:  i % 6,
			})
			if err != nil {
				t.Errorf("RecommendBundles() error = %v", err)
			}
		}(i)
	}
	wg.Wait()

	if got := engine.Stats().Requests; got != 20 {
		t.Errorf("Requests = %d, want 20", got)
	}
	if recorder.count() != 20 {
		t.Errorf("visits = %d, want 20", recorder.count())
	}
}
