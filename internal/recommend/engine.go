// Crumb - Budget Bundle Recommendation and Customer Ledger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crumb

// Package recommend builds budget-constrained bundle recommendations from the
// catalog.
//
// The scoring, ranking and combo search functions are pure and safe for
// concurrent use. Engine wraps them with catalog access, request validation,
// metrics and visit logging for identified customers.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/crumb/internal/catalog"
	"github.com/tomtom215/crumb/internal/logging"
	"github.com/tomtom215/crumb/internal/metrics"
)

var (
	// ErrInvalidRequest wraps request parameter errors.
	ErrInvalidRequest = errors.New("invalid recommendation request")

	// ErrUnknownCategory is returned for a drink category the engine does not serve.
	ErrUnknownCategory = errors.New("unknown category")
)

// CatalogProvider returns the current catalog snapshot.
type CatalogProvider interface {
	View() (*catalog.View, error)
}

// VisitRecorder persists one recommendation visit of an identified customer.
type VisitRecorder interface {
	RecordVisit(ctx context.Context, customerID string, budget int64, sweetness int, tags []string) error
}

// BundleRequest asks for bundles within a budget.
type BundleRequest struct {
	// CustomerID attributes the request to an identified customer. Empty
	// means anonymous; anonymous requests are not logged.
	CustomerID string

	Budget    int64
	Sweetness int
	Tags      []string

	// Categories restricts the pool. Empty uses the configured bakery categories.
	Categories []string

	// TopK overrides the configured number of bundles when positive.
	TopK int
}

// BundleResponse is the result of RecommendBundles.
type BundleResponse struct {
	Bundles          []Bundle `json:"bundles"`
	Candidates       int      `json:"candidates"`
	SubsetsEvaluated int      `json:"subsets_evaluated"`
	CatalogVersion   string   `json:"catalog_version"`
	VisitLogged      bool     `json:"visit_logged"`
}

// Engine serves bundle and drink recommendations. It is safe for concurrent use.
type Engine struct {
	config   *Config
	catalog  CatalogProvider
	recorder VisitRecorder
	logger   zerolog.Logger

	requestCount atomic.Int64
	emptyCount   atomic.Int64
}

// NewEngine creates a recommendation engine. recorder may be nil, in which
// case visits are not logged.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewEngine(cfg *Config, provider CatalogProvider, recorder VisitRecorder, logger zerolog.Logger) (*Engine, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if provider == nil {
		return nil, errors.New("catalog provider is required")
	}

	return &Engine{
		config:   cfg.Clone(),
		catalog:  provider,
		recorder: recorder,
		logger:   logger.With().Str("component", "recommend").Logger(),
	}, nil
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() *Config {
	return e.config.Clone()
}

// RecommendBundles validates req, checks that the budget covers at least one
// item and runs the combo search. A search with no feasible bundle returns an
// empty Bundles slice and a nil error.
//
// Errors: ErrInvalidRequest (bad sweetness, budget or tags),
// ErrBudgetBelowMinimum from the budget pre-check. A category filter that
// matches nothing yields no bundles, not an error.
func (e *Engine) RecommendBundles(ctx context.Context, req BundleRequest) (*BundleResponse, error) {
	start := time.Now()
	e.requestCount.Add(1)

	tags, err := e.validateBundleRequest(req)
	if err != nil {
		metrics.RecordSearch("bundle", metrics.OutcomeRejected, 0, time.Since(start))
		return nil, err
	}

	view, err := e.catalog.View()
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	categories := req.Categories
	if len(categories) == 0 {
		categories = e.config.BakeryCategories
	}
	pool := view.InCategories(categories...)

	if err := CheckBudget(pool, req.Budget); err != nil {
		metrics.RecordSearch("bundle", metrics.OutcomeRejected, 0, time.Since(start))
		logging.Ctx(ctx).Debug().Err(err).Int64("budget", req.Budget).Msg("Bundle search rejected by budget pre-check")
		return nil, err
	}

	result := e.config.SearchCombos(pool, tags, req.Sweetness, req.Budget, req.TopK)
	resp := &BundleResponse{
		Bundles:          result.Bundles,
		Candidates:       result.Candidates,
		SubsetsEvaluated: result.SubsetsEvaluated,
		CatalogVersion:   view.Version(),
	}

	outcome := metrics.OutcomeSuccess
	if len(resp.Bundles) == 0 {
		outcome = metrics.OutcomeEmpty
		e.emptyCount.Add(1)
	}
	metrics.RecordSearch("bundle", outcome, result.SubsetsEvaluated, time.Since(start))

	if len(resp.Bundles) > 0 && req.CustomerID != "" && e.recorder != nil {
		if err := e.recorder.RecordVisit(ctx, req.CustomerID, req.Budget, req.Sweetness, tags.Slice()); err != nil {
			// The recommendation itself succeeded; a lost visit row is not worth failing it.
			logging.Ctx(ctx).Warn().Err(err).Str("customer_id", req.CustomerID).Msg("Failed to record visit")
		} else {
			resp.VisitLogged = true
		}
	}

	logging.Ctx(ctx).Debug().
		Int64("budget", req.Budget).
		Int("sweetness", req.Sweetness).
		Int("candidates", result.Candidates).
		Int("subsets", result.SubsetsEvaluated).
		Int("bundles", len(resp.Bundles)).
		Dur("duration", time.Since(start)).
		Msg("Bundle search completed")

	return resp, nil
}

func (e *Engine) validateBundleRequest(req BundleRequest) (catalog.TagSet, error) {
	if req.Budget < 0 {
		return catalog.TagSet{}, fmt.Errorf("%w: budget must be non-negative, got %d", ErrInvalidRequest, req.Budget)
	}
	if err := validSweetness(req.Sweetness); err != nil {
		return catalog.TagSet{}, err
	}
	tags, err := catalog.NewTagSet(req.Tags...)
	if err != nil {
		return catalog.TagSet{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return tags, nil
}

func validSweetness(sweetness int) error {
	if sweetness < 0 || sweetness > 5 {
		return fmt.Errorf("%w: sweetness must be in [0, 5], got %d", ErrInvalidRequest, sweetness)
	}
	return nil
}

// RecommendDrinks ranks the drinks of one category by sweetness affinity and
// returns the best DrinkTopK. Tags play no part in drink ranking.
func (e *Engine) RecommendDrinks(ctx context.Context, category string, sweetness int) ([]ScoredItem, error) {
	start := time.Now()
	e.requestCount.Add(1)

	if !slices.Contains(e.config.DrinkCategories, category) {
		metrics.RecordSearch("drink", metrics.OutcomeRejected, 0, time.Since(start))
		return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
	if err := validSweetness(sweetness); err != nil {
		metrics.RecordSearch("drink", metrics.OutcomeRejected, 0, time.Since(start))
		return nil, err
	}

	view, err := e.catalog.View()
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	ranked := e.config.Rank(view.InCategories(category), catalog.TagSet{}, sweetness)
	if len(ranked) > e.config.DrinkTopK {
		ranked = ranked[:e.config.DrinkTopK]
	}

	outcome := metrics.OutcomeSuccess
	if len(ranked) == 0 {
		outcome = metrics.OutcomeEmpty
	}
	metrics.RecordSearch("drink", outcome, 0, time.Since(start))

	logging.Ctx(ctx).Debug().
		Str("category", category).
		Int("sweetness", sweetness).
		Int("results", len(ranked)).
		Msg("Drink ranking completed")

	return ranked, nil
}

// Stats reports request counters since the engine was created.
type Stats struct {
	Requests      int64 `json:"requests"`
	EmptyResults  int64 `json:"empty_results"`
	CandidateCap  int   `json:"candidate_cap"`
	MaxBundleSize int   `json:"max_bundle_size"`
}

// Stats returns a snapshot of the engine counters.
func (e *Engine) Stats() Stats {
	return Stats{
		Requests:      e.requestCount.Load(),
		EmptyResults:  e.emptyCount.Load(),
		CandidateCap:  e.config.CandidateCap,
		MaxBundleSize: e.config.MaxBundleSize,
	}
}
