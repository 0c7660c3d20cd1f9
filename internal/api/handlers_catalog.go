// Crumb - Budget Bundle Recommendation and Customer Ledger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crumb

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/crumb/internal/catalog"
	"github.com/tomtom215/crumb/internal/logging"
)

// HealthStatus is the payload of GET /api/v1/health.
type HealthStatus struct {
	Status         string    `json:"status"`
	Version        string    `json:"version,omitempty"`
	Uptime         float64   `json:"uptime_seconds"`
	CatalogVersion string    `json:"catalog_version,omitempty"`
	CatalogItems   int       `json:"catalog_items"`
	CatalogLoaded  time.Time `json:"catalog_loaded_at"`
	EventBreaker   string    `json:"event_breaker,omitempty"`
}

// CatalogResponse is the payload of GET /api/v1/catalog.
type CatalogResponse struct {
	Version    string         `json:"version"`
	Categories []string       `json:"categories"`
	Items      []catalog.Item `json:"items"`
}

// TagsResponse is the payload of GET /api/v1/catalog/tags.
type TagsResponse struct {
	Tags             []string `json:"tags"`
	MaxSelected      int      `json:"max_selected"`
	PopularTag       string   `json:"popular_tag"`
	BakeryCategories []string `json:"bakery_categories"`
	DrinkCategories  []string `json:"drink_categories"`
}

// Health reports liveness. A catalog that cannot be loaded makes the service
// degraded but still answers 200 so the process is not restarted for a bad file.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := HealthStatus{
		Status:  "healthy",
		Version: h.version,
		Uptime:  time.Since(h.startTime).Seconds(),
	}

	if view, err := h.catalog.View(); err != nil {
		status.Status = "degraded"
		logging.Ctx(r.Context()).Warn().Err(err).Msg("Health check could not load the catalog")
	} else {
		status.CatalogVersion = view.Version()
		status.CatalogItems = view.Len()
		status.CatalogLoaded = view.LoadedAt()
	}

	if h.events != nil {
		status.EventBreaker = h.events.BreakerState()
		if status.EventBreaker == "open" {
			status.Status = "degraded"
		}
	}

	respondData(w, r, http.StatusOK, status, start)
}

// Catalog returns the current catalog.
func (h *Handler) Catalog(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	view, err := h.catalog.View()
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondData(w, r, http.StatusOK, CatalogResponse{
		Version:    view.Version(),
		Categories: view.Categories(),
		Items:      view.Items(),
	}, start)
}

// CatalogTags returns the selectable tag vocabulary.
func (h *Handler) CatalogTags(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	cfg := h.recommender.Config()
	respondData(w, r, http.StatusOK, TagsResponse{
		Tags:             append([]string(nil), catalog.DefaultTags...),
		MaxSelected:      catalog.MaxSelectedTags,
		PopularTag:       cfg.PopularTag,
		BakeryCategories: cfg.BakeryCategories,
		DrinkCategories:  cfg.DrinkCategories,
	}, start)
}

// ReloadCatalog reloads the catalog source. A failed reload keeps serving the
// previous catalog.
func (h *Handler) ReloadCatalog(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	view, err := h.catalog.Reload()
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	logging.Ctx(r.Context()).Info().
		Str("version", view.Version()).
		Int("items", view.Len()).
		Msg("Catalog reloaded on request")

	respondData(w, r, http.StatusOK, map[string]interface{}{
		"version": view.Version(),
		"items":   view.Len(),
	}, start)
}
