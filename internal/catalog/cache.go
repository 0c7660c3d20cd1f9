// Crumb - Budget Bundle Recommendation and Customer Ledger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crumb

package catalog

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/tomtom215/crumb/internal/metrics"
)

// LoadFunc loads a catalog view from a source path.
type LoadFunc func(path string) (*View, error)

// Cache holds one loaded View per source path.
//
// A source is loaded on first use and then served unchanged until Reload is
// called for it. Views themselves are immutable, so a caller holding a View
// keeps a consistent snapshot across a concurrent reload.
type Cache struct {
	mu     sync.RWMutex
	views  map[string]*View
	load   LoadFunc
	logger zerolog.Logger
}

// NewCache creates a cache that loads sources with load (LoadFile when nil).
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewCache(load LoadFunc, logger zerolog.Logger) *Cache {
	if load == nil {
		load = LoadFile
	}
	return &Cache{
		views:  make(map[string]*View),
		load:   load,
		logger: logger.With().Str("component", "catalog").Logger(),
	}
}

// Get returns the cached view for path, loading it on first use.
func (c *Cache) Get(path string) (*View, error) {
	c.mu.RLock()
	view, ok := c.views[path]
	c.mu.RUnlock()
	if ok {
		return view, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Another caller may have loaded it while we waited for the write lock.
	if view, ok := c.views[path]; ok {
		return view, nil
	}
	return c.loadLocked(path)
}

// Reload replaces the cached view for path with a fresh load.
// On failure the previous view, if any, stays in place.
func (c *Cache) Reload(path string) (*View, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadLocked(path)
}

// loadLocked must be called with mu held for writing.
func (c *Cache) loadLocked(path string) (*View, error) {
	view, err := c.load(path)
	metrics.RecordCatalogLoad(lenOf(view), err)
	if err != nil {
		c.logger.Error().Err(err).Str("source", path).Msg("Catalog load failed")
		return nil, err
	}

	previous := c.views[path]
	c.views[path] = view

	event := c.logger.Info().
		Str("source", path).
		Str("version", view.Version()).
		Int("items", view.Len())
	if previous != nil {
		event = event.Str("previous_version", previous.Version())
	}
	event.Msg("Catalog loaded")

	return view, nil
}

func lenOf(v *View) int {
	if v == nil {
		return 0
	}
	return v.Len()
}

// Source binds a cache to one path. It satisfies the recommender's catalog
// provider interface.
type Source struct {
	cache *Cache
	path  string
}

// Source returns a handle serving the view cached for path.
func (c *Cache) Source(path string) *Source {
	return &Source{cache: c, path: path}
}

// View returns the cached view, loading it on first use.
func (s *Source) View() (*View, error) {
	return s.cache.Get(s.path)
}

// Reload forces a fresh load of the source.
func (s *Source) Reload() (*View, error) {
	return s.cache.Reload(s.path)
}

// Path returns the source path.
func (s *Source) Path() string {
	return s.path
}
