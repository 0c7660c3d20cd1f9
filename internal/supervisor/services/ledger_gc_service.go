// Crumb - Budget Bundle Recommendation and Customer Ledger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crumb

package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/crumb/internal/ledger"
)

// GarbageCollector is satisfied by *badgerstore.Store.
type GarbageCollector interface {
	RunGC() error
}

// LedgerGCService runs value log garbage collection on an interval.
//
// A failed pass is logged and retried on the next tick. A closed store ends
// Serve with an error wrapping ledger.ErrClosed.
type LedgerGCService struct {
	gc       GarbageCollector
	interval time.Duration
	logger   zerolog.Logger
	name     string

	// runs is signalled after each pass.
	runs chan struct{}
}

// NewLedgerGCService creates the service. interval must be positive.
func NewLedgerGCService(gc GarbageCollector, interval time.Duration, logger zerolog.Logger) (*LedgerGCService, error) {
	if gc == nil {
		return nil, fmt.Errorf("ledger gc service needs a store")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("ledger gc interval must be positive, got %v", interval)
	}
	return &LedgerGCService{
		gc:       gc,
		interval: interval,
		logger:   logger.With().Str("component", "ledger-gc").Logger(),
		name:     "ledger-gc",
		runs:     make(chan struct{}, 1),
	}, nil
}

// Serve implements suture.Service.
func (s *LedgerGCService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			start := time.Now()
			err := s.gc.RunGC()
			switch {
			case errors.Is(err, ledger.ErrClosed):
				return fmt.Errorf("ledger gc: %w", err)
			case err != nil:
				s.logger.Warn().Err(err).Msg("Value log GC failed")
			default:
				s.logger.Debug().Dur("duration", time.Since(start)).Msg("Value log GC pass complete")
			}
			select {
			case s.runs <- struct{}{}:
			default:
			}
		}
	}
}

// Runs receives after each GC pass. Only one pending signal is kept.
func (s *LedgerGCService) Runs() <-chan struct{} {
	return s.runs
}

// String implements fmt.Stringer; suture names the service with it.
func (s *LedgerGCService) String() string {
	return s.name
}
