// Crumb - Budget Bundle Recommendation and Customer Ledger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crumb

// Package identity maps a customer's contact value to a stable customer id
// without storing the contact itself.
//
// Resolution is an upsert keyed by the salted contact digest. Two concurrent
// first resolutions of the same contact race on the store's unique digest
// constraint; the loser re-reads and returns the winner's id.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tomtom215/crumb/internal/ledger"
	"github.com/tomtom215/crumb/internal/logging"
	"github.com/tomtom215/crumb/internal/metrics"
)

// CustomerStore is the subset of ledger.Store the resolver needs.
type CustomerStore interface {
	CustomerByDigest(ctx context.Context, digest string) (ledger.Customer, error)
	InsertCustomer(ctx context.Context, c ledger.Customer) error
	TouchCustomer(ctx context.Context, id string, at time.Time) error
}

// ResolveResult is the outcome of Resolve.
type ResolveResult struct {
	CustomerID string `json:"customer_id"`
	Created    bool   `json:"created"`
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

// WithNotifier publishes TopicCustomerCreated for new customers.
func WithNotifier(n ledger.Notifier) Option {
	return func(r *Resolver) { r.notifier = n }
}

// WithAttempts bounds the read-insert cycles per resolution.
func WithAttempts(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.attempts = n
		}
	}
}

// Resolver resolves contacts to customer ids. It is safe for concurrent use.
type Resolver struct {
	store    CustomerStore
	hasher   *Hasher
	now      func() time.Time
	attempts int
	notifier ledger.Notifier
	logger   zerolog.Logger
}

// NewResolver creates a resolver.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewResolver(store CustomerStore, hasher *Hasher, logger zerolog.Logger, opts ...Option) (*Resolver, error) {
	if store == nil || hasher == nil {
		return nil, errors.New("identity resolver needs a store and a hasher")
	}
	r := &Resolver{
		store:    store,
		hasher:   hasher,
		now:      time.Now,
		attempts: 5,
		logger:   logger.With().Str("component", "identity").Logger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Resolve returns the id of the customer with contact, creating the customer
// on first sight. Consent is recorded at creation. A known customer only has
// LastSeenAt updated.
//
// contact is hashed as given; callers normalise it first.
func (r *Resolver) Resolve(ctx context.Context, contact string) (ResolveResult, error) {
	const op = "resolve_customer"
	start := time.Now()

	if strings.TrimSpace(contact) == "" {
		return ResolveResult{}, fmt.Errorf("%w: contact is empty", ErrInvalidContact)
	}
	digest := r.hasher.Digest(contact)
	log := logging.Ctx(ctx).With().Str("digest_prefix", digest[:8]).Logger()

	var lastErr error
	for attempt := 0; attempt < r.attempts; attempt++ {
		existing, err := r.store.CustomerByDigest(ctx, digest)
		switch {
		case err == nil:
			if err := r.store.TouchCustomer(ctx, existing.ID, r.now()); err != nil {
				// The id is still correct; a stale LastSeenAt is harmless.
				log.Warn().Err(err).Str("customer_id", existing.ID).Msg("Failed to update last seen time")
			}
			metrics.RecordLedgerOperation(op, metrics.OutcomeSuccess, time.Since(start))
			metrics.RecordCustomerResolved(false)
			return ResolveResult{CustomerID: existing.ID}, nil

		case !errors.Is(err, ledger.ErrNotFound):
			metrics.RecordLedgerOperation(op, metrics.OutcomeFailure, time.Since(start))
			return ResolveResult{}, fmt.Errorf("lookup customer: %w", err)
		}

		now := r.now()
		customer := ledger.Customer{
			ID:          uuid.NewString(),
			ContactHash: digest,
			ConsentedAt: now,
			CreatedAt:   now,
			LastSeenAt:  now,
		}
		err = r.store.InsertCustomer(ctx, customer)
		if err == nil {
			metrics.RecordLedgerOperation(op, metrics.OutcomeSuccess, time.Since(start))
			metrics.RecordCustomerResolved(true)
			log.Info().Str("customer_id", customer.ID).Msg("Customer created")
			r.notify(ctx, customer)
			return ResolveResult{CustomerID: customer.ID, Created: true}, nil
		}
		if !errors.Is(err, ledger.ErrDuplicate) && !errors.Is(err, ledger.ErrConflict) {
			metrics.RecordLedgerOperation(op, metrics.OutcomeFailure, time.Since(start))
			return ResolveResult{}, fmt.Errorf("insert customer: %w", err)
		}

		// A concurrent resolution created the customer first; read it back.
		lastErr = err
		reason := "duplicate"
		if errors.Is(err, ledger.ErrConflict) {
			reason = "conflict"
		}
		metrics.RecordLedgerRetry(op, reason)
		log.Debug().Err(err).Int("attempt", attempt+1).Msg("Customer insert lost a race, re-reading")
	}

	metrics.RecordLedgerOperation(op, metrics.OutcomeExhausted, time.Since(start))
	return ResolveResult{}, fmt.Errorf("%w: resolve customer after %d attempts: %w", ledger.ErrRetriesExhausted, r.attempts, lastErr)
}

func (r *Resolver) notify(ctx context.Context, c ledger.Customer) {
	if r.notifier == nil {
		return
	}
	if err := r.notifier.Notify(ctx, ledger.TopicCustomerCreated, c); err != nil {
		r.logger.Warn().Err(err).Str("customer_id", c.ID).Msg("Failed to publish customer event")
	}
}
