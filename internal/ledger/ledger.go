// Crumb - Budget Bundle Recommendation and Customer Ledger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crumb

// Package ledger records customer interactions: visits, orders and
// promotional coupons.
//
// The Ledger service owns every write. It never checks a uniqueness rule
// before writing; it relies on the Store to reject the write atomically and
// retries constraint violations on generated codes up to Config.RetryAttempts.
//
// Two Store backends exist: badgerstore (default) and sqlitestore. Both pass
// the conformance suite in ledgertest.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tomtom215/crumb/internal/catalog"
	"github.com/tomtom215/crumb/internal/logging"
	"github.com/tomtom215/crumb/internal/metrics"
)

// Topics published through the Notifier after a successful write.
const (
	TopicCustomerCreated = "crumb.customer.created"
	TopicVisitLogged     = "crumb.visit.logged"
	TopicOrderPlaced     = "crumb.order.placed"
	TopicCouponIssued    = "crumb.coupon.issued"
	TopicCouponStatus    = "crumb.coupon.status"
)

// Topics returns every topic the ledger publishes.
func Topics() []string {
	return []string{TopicCustomerCreated, TopicVisitLogged, TopicOrderPlaced, TopicCouponIssued, TopicCouponStatus}
}

// Notifier receives domain events after the corresponding write committed.
// A Notifier error never fails the write.
type Notifier interface {
	Notify(ctx context.Context, topic string, payload any) error
}

// CouponStatusChange is the payload of TopicCouponStatus.
type CouponStatusChange struct {
	Code   string       `json:"code"`
	Status CouponStatus `json:"status"`
	At     time.Time    `json:"at"`
}

// Config controls code formats, coupon terms and retry behaviour.
type Config struct {
	OrderPrefix  string
	CouponPrefix string

	// CouponTTL is the validity window of a welcome coupon.
	CouponTTL time.Duration

	WelcomeDescription string
	WelcomeUsageLimit  string

	// RetryAttempts bounds attempts per write on ErrDuplicate or ErrConflict.
	RetryAttempts int
}

// DefaultConfig returns the default ledger configuration.
func DefaultConfig() Config {
	return Config{
		OrderPrefix:        "CRB",
		CouponPrefix:       "LCK",
		CouponTTL:          14 * 24 * time.Hour,
		WelcomeDescription: "Welcome gift: one free drink",
		WelcomeUsageLimit:  "One use per customer, in store only",
		RetryAttempts:      5,
	}
}

// Validate checks the configuration for errors.
func (c Config) Validate() error {
	if c.OrderPrefix == "" || c.CouponPrefix == "" {
		return errors.New("order and coupon prefixes are required")
	}
	if c.CouponTTL <= 0 {
		return fmt.Errorf("coupon ttl must be positive, got %s", c.CouponTTL)
	}
	if c.RetryAttempts < 1 {
		return fmt.Errorf("retry attempts must be at least 1, got %d", c.RetryAttempts)
	}
	return nil
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock replaces time.Now. Tests use it to pin timestamps and codes.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithNotifier publishes domain events after each successful write.
func WithNotifier(n Notifier) Option {
	return func(l *Ledger) { l.notifier = n }
}

// Ledger is the write path for customer interactions. It is safe for
// concurrent use when its Store is.
type Ledger struct {
	store    Store
	cfg      Config
	now      func() time.Time
	notifier Notifier
	logger   zerolog.Logger
}

// New creates a Ledger over store.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func New(store Store, cfg Config, logger zerolog.Logger, opts ...Option) (*Ledger, error) {
	if store == nil {
		return nil, errors.New("ledger store is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid ledger config: %w", err)
	}
	l := &Ledger{
		store:  store,
		cfg:    cfg,
		now:    time.Now,
		logger: logger.With().Str("component", "ledger").Logger(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Store returns the underlying store.
func (l *Ledger) Store() Store {
	return l.store
}

// requireCustomer maps an empty or unknown id to ErrIdentityRequired.
func (l *Ledger) requireCustomer(ctx context.Context, customerID string) (Customer, error) {
	if customerID == "" {
		return Customer{}, ErrIdentityRequired
	}
	c, err := l.store.Customer(ctx, customerID)
	if errors.Is(err, ErrNotFound) {
		return Customer{}, fmt.Errorf("%w: unknown customer %s", ErrIdentityRequired, customerID)
	}
	if err != nil {
		return Customer{}, fmt.Errorf("load customer: %w", err)
	}
	return c, nil
}

func (l *Ledger) notify(ctx context.Context, topic string, payload any) {
	if l.notifier == nil {
		return
	}
	if err := l.notifier.Notify(ctx, topic, payload); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("topic", topic).Msg("Failed to publish ledger event")
	}
}

func validateItems(items []OrderItem, total int64) error {
	if len(items) == 0 {
		return invalid("items", "an order needs at least one item")
	}
	var sum int64
	for i, it := range items {
		if it.Name == "" {
			return invalid(fmt.Sprintf("items[%d].name", i), "must not be empty")
		}
		if it.Price < 0 {
			return invalid(fmt.Sprintf("items[%d].price", i), "must be non-negative, got %d", it.Price)
		}
		sum += it.Price
	}
	if total != sum {
		return invalid("total", "%d does not match the sum of item prices %d", total, sum)
	}
	return nil
}

// PlaceOrder records an order for a known customer. The code is regenerated
// on collision up to RetryAttempts times.
//
// Errors: ErrIdentityRequired, *ValidationError, ErrRetriesExhausted.
func (l *Ledger) PlaceOrder(ctx context.Context, customerID string, items []OrderItem, total int64) (Order, error) {
	const op = "place_order"
	start := time.Now()

	if err := validateItems(items, total); err != nil {
		metrics.RecordLedgerOperation(op, metrics.OutcomeRejected, time.Since(start))
		return Order{}, err
	}
	if _, err := l.requireCustomer(ctx, customerID); err != nil {
		metrics.RecordLedgerOperation(op, metrics.OutcomeRejected, time.Since(start))
		return Order{}, err
	}

	snapshot := make([]OrderItem, len(items))
	copy(snapshot, items)

	var lastErr error
	for attempt := 0; attempt < l.cfg.RetryAttempts; attempt++ {
		now := l.now()
		order := Order{
			ID:         uuid.NewString(),
			CustomerID: customerID,
			Items:      snapshot,
			Total:      total,
			Code:       OrderCode(l.cfg.OrderPrefix, now, attempt),
			CreatedAt:  now,
		}

		err := l.store.InsertOrder(ctx, order)
		if err == nil {
			metrics.RecordLedgerOperation(op, metrics.OutcomeSuccess, time.Since(start))
			logging.Ctx(ctx).Info().
				Str("customer_id", customerID).
				Str("order_code", order.Code).
				Int64("total", total).
				Int("items", len(items)).
				Msg("Order placed")
			l.notify(ctx, TopicOrderPlaced, order)
			return order, nil
		}
		if !retryable(err) {
			metrics.RecordLedgerOperation(op, metrics.OutcomeFailure, time.Since(start))
			return Order{}, fmt.Errorf("insert order: %w", err)
		}

		lastErr = err
		metrics.RecordLedgerRetry(op, retryReason(err))
		l.logger.Debug().Err(err).Int("attempt", attempt+1).Str("code", order.Code).Msg("Order code rejected, retrying")
	}

	metrics.RecordLedgerOperation(op, metrics.OutcomeExhausted, time.Since(start))
	return Order{}, fmt.Errorf("%w: place order after %d attempts: %w", ErrRetriesExhausted, l.cfg.RetryAttempts, lastErr)
}

// IssueWelcomeCoupon issues the welcome coupon to a known customer. When the
// customer already holds a live welcome coupon it returns false and a nil
// error; no new row is written.
func (l *Ledger) IssueWelcomeCoupon(ctx context.Context, customerID string) (Coupon, bool, error) {
	const op = "issue_coupon"
	start := time.Now()

	if _, err := l.requireCustomer(ctx, customerID); err != nil {
		metrics.RecordLedgerOperation(op, metrics.OutcomeRejected, time.Since(start))
		return Coupon{}, false, err
	}

	var lastErr error
	for attempt := 0; attempt < l.cfg.RetryAttempts; attempt++ {
		now := l.now()
		coupon := Coupon{
			ID:         uuid.NewString(),
			CustomerID: customerID,
			Code:       CouponCode(l.cfg.CouponPrefix, now, attempt),
			Kind:       KindWelcome,
			Status:     StatusActive,
			IssuedAt:   now,
			ExpiresAt:  now.Add(l.cfg.CouponTTL),
			Meta: CouponMeta{
				Description: l.cfg.WelcomeDescription,
				UsageLimit:  l.cfg.WelcomeUsageLimit,
			},
		}

		err := l.store.InsertCoupon(ctx, coupon)
		switch {
		case err == nil:
			metrics.RecordLedgerOperation(op, metrics.OutcomeSuccess, time.Since(start))
			metrics.RecordCouponIssue(KindWelcome, metrics.OutcomeSuccess)
			logging.Ctx(ctx).Info().
				Str("customer_id", customerID).
				Str("coupon_code", coupon.Code).
				Time("expires_at", coupon.ExpiresAt).
				Msg("Welcome coupon issued")
			l.notify(ctx, TopicCouponIssued, coupon)
			return coupon, true, nil

		case errors.Is(err, ErrCouponExists):
			metrics.RecordLedgerOperation(op, metrics.OutcomeSuccess, time.Since(start))
			metrics.RecordCouponIssue(KindWelcome, metrics.OutcomeAlreadyHas)
			logging.Ctx(ctx).Debug().Str("customer_id", customerID).Msg("Welcome coupon already issued")
			return Coupon{}, false, nil

		case retryable(err):
			lastErr = err
			metrics.RecordLedgerRetry(op, retryReason(err))

		default:
			metrics.RecordLedgerOperation(op, metrics.OutcomeFailure, time.Since(start))
			metrics.RecordCouponIssue(KindWelcome, metrics.OutcomeFailure)
			return Coupon{}, false, fmt.Errorf("insert coupon: %w", err)
		}
	}

	metrics.RecordLedgerOperation(op, metrics.OutcomeExhausted, time.Since(start))
	metrics.RecordCouponIssue(KindWelcome, metrics.OutcomeExhausted)
	return Coupon{}, false, fmt.Errorf("%w: issue coupon after %d attempts: %w", ErrRetriesExhausted, l.cfg.RetryAttempts, lastErr)
}

// Checkout places the order and then issues the welcome coupon. Once the
// order is placed the checkout succeeds; a coupon failure is reported in
// Receipt.CouponError. A customer who already holds a live welcome coupon
// gets it back in Receipt.Coupon with CouponIssued false.
func (l *Ledger) Checkout(ctx context.Context, customerID string, items []OrderItem, total int64) (Receipt, error) {
	order, err := l.PlaceOrder(ctx, customerID, items, total)
	if err != nil {
		return Receipt{}, err
	}

	receipt := Receipt{Order: order}
	coupon, issued, err := l.IssueWelcomeCoupon(ctx, customerID)
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).
			Str("customer_id", customerID).
			Str("order_code", order.Code).
			Msg("Welcome coupon issuance failed after order")
		receipt.CouponError = err.Error()
		return receipt, nil
	}
	if issued {
		receipt.Coupon = &coupon
		receipt.CouponIssued = true
		return receipt, nil
	}

	held, err := l.heldWelcomeCoupon(ctx, customerID)
	if err != nil {
		// The receipt is complete without it.
		logging.Ctx(ctx).Warn().Err(err).Str("customer_id", customerID).Msg("Failed to look up held welcome coupon")
		return receipt, nil
	}
	receipt.Coupon = held
	return receipt, nil
}

// heldWelcomeCoupon returns the customer's newest live welcome coupon, or nil.
func (l *Ledger) heldWelcomeCoupon(ctx context.Context, customerID string) (*Coupon, error) {
	coupons, err := l.store.Coupons(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("list coupons: %w", err)
	}
	for i := range coupons {
		if coupons[i].Kind == KindWelcome && coupons[i].Status.Live() {
			return &coupons[i], nil
		}
	}
	return nil, nil
}

// LogVisit records a recommendation visit for a known customer.
func (l *Ledger) LogVisit(ctx context.Context, v Visit) error {
	const op = "log_visit"
	start := time.Now()

	if v.Budget < 0 {
		return invalid("budget", "must be non-negative, got %d", v.Budget)
	}
	if v.Sweetness < 0 || v.Sweetness > 5 {
		return invalid("sweetness", "must be in [0, 5], got %d", v.Sweetness)
	}
	if len(v.Tags) > catalog.MaxSelectedTags {
		return invalid("tags", "at most %d tags, got %d", catalog.MaxSelectedTags, len(v.Tags))
	}
	if _, err := l.requireCustomer(ctx, v.CustomerID); err != nil {
		metrics.RecordLedgerOperation(op, metrics.OutcomeRejected, time.Since(start))
		return err
	}

	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = l.now()
	}
	if v.Tags == nil {
		v.Tags = []string{}
	}

	if err := l.store.InsertVisit(ctx, v); err != nil {
		metrics.RecordLedgerOperation(op, metrics.OutcomeFailure, time.Since(start))
		return fmt.Errorf("insert visit: %w", err)
	}
	metrics.RecordLedgerOperation(op, metrics.OutcomeSuccess, time.Since(start))
	l.notify(ctx, TopicVisitLogged, v)
	return nil
}

// RecordVisit logs a visit from recommendation request fields.
func (l *Ledger) RecordVisit(ctx context.Context, customerID string, budget int64, sweetness int, tags []string) error {
	return l.LogVisit(ctx, Visit{
		CustomerID: customerID,
		Budget:     budget,
		Sweetness:  sweetness,
		Tags:       tags,
	})
}

// LastOrder returns the customer's most recent order. The bool is false when
// the customer has no orders.
func (l *Ledger) LastOrder(ctx context.Context, customerID string) (Order, bool, error) {
	if _, err := l.requireCustomer(ctx, customerID); err != nil {
		return Order{}, false, err
	}
	o, err := l.store.LastOrder(ctx, customerID)
	if errors.Is(err, ErrNotFound) {
		return Order{}, false, nil
	}
	if err != nil {
		return Order{}, false, fmt.Errorf("last order: %w", err)
	}
	return o, true, nil
}

// Coupons returns the customer's coupons, newest first.
func (l *Ledger) Coupons(ctx context.Context, customerID string) ([]Coupon, error) {
	if _, err := l.requireCustomer(ctx, customerID); err != nil {
		return nil, err
	}
	coupons, err := l.store.Coupons(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("list coupons: %w", err)
	}
	return coupons, nil
}

// Summary returns order and coupon counts for a customer.
func (l *Ledger) Summary(ctx context.Context, customerID string) (Summary, error) {
	customer, err := l.requireCustomer(ctx, customerID)
	if err != nil {
		return Summary{}, err
	}
	orders, err := l.store.CountOrders(ctx, customerID)
	if err != nil {
		return Summary{}, fmt.Errorf("count orders: %w", err)
	}
	coupons, err := l.store.Coupons(ctx, customerID)
	if err != nil {
		return Summary{}, fmt.Errorf("list coupons: %w", err)
	}

	s := Summary{
		CustomerID:  customerID,
		OrderCount:  orders,
		CouponCount: len(coupons),
		LastSeenAt:  customer.LastSeenAt,
	}
	for i := range coupons {
		if coupons[i].Status == StatusActive {
			s.ActiveCoupons++
		}
	}
	return s, nil
}

// SetCouponStatus moves a coupon to status. Any known status is accepted from
// any other; transition rules belong to the caller.
func (l *Ledger) SetCouponStatus(ctx context.Context, code string, status CouponStatus) error {
	const op = "set_coupon_status"
	start := time.Now()

	if code == "" {
		return invalid("code", "must not be empty")
	}
	if !status.Valid() {
		return invalid("status", "unknown coupon status %q", status)
	}

	if err := l.store.SetCouponStatus(ctx, code, status); err != nil {
		metrics.RecordLedgerOperation(op, metrics.OutcomeFailure, time.Since(start))
		return fmt.Errorf("set coupon status: %w", err)
	}
	metrics.RecordLedgerOperation(op, metrics.OutcomeSuccess, time.Since(start))
	l.notify(ctx, TopicCouponStatus, CouponStatusChange{Code: code, Status: status, At: l.now()})
	return nil
}
