// Crumb - Budget Bundle Recommendation and Customer Ledger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crumb

// Package sqlitestore implements ledger.Store on SQLite using the pure Go
// modernc.org/sqlite driver.
//
// Unique rules are table constraints. The live coupon rule is a partial
// unique index over (customer_id, kind) restricted to active and used rows,
// so an expired coupon does not block a new one.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/tomtom215/crumb/internal/ledger"
	"github.com/tomtom215/crumb/internal/logging"
)

const schema = `
CREATE TABLE IF NOT EXISTS customers (
	id           TEXT PRIMARY KEY,
	contact_hash TEXT NOT NULL UNIQUE,
	consented_at INTEGER NOT NULL,
	created_at   INTEGER NOT NULL,
	last_seen_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS visits (
	id          TEXT PRIMARY KEY,
	customer_id TEXT NOT NULL REFERENCES customers(id),
	budget      INTEGER NOT NULL,
	sweetness   INTEGER NOT NULL,
	tags        TEXT NOT NULL,
	created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS visits_customer ON visits(customer_id, created_at);

CREATE TABLE IF NOT EXISTS orders (
	id          TEXT PRIMARY KEY,
	customer_id TEXT NOT NULL REFERENCES customers(id),
	code        TEXT NOT NULL UNIQUE,
	items       TEXT NOT NULL,
	total       INTEGER NOT NULL,
	created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS orders_customer ON orders(customer_id, created_at);

CREATE TABLE IF NOT EXISTS coupons (
	id          TEXT PRIMARY KEY,
	customer_id TEXT NOT NULL REFERENCES customers(id),
	code        TEXT NOT NULL UNIQUE,
	kind        TEXT NOT NULL,
	status      TEXT NOT NULL CHECK (status IN ('active', 'used', 'expired')),
	issued_at   INTEGER NOT NULL,
	expires_at  INTEGER NOT NULL,
	description TEXT NOT NULL,
	usage_limit TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS coupons_customer ON coupons(customer_id, issued_at);
CREATE UNIQUE INDEX IF NOT EXISTS coupons_live_kind
	ON coupons(customer_id, kind) WHERE status IN ('active', 'used');
`

// Store is a ledger.Store backed by SQLite.
type Store struct {
	db *sql.DB
}

var _ ledger.Store = (*Store)(nil)

// Open opens (or creates) the database at path, enables WAL journaling and
// applies the schema. ":memory:" opens a private in-memory database.
func Open(path string) (*Store, error) {
	dsn := ":memory:?_pragma=foreign_keys(ON)"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("create sqlite directory: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection serialises writers and keeps an in-memory database shared.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	logging.Info().Str("backend", "sqlite").Str("path", path).Msg("Ledger store opened")
	return &Store{db: db}, nil
}

// DB exposes the connection for maintenance tooling.
func (s *Store) DB() *sql.DB {
	return s.db
}

// mapError translates driver errors into ledger errors.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("%w: %w", ledger.ErrClosed, err)
	}

	var serr *sqlite.Error
	if errors.As(err, &serr) {
		switch serr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			if isLiveKindViolation(serr.Error()) {
				return fmt.Errorf("%w: %w", ledger.ErrCouponExists, err)
			}
			return fmt.Errorf("%w: %w", ledger.ErrDuplicate, err)
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return fmt.Errorf("%w: %w", ledger.ErrConflict, err)
		}
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		if isLiveKindViolation(err.Error()) {
			return fmt.Errorf("%w: %w", ledger.ErrCouponExists, err)
		}
		return fmt.Errorf("%w: %w", ledger.ErrDuplicate, err)
	}
	return err
}

func isLiveKindViolation(msg string) bool {
	return strings.Contains(msg, "coupons.kind") || strings.Contains(msg, "coupons_live_kind")
}

func nanos(t time.Time) int64 {
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

// InsertCustomer implements ledger.Store.
func (s *Store) InsertCustomer(ctx context.Context, c ledger.Customer) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO customers (id, contact_hash, consented_at, created_at, last_seen_at) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.ContactHash, nanos(c.ConsentedAt), nanos(c.CreatedAt), nanos(c.LastSeenAt))
	return mapError(err)
}

func scanCustomer(row *sql.Row) (ledger.Customer, error) {
	var (
		c                          ledger.Customer
		consented, created, seenAt int64
	)
	err := row.Scan(&c.ID, &c.ContactHash, &consented, &created, &seenAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Customer{}, ledger.ErrNotFound
	}
	if err != nil {
		return ledger.Customer{}, mapError(err)
	}
	c.ConsentedAt = fromNanos(consented)
	c.CreatedAt = fromNanos(created)
	c.LastSeenAt = fromNanos(seenAt)
	return c, nil
}

// CustomerByDigest implements ledger.Store.
func (s *Store) CustomerByDigest(ctx context.Context, digest string) (ledger.Customer, error) {
	return scanCustomer(s.db.QueryRowContext(ctx,
		`SELECT id, contact_hash, consented_at, created_at, last_seen_at FROM customers WHERE contact_hash = ?`, digest))
}

// Customer implements ledger.Store.
func (s *Store) Customer(ctx context.Context, id string) (ledger.Customer, error) {
	return scanCustomer(s.db.QueryRowContext(ctx,
		`SELECT id, contact_hash, consented_at, created_at, last_seen_at FROM customers WHERE id = ?`, id))
}

// TouchCustomer implements ledger.Store.
func (s *Store) TouchCustomer(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE customers SET last_seen_at = ? WHERE id = ?`, nanos(at), id)
	if err != nil {
		return mapError(err)
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ledger.ErrNotFound
	}
	return nil
}

// InsertVisit implements ledger.Store.
func (s *Store) InsertVisit(ctx context.Context, v ledger.Visit) error {
	tags, err := json.Marshal(v.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO visits (id, customer_id, budget, sweetness, tags, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		v.ID, v.CustomerID, v.Budget, v.Sweetness, string(tags), nanos(v.CreatedAt))
	return mapError(err)
}

// CountVisits implements ledger.Store.
func (s *Store) CountVisits(ctx context.Context, customerID string) (int, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM visits WHERE customer_id = ?`, customerID)
}

// InsertOrder implements ledger.Store.
func (s *Store) InsertOrder(ctx context.Context, o ledger.Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshal items: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO orders (id, customer_id, code, items, total, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		o.ID, o.CustomerID, o.Code, string(items), o.Total, nanos(o.CreatedAt))
	return mapError(err)
}

// LastOrder implements ledger.Store.
func (s *Store) LastOrder(ctx context.Context, customerID string) (ledger.Order, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, customer_id, code, items, total, created_at FROM orders
		 WHERE customer_id = ? ORDER BY created_at DESC, rowid DESC LIMIT 1`, customerID)

	var (
		o       ledger.Order
		items   string
		created int64
	)
	err := row.Scan(&o.ID, &o.CustomerID, &o.Code, &items, &o.Total, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Order{}, ledger.ErrNotFound
	}
	if err != nil {
		return ledger.Order{}, mapError(err)
	}
	if err := json.Unmarshal([]byte(items), &o.Items); err != nil {
		return ledger.Order{}, fmt.Errorf("decode order items: %w", err)
	}
	o.CreatedAt = fromNanos(created)
	return o, nil
}

// CountOrders implements ledger.Store.
func (s *Store) CountOrders(ctx context.Context, customerID string) (int, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM orders WHERE customer_id = ?`, customerID)
}

// InsertCoupon implements ledger.Store.
func (s *Store) InsertCoupon(ctx context.Context, c ledger.Coupon) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO coupons (id, customer_id, code, kind, status, issued_at, expires_at, description, usage_limit)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.CustomerID, c.Code, c.Kind, string(c.Status), nanos(c.IssuedAt), nanos(c.ExpiresAt),
		c.Meta.Description, c.Meta.UsageLimit)
	return mapError(err)
}

// Coupons implements ledger.Store.
func (s *Store) Coupons(ctx context.Context, customerID string) ([]ledger.Coupon, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, customer_id, code, kind, status, issued_at, expires_at, description, usage_limit
		 FROM coupons WHERE customer_id = ? ORDER BY issued_at DESC, rowid DESC`, customerID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	coupons := []ledger.Coupon{}
	for rows.Next() {
		var (
			c               ledger.Coupon
			status          string
			issued, expires int64
		)
		if err := rows.Scan(&c.ID, &c.CustomerID, &c.Code, &c.Kind, &status, &issued, &expires,
			&c.Meta.Description, &c.Meta.UsageLimit); err != nil {
			return nil, err
		}
		c.Status = ledger.CouponStatus(status)
		c.IssuedAt = fromNanos(issued)
		c.ExpiresAt = fromNanos(expires)
		coupons = append(coupons, c)
	}
	return coupons, rows.Err()
}

// SetCouponStatus implements ledger.Store.
func (s *Store) SetCouponStatus(ctx context.Context, code string, status ledger.CouponStatus) error {
	res, err := s.db.ExecContext(ctx, `UPDATE coupons SET status = ? WHERE code = ?`, string(status), code)
	if err != nil {
		return mapError(err)
	}
	return requireRow(res)
}

func (s *Store) count(ctx context.Context, query string, args ...any) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, mapError(err)
	}
	return n, nil
}

// Close implements ledger.Store.
func (s *Store) Close() error {
	return s.db.Close()
}
