// Crumb - Budget Bundle Recommendation and Customer Ledger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crumb

// Package badgerstore implements ledger.Store on BadgerDB.
//
// Records are JSON values under typed key prefixes. Unique constraints are
// index keys written in the same transaction as the record they protect:
//
//	cust:<id>                          customer record
//	cust_digest:<digest>               -> customer id
//	visit:<customer>:<ts>:<id>         visit record
//	order:<customer>:<ts>:<id>         order record
//	order_code:<code>                  -> order key
//	coupon:<customer>:<ts>:<id>        coupon record
//	coupon_code:<code>                 -> coupon key
//	coupon_live:<customer>:<kind>      -> code of the live coupon
//
// <ts> is a zero-padded UnixNano so that key order is time order. Badger's
// optimistic transactions turn a concurrent write of the same index key into
// badger.ErrConflict, which is reported as ledger.ErrConflict.
package badgerstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/crumb/internal/ledger"
	"github.com/tomtom215/crumb/internal/logging"
)

const (
	prefixCustomer   = "cust:"
	prefixDigest     = "cust_digest:"
	prefixVisit      = "visit:"
	prefixOrder      = "order:"
	prefixOrderCode  = "order_code:"
	prefixCoupon     = "coupon:"
	prefixCouponCode = "coupon_code:"
	prefixCouponLive = "coupon_live:"
)

// Options configures the Badger store.
type Options struct {
	// Path is the data directory. Ignored when InMemory is set.
	Path string

	// InMemory keeps all data in memory. Used by tests.
	InMemory bool

	// SyncWrites fsyncs every commit.
	SyncWrites bool

	// GCRatio is the discard ratio for value log garbage collection.
	GCRatio float64
}

// Store is a ledger.Store backed by BadgerDB.
type Store struct {
	db      *badger.DB
	gcRatio float64

	mu     sync.RWMutex
	closed bool
}

var _ ledger.Store = (*Store)(nil)

// Open opens (or creates) the store.
func Open(opts Options) (*Store, error) {
	var bopts badger.Options
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if opts.Path == "" {
			return nil, errors.New("badger path is required")
		}
		bopts = badger.DefaultOptions(opts.Path)
		// Ledger records are small.
		bopts.ValueLogFileSize = 64 << 20
	}
	bopts.SyncWrites = opts.SyncWrites
	bopts.Logger = nil

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	ratio := opts.GCRatio
	if ratio <= 0 || ratio >= 1 {
		ratio = 0.5
	}

	logging.Info().
		Str("backend", "badger").
		Str("path", opts.Path).
		Bool("in_memory", opts.InMemory).
		Bool("sync_writes", opts.SyncWrites).
		Msg("Ledger store opened")

	return &Store{db: db, gcRatio: ratio}, nil
}

func (s *Store) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ledger.ErrClosed
	}
	return nil
}

// update runs fn in a read-write transaction and maps Badger's conflict error.
func (s *Store) update(fn func(txn *badger.Txn) error) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	err := s.db.Update(fn)
	if errors.Is(err, badger.ErrConflict) {
		return fmt.Errorf("%w: %w", ledger.ErrConflict, err)
	}
	return err
}

func (s *Store) view(fn func(txn *badger.Txn) error) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	return s.db.View(fn)
}

func timeKey(prefix, customerID string, at time.Time, id string) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d:%s", prefix, customerID, at.UnixNano(), id))
}

func scopedPrefix(prefix, customerID string) []byte {
	return []byte(prefix + customerID + ":")
}

// exists reports whether key is present in txn.
func exists(txn *badger.Txn, key []byte) (bool, error) {
	_, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func getJSON(txn *badger.Txn, key []byte, v any) error {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ledger.ErrNotFound
	}
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

func getString(txn *badger.Txn, key []byte) (string, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", ledger.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return "", err
	}
	return string(val), nil
}

func setJSON(txn *badger.Txn, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	return txn.Set(key, data)
}

// InsertCustomer implements ledger.Store.
func (s *Store) InsertCustomer(_ context.Context, c ledger.Customer) error {
	key := []byte(prefixCustomer + c.ID)
	digestKey := []byte(prefixDigest + c.ContactHash)

	return s.update(func(txn *badger.Txn) error {
		for _, k := range [][]byte{key, digestKey} {
			found, err := exists(txn, k)
			if err != nil {
				return err
			}
			if found {
				return fmt.Errorf("%w: customer %s", ledger.ErrDuplicate, k)
			}
		}
		if err := setJSON(txn, key, c); err != nil {
			return err
		}
		return txn.Set(digestKey, []byte(c.ID))
	})
}

// CustomerByDigest implements ledger.Store.
func (s *Store) CustomerByDigest(_ context.Context, digest string) (ledger.Customer, error) {
	var c ledger.Customer
	err := s.view(func(txn *badger.Txn) error {
		id, err := getString(txn, []byte(prefixDigest+digest))
		if err != nil {
			return err
		}
		return getJSON(txn, []byte(prefixCustomer+id), &c)
	})
	return c, err
}

// Customer implements ledger.Store.
func (s *Store) Customer(_ context.Context, id string) (ledger.Customer, error) {
	var c ledger.Customer
	err := s.view(func(txn *badger.Txn) error {
		return getJSON(txn, []byte(prefixCustomer+id), &c)
	})
	return c, err
}

// TouchCustomer implements ledger.Store.
func (s *Store) TouchCustomer(_ context.Context, id string, at time.Time) error {
	key := []byte(prefixCustomer + id)
	return s.update(func(txn *badger.Txn) error {
		var c ledger.Customer
		if err := getJSON(txn, key, &c); err != nil {
			return err
		}
		c.LastSeenAt = at
		return setJSON(txn, key, c)
	})
}

// InsertVisit implements ledger.Store.
func (s *Store) InsertVisit(_ context.Context, v ledger.Visit) error {
	return s.update(func(txn *badger.Txn) error {
		return setJSON(txn, timeKey(prefixVisit, v.CustomerID, v.CreatedAt, v.ID), v)
	})
}

// CountVisits implements ledger.Store.
func (s *Store) CountVisits(_ context.Context, customerID string) (int, error) {
	return s.count(scopedPrefix(prefixVisit, customerID))
}

// InsertOrder implements ledger.Store.
func (s *Store) InsertOrder(_ context.Context, o ledger.Order) error {
	key := timeKey(prefixOrder, o.CustomerID, o.CreatedAt, o.ID)
	codeKey := []byte(prefixOrderCode + o.Code)

	return s.update(func(txn *badger.Txn) error {
		found, err := exists(txn, codeKey)
		if err != nil {
			return err
		}
		if found {
			return fmt.Errorf("%w: order code %s", ledger.ErrDuplicate, o.Code)
		}
		if err := setJSON(txn, key, o); err != nil {
			return err
		}
		return txn.Set(codeKey, key)
	})
}

// LastOrder implements ledger.Store.
func (s *Store) LastOrder(_ context.Context, customerID string) (ledger.Order, error) {
	var o ledger.Order
	err := s.view(func(txn *badger.Txn) error {
		found := false
		err := scanNewestFirst(txn, scopedPrefix(prefixOrder, customerID), func(val []byte) (bool, error) {
			found = true
			return false, json.Unmarshal(val, &o)
		})
		if err != nil {
			return err
		}
		if !found {
			return ledger.ErrNotFound
		}
		return nil
	})
	return o, err
}

// CountOrders implements ledger.Store.
func (s *Store) CountOrders(_ context.Context, customerID string) (int, error) {
	return s.count(scopedPrefix(prefixOrder, customerID))
}

// InsertCoupon implements ledger.Store.
func (s *Store) InsertCoupon(_ context.Context, c ledger.Coupon) error {
	key := timeKey(prefixCoupon, c.CustomerID, c.IssuedAt, c.ID)
	codeKey := []byte(prefixCouponCode + c.Code)
	liveKey := []byte(prefixCouponLive + c.CustomerID + ":" + c.Kind)

	return s.update(func(txn *badger.Txn) error {
		if c.Status.Live() {
			found, err := exists(txn, liveKey)
			if err != nil {
				return err
			}
			if found {
				return ledger.ErrCouponExists
			}
		}

		found, err := exists(txn, codeKey)
		if err != nil {
			return err
		}
		if found {
			return fmt.Errorf("%w: coupon code %s", ledger.ErrDuplicate, c.Code)
		}

		if err := setJSON(txn, key, c); err != nil {
			return err
		}
		if err := txn.Set(codeKey, key); err != nil {
			return err
		}
		if c.Status.Live() {
			return txn.Set(liveKey, []byte(c.Code))
		}
		return nil
	})
}

// Coupons implements ledger.Store.
func (s *Store) Coupons(_ context.Context, customerID string) ([]ledger.Coupon, error) {
	coupons := []ledger.Coupon{}
	err := s.view(func(txn *badger.Txn) error {
		return scanNewestFirst(txn, scopedPrefix(prefixCoupon, customerID), func(val []byte) (bool, error) {
			var c ledger.Coupon
			if err := json.Unmarshal(val, &c); err != nil {
				return false, err
			}
			coupons = append(coupons, c)
			return true, nil
		})
	})
	if err != nil {
		return nil, err
	}
	return coupons, nil
}

// SetCouponStatus implements ledger.Store.
func (s *Store) SetCouponStatus(_ context.Context, code string, status ledger.CouponStatus) error {
	codeKey := []byte(prefixCouponCode + code)

	return s.update(func(txn *badger.Txn) error {
		recordKey, err := getString(txn, codeKey)
		if err != nil {
			return err
		}
		var c ledger.Coupon
		if err := getJSON(txn, []byte(recordKey), &c); err != nil {
			return err
		}

		liveKey := []byte(prefixCouponLive + c.CustomerID + ":" + c.Kind)
		holder, err := getString(txn, liveKey)
		if err != nil && !errors.Is(err, ledger.ErrNotFound) {
			return err
		}

		switch {
		case status.Live() && holder != "" && holder != code:
			return ledger.ErrCouponExists
		case status.Live() && holder == "":
			if err := txn.Set(liveKey, []byte(code)); err != nil {
				return err
			}
		case !status.Live() && holder == code:
			if err := txn.Delete(liveKey); err != nil {
				return err
			}
		}

		c.Status = status
		return setJSON(txn, []byte(recordKey), c)
	})
}

// scanNewestFirst iterates values under prefix in descending key order until
// fn returns false.
func scanNewestFirst(txn *badger.Txn, prefix []byte, fn func(val []byte) (bool, error)) error {
	opts := badger.DefaultIteratorOptions
	opts.Reverse = true
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	// In reverse mode Seek lands on the largest key <= the seek key.
	seek := append(append([]byte{}, prefix...), 0xFF)
	for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
		more := true
		err := it.Item().Value(func(val []byte) error {
			var err error
			more, err = fn(val)
			return err
		})
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
	return nil
}

func (s *Store) count(prefix []byte) (int, error) {
	n := 0
	err := s.view(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// RunGC runs value log garbage collection until nothing is left to rewrite.
func (s *Store) RunGC() error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	for {
		err := s.db.RunValueLogGC(s.gcRatio)
		if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrGCInMemoryMode) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("run GC: %w", err)
		}
	}
}

// Close implements ledger.Store. It is safe to call more than once.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
