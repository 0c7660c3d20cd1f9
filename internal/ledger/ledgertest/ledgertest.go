// Crumb - Budget Bundle Recommendation and Customer Ledger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crumb

// Package ledgertest provides a conformance suite for ledger.Store backends.
package ledgertest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/crumb/internal/ledger"
)

// Factory returns an empty store. The suite closes it.
type Factory func(t *testing.T) ledger.Store

var base = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

// Run executes the conformance suite against stores created by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, s ledger.Store)
	}{
		{"CustomerRoundTrip", testCustomerRoundTrip},
		{"CustomerUniqueDigest", testCustomerUniqueDigest},
		{"TouchCustomer", testTouchCustomer},
		{"Visits", testVisits},
		{"OrderRoundTrip", testOrderRoundTrip},
		{"OrderUniqueCode", testOrderUniqueCode},
		{"LastOrderIsNewest", testLastOrderIsNewest},
		{"CouponLiveKindUnique", testCouponLiveKindUnique},
		{"CouponUniqueCode", testCouponUniqueCode},
		{"ExpiredCouponAllowsReissue", testExpiredCouponAllowsReissue},
		{"CouponStatusRevive", testCouponStatusRevive},
		{"CouponsNewestFirst", testCouponsNewestFirst},
		{"ConcurrentCustomerInsert", testConcurrentCustomerInsert},
		{"ConcurrentCouponInsert", testConcurrentCouponInsert},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { _ = s.Close() })
			tt.fn(t, s)
		})
	}
}

func newCustomer(digest string) ledger.Customer {
	return ledger.Customer{
		ID:          uuid.NewString(),
		ContactHash: digest,
		ConsentedAt: base,
		CreatedAt:   base,
		LastSeenAt:  base,
	}
}

func mustCustomer(t *testing.T, s ledger.Store, digest string) ledger.Customer {
	t.Helper()
	c := newCustomer(digest)
	if err := s.InsertCustomer(context.Background(), c); err != nil {
		t.Fatalf("InsertCustomer() error = %v", err)
	}
	return c
}

func newCoupon(customerID, code string, status ledger.CouponStatus, at time.Time) ledger.Coupon {
	return ledger.Coupon{
		ID:         uuid.NewString(),
		CustomerID: customerID,
		Code:       code,
		Kind:       ledger.KindWelcome,
		Status:     status,
		IssuedAt:   at,
		ExpiresAt:  at.Add(14 * 24 * time.Hour),
		Meta:       ledger.CouponMeta{Description: "free drink", UsageLimit: "once"},
	}
}

func newOrder(customerID, code string, at time.Time) ledger.Order {
	return ledger.Order{
		ID:         uuid.NewString(),
		CustomerID: customerID,
		Items: []ledger.OrderItem{
			{Name: "소금빵", Category: "빵", Price: 3200},
			{Name: "크루아상", Category: "빵", Price: 3500},
		},
		Total:     6700,
		Code:      code,
		CreatedAt: at,
	}
}

func testCustomerRoundTrip(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	c := mustCustomer(t, s, "digest-a")

	byID, err := s.Customer(ctx, c.ID)
	if err != nil {
		t.Fatalf("Customer() error = %v", err)
	}
	byDigest, err := s.CustomerByDigest(ctx, "digest-a")
	if err != nil {
		t.Fatalf("CustomerByDigest() error = %v", err)
	}
	for _, got := range []ledger.Customer{byID, byDigest} {
		if got.ID != c.ID || got.ContactHash != c.ContactHash {
			t.Errorf("got %+v, want %+v", got, c)
		}
		if !got.CreatedAt.Equal(c.CreatedAt) || !got.ConsentedAt.Equal(c.ConsentedAt) {
			t.Errorf("timestamps not preserved: %+v", got)
		}
	}

	if _, err := s.Customer(ctx, "missing"); !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("Customer(missing) error = %v, want ErrNotFound", err)
	}
	if _, err := s.CustomerByDigest(ctx, "missing"); !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("CustomerByDigest(missing) error = %v, want ErrNotFound", err)
	}
}

func testCustomerUniqueDigest(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	first := mustCustomer(t, s, "digest-a")

	err := s.InsertCustomer(ctx, newCustomer("digest-a"))
	if !errors.Is(err, ledger.ErrDuplicate) {
		t.Errorf("same digest: error = %v, want ErrDuplicate", err)
	}

	sameID := newCustomer("digest-b")
	sameID.ID = first.ID
	if err := s.InsertCustomer(ctx, sameID); !errors.Is(err, ledger.ErrDuplicate) {
		t.Errorf("same id: error = %v, want ErrDuplicate", err)
	}

	got, err := s.CustomerByDigest(ctx, "digest-a")
	if err != nil || got.ID != first.ID {
		t.Errorf("digest now maps to %v (%v), want %s", got.ID, err, first.ID)
	}
}

func testTouchCustomer(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	c := mustCustomer(t, s, "digest-a")

	later := base.Add(3 * time.Hour)
	if err := s.TouchCustomer(ctx, c.ID, later); err != nil {
		t.Fatalf("TouchCustomer() error = %v", err)
	}
	got, err := s.Customer(ctx, c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.LastSeenAt.Equal(later) {
		t.Errorf("LastSeenAt = %v, want %v", got.LastSeenAt, later)
	}
	if !got.CreatedAt.Equal(base) {
		t.Errorf("CreatedAt changed to %v", got.CreatedAt)
	}

	if err := s.TouchCustomer(ctx, "missing", later); !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("TouchCustomer(missing) error = %v, want ErrNotFound", err)
	}
}

func testVisits(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	a := mustCustomer(t, s, "digest-a")
	b := mustCustomer(t, s, "digest-b")

	for i := 0; i < 3; i++ {
		v := ledger.Visit{
			ID:         uuid.NewString(),
			CustomerID: a.ID,
			Budget:     9000,
			Sweetness:  3,
			Tags:       []string{"#달콤한"},
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		}
		if err := s.InsertVisit(ctx, v); err != nil {
			t.Fatalf("InsertVisit() error = %v", err)
		}
	}

	if n, err := s.CountVisits(ctx, a.ID); err != nil || n != 3 {
		t.Errorf("CountVisits(a) = %d, %v; want 3", n, err)
	}
	if n, err := s.CountVisits(ctx, b.ID); err != nil || n != 0 {
		t.Errorf("CountVisits(b) = %d, %v; want 0", n, err)
	}
}

func testOrderRoundTrip(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	c := mustCustomer(t, s, "digest-a")

	want := newOrder(c.ID, "CRB-20260314-0001", base)
	if err := s.InsertOrder(ctx, want); err != nil {
		t.Fatalf("InsertOrder() error = %v", err)
	}

	got, err := s.LastOrder(ctx, c.ID)
	if err != nil {
		t.Fatalf("LastOrder() error = %v", err)
	}
	if got.ID != want.ID || got.Code != want.Code || got.Total != want.Total || !got.CreatedAt.Equal(want.CreatedAt) {
		t.Errorf("LastOrder() = %+v, want %+v", got, want)
	}
	if len(got.Items) != 2 || got.Items[1] != want.Items[1] {
		t.Errorf("items = %+v, want %+v", got.Items, want.Items)
	}
}

func testOrderUniqueCode(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	a := mustCustomer(t, s, "digest-a")
	b := mustCustomer(t, s, "digest-b")

	if err := s.InsertOrder(ctx, newOrder(a.ID, "CRB-20260314-0001", base)); err != nil {
		t.Fatal(err)
	}
	err := s.InsertOrder(ctx, newOrder(b.ID, "CRB-20260314-0001", base))
	if !errors.Is(err, ledger.ErrDuplicate) {
		t.Errorf("duplicate code: error = %v, want ErrDuplicate", err)
	}
	if n, _ := s.CountOrders(ctx, b.ID); n != 0 {
		t.Errorf("rejected order was stored: CountOrders(b) = %d", n)
	}
}

func testLastOrderIsNewest(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	c := mustCustomer(t, s, "digest-a")

	if _, err := s.LastOrder(ctx, c.ID); !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("LastOrder() with no orders: error = %v, want ErrNotFound", err)
	}

	// Inserted out of time order.
	for _, minute := range []int{5, 20, 1} {
		code := fmt.Sprintf("CRB-20260314-%04d", minute)
		if err := s.InsertOrder(ctx, newOrder(c.ID, code, base.Add(time.Duration(minute)*time.Minute))); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.LastOrder(ctx, c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Code != "CRB-20260314-0020" {
		t.Errorf("LastOrder().Code = %s, want CRB-20260314-0020", got.Code)
	}
	if n, err := s.CountOrders(ctx, c.ID); err != nil || n != 3 {
		t.Errorf("CountOrders() = %d, %v; want 3", n, err)
	}
}

func testCouponLiveKindUnique(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	c := mustCustomer(t, s, "digest-a")

	if err := s.InsertCoupon(ctx, newCoupon(c.ID, "LCK-AAAA-0001", ledger.StatusActive, base)); err != nil {
		t.Fatalf("InsertCoupon() error = %v", err)
	}
	err := s.InsertCoupon(ctx, newCoupon(c.ID, "LCK-AAAA-0002", ledger.StatusActive, base.Add(time.Minute)))
	if !errors.Is(err, ledger.ErrCouponExists) {
		t.Errorf("second live coupon: error = %v, want ErrCouponExists", err)
	}

	// A used coupon still blocks.
	if err := s.SetCouponStatus(ctx, "LCK-AAAA-0001", ledger.StatusUsed); err != nil {
		t.Fatal(err)
	}
	err = s.InsertCoupon(ctx, newCoupon(c.ID, "LCK-AAAA-0003", ledger.StatusActive, base.Add(2*time.Minute)))
	if !errors.Is(err, ledger.ErrCouponExists) {
		t.Errorf("live coupon after use: error = %v, want ErrCouponExists", err)
	}

	coupons, err := s.Coupons(ctx, c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(coupons) != 1 || coupons[0].Status != ledger.StatusUsed {
		t.Errorf("Coupons() = %+v, want one used coupon", coupons)
	}
}

func testCouponUniqueCode(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	a := mustCustomer(t, s, "digest-a")
	b := mustCustomer(t, s, "digest-b")

	if err := s.InsertCoupon(ctx, newCoupon(a.ID, "LCK-DUPE-CODE", ledger.StatusActive, base)); err != nil {
		t.Fatal(err)
	}
	err := s.InsertCoupon(ctx, newCoupon(b.ID, "LCK-DUPE-CODE", ledger.StatusActive, base))
	if !errors.Is(err, ledger.ErrDuplicate) {
		t.Errorf("duplicate coupon code: error = %v, want ErrDuplicate", err)
	}

	// The rejected insert must not have claimed b's live slot.
	if err := s.InsertCoupon(ctx, newCoupon(b.ID, "LCK-FRSH-CODE", ledger.StatusActive, base)); err != nil {
		t.Errorf("fresh code for b: error = %v", err)
	}
}

func testExpiredCouponAllowsReissue(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	c := mustCustomer(t, s, "digest-a")

	if err := s.InsertCoupon(ctx, newCoupon(c.ID, "LCK-0000-0001", ledger.StatusActive, base)); err != nil {
		t.Fatal(err)
	}
	if err := s.SetCouponStatus(ctx, "LCK-0000-0001", ledger.StatusExpired); err != nil {
		t.Fatalf("SetCouponStatus() error = %v", err)
	}
	if err := s.InsertCoupon(ctx, newCoupon(c.ID, "LCK-0000-0002", ledger.StatusActive, base.Add(time.Hour))); err != nil {
		t.Errorf("reissue after expiry: error = %v", err)
	}

	// Non-live rows never take the slot.
	if err := s.InsertCoupon(ctx, newCoupon(c.ID, "LCK-0000-0003", ledger.StatusExpired, base.Add(2*time.Hour))); err != nil {
		t.Errorf("insert expired coupon: error = %v", err)
	}

	if err := s.SetCouponStatus(ctx, "LCK-NONE-NONE", ledger.StatusUsed); !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("SetCouponStatus(unknown) error = %v, want ErrNotFound", err)
	}
}

func testCouponStatusRevive(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	c := mustCustomer(t, s, "digest-a")

	if err := s.InsertCoupon(ctx, newCoupon(c.ID, "LCK-0000-0001", ledger.StatusExpired, base)); err != nil {
		t.Fatal(err)
	}
	if err := s.InsertCoupon(ctx, newCoupon(c.ID, "LCK-0000-0002", ledger.StatusActive, base.Add(time.Hour))); err != nil {
		t.Fatal(err)
	}

	err := s.SetCouponStatus(ctx, "LCK-0000-0001", ledger.StatusActive)
	if !errors.Is(err, ledger.ErrCouponExists) {
		t.Errorf("reviving while another is live: error = %v, want ErrCouponExists", err)
	}

	// Same coupon moving between live states keeps its slot.
	if err := s.SetCouponStatus(ctx, "LCK-0000-0002", ledger.StatusUsed); err != nil {
		t.Errorf("active -> used: error = %v", err)
	}
	if err := s.SetCouponStatus(ctx, "LCK-0000-0002", ledger.StatusExpired); err != nil {
		t.Fatal(err)
	}
	if err := s.SetCouponStatus(ctx, "LCK-0000-0001", ledger.StatusActive); err != nil {
		t.Errorf("reviving after the other expired: error = %v", err)
	}
}

func testCouponsNewestFirst(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	c := mustCustomer(t, s, "digest-a")
	other := mustCustomer(t, s, "digest-b")

	codes := []string{"LCK-0000-000A", "LCK-0000-000B", "LCK-0000-000C"}
	for i, code := range codes {
		cp := newCoupon(c.ID, code, ledger.StatusExpired, base.Add(time.Duration(i)*time.Hour))
		cp.Kind = fmt.Sprintf("promo-%d", i)
		if err := s.InsertCoupon(ctx, cp); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.InsertCoupon(ctx, newCoupon(other.ID, "LCK-0000-000D", ledger.StatusActive, base)); err != nil {
		t.Fatal(err)
	}

	got, err := s.Coupons(ctx, c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("Coupons() returned %d, want 3", len(got))
	}
	for i, want := range []string{"LCK-0000-000C", "LCK-0000-000B", "LCK-0000-000A"} {
		if got[i].Code != want {
			t.Errorf("Coupons()[%d] = %s, want %s", i, got[i].Code, want)
		}
	}
	if got[0].Meta.Description != "free drink" || !got[0].ExpiresAt.Equal(base.Add(2*time.Hour+14*24*time.Hour)) {
		t.Errorf("coupon fields not preserved: %+v", got[0])
	}

	empty, err := s.Coupons(ctx, "nobody")
	if err != nil || empty == nil || len(empty) != 0 {
		t.Errorf("Coupons(nobody) = %#v, %v; want empty non-nil", empty, err)
	}
}

func testConcurrentCustomerInsert(t *testing.T, s ledger.Store) {
	const workers = 8
	ctx := context.Background()

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.InsertCustomer(ctx, newCustomer("digest-race"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ledger.ErrDuplicate), errors.Is(err, ledger.ErrConflict):
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Errorf("%d inserts succeeded for one digest, want 1", successes)
	}
}

func testConcurrentCouponInsert(t *testing.T, s ledger.Store) {
	const workers = 8
	ctx := context.Background()
	c := mustCustomer(t, s, "digest-a")

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			code := fmt.Sprintf("LCK-RACE-%04d", i)
			err := s.InsertCoupon(ctx, newCoupon(c.ID, code, ledger.StatusActive, base))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ledger.ErrCouponExists), errors.Is(err, ledger.ErrConflict):
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if successes != 1 {
		t.Errorf("%d live welcome coupons inserted, want 1", successes)
	}
	coupons, err := s.Coupons(ctx, c.ID)
	if err != nil || len(coupons) != 1 {
		t.Errorf("Coupons() = %d rows, %v; want 1", len(coupons), err)
	}
}
