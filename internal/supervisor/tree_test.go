// Crumb - Budget Bundle Recommendation and Customer Ledger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crumb

package supervisor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

// stubService counts Serve calls and fails the first failures of them.
type stubService struct {
	name     string
	failures int32
	starts   atomic.Int32
	started  chan struct{}
}

func newStubService(name string, failures int32) *stubService {
	return &stubService{name: name, failures: failures, started: make(chan struct{}, 16)}
}

func (s *stubService) Serve(ctx context.Context) error {
	n := s.starts.Add(1)
	s.started <- struct{}{}
	if n <= s.failures {
		return errors.New("simulated failure")
	}
	<-ctx.Done()
	return ctx.Err()
}

func (s *stubService) String() string { return s.name }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitStarts(t *testing.T, s *stubService, n int) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for i := 0; i < n; i++ {
		select {
		case <-s.started:
		case <-deadline:
			t.Fatalf("%s started %d times, want %d", s.name, s.starts.Load(), n)
		}
	}
}

func TestNewSupervisorTreeDefaults(t *testing.T) {
	t.Parallel()

	tree, err := NewSupervisorTree(quietLogger(), TreeConfig{})
	if err != nil {
		t.Fatal(err)
	}
	if tree.Root() == nil {
		t.Fatal("root supervisor is nil")
	}
	if got, want := tree.Config(), DefaultTreeConfig(); got != want {
		t.Errorf("Config() = %+v, want %+v", got, want)
	}

	tree, _ = NewSupervisorTree(quietLogger(), TreeConfig{FailureBackoff: time.Second})
	if tree.Config().FailureBackoff != time.Second || tree.Config().FailureThreshold != 5 {
		t.Errorf("explicit values must survive defaults: %+v", tree.Config())
	}
}

func TestSupervisorTreeStartsEveryLayer(t *testing.T) {
	t.Parallel()

	tree, _ := NewSupervisorTree(quietLogger(), TreeConfig{ShutdownTimeout: time.Second})
	gc := newStubService("ledger-gc", 0)
	audit := newStubService("event-audit", 0)
	http := newStubService("http-server", 0)
	tree.AddLedgerService(gc)
	tree.AddMessagingService(audit)
	tree.AddAPIService(http)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	waitStarts(t, gc, 1)
	waitStarts(t, audit, 1)
	waitStarts(t, http, 1)
	cancel()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("ServeBackground() = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("tree did not stop")
	}
}

func TestSupervisorTreeRestartsFailingService(t *testing.T) {
	t.Parallel()

	tree, _ := NewSupervisorTree(quietLogger(), TreeConfig{
		FailureThreshold: 10,
		FailureBackoff:   10 * time.Millisecond,
		ShutdownTimeout:  time.Second,
	})
	flaky := newStubService("event-audit", 2)
	stable := newStubService("http-server", 0)
	tree.AddMessagingService(flaky)
	tree.AddAPIService(stable)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := tree.ServeBackground(ctx)

	waitStarts(t, flaky, 3)
	waitStarts(t, stable, 1)
	if stable.starts.Load() != 1 {
		t.Errorf("a messaging failure restarted the api layer: %d starts", stable.starts.Load())
	}
	cancel()
	<-errCh
}

func TestRemoveMessagingService(t *testing.T) {
	t.Parallel()

	tree, _ := NewSupervisorTree(quietLogger(), TreeConfig{ShutdownTimeout: time.Second})
	svc := newStubService("event-audit", 0)
	token := tree.AddMessagingService(svc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := tree.ServeBackground(ctx)
	waitStarts(t, svc, 1)

	if err := tree.RemoveMessagingService(token); err != nil {
		t.Errorf("RemoveMessagingService() = %v", err)
	}
	cancel()
	<-errCh

	report, err := tree.UnstoppedServiceReport()
	if err != nil || len(report) != 0 {
		t.Errorf("UnstoppedServiceReport() = %v, %v", report, err)
	}
}
