// Crumb - Budget Bundle Recommendation and Customer Ledger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crumb

package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/tomtom215/crumb/internal/logging"
	"github.com/tomtom215/crumb/internal/metrics"
)

func TestRequestIDGeneratesNewID(t *testing.T) {
	t.Parallel()

	var capturedID, capturedCorrelation string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedID = GetRequestID(r.Context())
		capturedCorrelation = logging.CorrelationIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	responseID := rec.Header().Get(HeaderRequestID)
	if _, err := uuid.Parse(responseID); err != nil {
		t.Errorf("response X-Request-ID %q is not a UUID: %v", responseID, err)
	}
	if capturedID != responseID {
		t.Errorf("context id %q != header id %q", capturedID, responseID)
	}
	if capturedCorrelation == "" || rec.Header().Get(HeaderCorrelationID) != capturedCorrelation {
		t.Errorf("correlation id not propagated: ctx=%q header=%q", capturedCorrelation, rec.Header().Get(HeaderCorrelationID))
	}
}

func TestRequestIDInboundHeaders(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		inbound  string
		wantKept bool
	}{
		{"proxy id kept", "edge-7f3a", true},
		{"newline rejected", "abc\nforged=1", false},
		{"space rejected", "a b", false},
		{"oversized rejected", strings.Repeat("x", maxInboundIDLen+1), false},
	}

	for _, tt := range tests {
		var captured string
		handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			captured = logging.RequestIDFromContext(r.Context())
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(HeaderRequestID, tt.inbound)
		req.Header.Set(HeaderCorrelationID, tt.inbound)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		kept := captured == tt.inbound
		if kept != tt.wantKept {
			t.Errorf("%s: request id kept = %v, want %v", tt.name, kept, tt.wantKept)
		}
		if corrKept := rec.Header().Get(HeaderCorrelationID) == tt.inbound; corrKept != tt.wantKept {
			t.Errorf("%s: correlation id kept = %v, want %v", tt.name, corrKept, tt.wantKept)
		}
	}
}

func TestPrometheusMetricsUsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(PrometheusMetrics)
	r.Get("/api/v1/customers/{customerID}/summary", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	const route = "/api/v1/customers/{customerID}/summary"
	before := testutil.ToFloat64(metrics.APIRequestsTotal.WithLabelValues(http.MethodGet, route, "418"))

	for _, id := range []string{"a", "b", "c"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/customers/"+id+"/summary", nil))
		if rec.Code != http.StatusTeapot {
			t.Fatalf("status = %d", rec.Code)
		}
	}

	after := testutil.ToFloat64(metrics.APIRequestsTotal.WithLabelValues(http.MethodGet, route, "418"))
	if after-before != 3 {
		t.Errorf("counter delta = %v, want 3 under one route label", after-before)
	}
	if got := testutil.ToFloat64(metrics.APIActiveRequests); got != 0 {
		t.Errorf("active requests = %v after completion, want 0", got)
	}
}

func TestPrometheusMetricsUnmatchedRoute(t *testing.T) {
	r := chi.NewRouter()
	r.Use(PrometheusMetrics)
	r.Get("/known", func(http.ResponseWriter, *http.Request) {})

	before := testutil.ToFloat64(metrics.APIRequestsTotal.WithLabelValues(http.MethodGet, unmatchedRoute, "404"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/wp-admin/setup.php", nil))

	after := testutil.ToFloat64(metrics.APIRequestsTotal.WithLabelValues(http.MethodGet, unmatchedRoute, "404"))
	if after-before != 1 {
		t.Errorf("unmatched counter delta = %v, want 1", after-before)
	}
}

func TestAccessLog(t *testing.T) {
	var buf bytes.Buffer
	prev := logging.Logger()
	logging.SetLogger(zerolog.New(&buf).Level(zerolog.DebugLevel))
	t.Cleanup(func() { logging.SetLogger(prev) })

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(AccessLog(time.Nanosecond))
	r.Post("/api/v1/customers/{customerID}/orders", func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(time.Millisecond)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/customers/cust-zz9/orders", nil))

	line := buf.String()
	for _, want := range []string{
		`"level":"warn"`,
		`"route":"/api/v1/customers/{customerID}/orders"`,
		`"status":201`,
		`"bytes":11`,
		`"request_id":"` + rec.Header().Get(HeaderRequestID) + `"`,
	} {
		if !strings.Contains(line, want) {
			t.Errorf("access log %s missing %s", line, want)
		}
	}
	if strings.Contains(line, "cust-zz9") {
		t.Error("access log contains the raw path")
	}
}

func TestStatusRecorderKeepsFirstStatus(t *testing.T) {
	t.Parallel()

	rec := newStatusRecorder(httptest.NewRecorder())
	_, _ = rec.Write([]byte("x"))
	rec.WriteHeader(http.StatusInternalServerError)
	if rec.status != http.StatusOK {
		t.Errorf("status = %d, want implicit 200", rec.status)
	}
	if newStatusRecorder(rec) != rec {
		t.Error("nested recorder was not reused")
	}
}
