// Crumb - Budget Bundle Recommendation and Customer Ledger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crumb

package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/crumb/internal/config"
	"github.com/tomtom215/crumb/internal/logging"
)

// loadTestConfig loads configuration the way main does, from the environment,
// with a temp ledger and the catalog test fixture.
func loadTestConfig(t *testing.T, backend string) *config.Config {
	t.Helper()

	catalogPath, err := filepath.Abs(filepath.Join("..", "..", "internal", "catalog", "testdata", "catalog.csv"))
	if err != nil {
		t.Fatalf("catalog path: %v", err)
	}

	dir := t.TempDir()
	t.Chdir(dir)

	ledgerPath := filepath.Join(dir, "ledger")
	if backend == "sqlite" {
		ledgerPath = filepath.Join(dir, "ledger.db")
	}

	t.Setenv(config.ConfigPathEnvVar, "")
	t.Setenv("IDENTITY_SALT", "wiring-test-salt-0123456789")
	t.Setenv("CATALOG_PATH", catalogPath)
	t.Setenv("LEDGER_BACKEND", backend)
	t.Setenv("LEDGER_PATH", ledgerPath)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}
	return cfg
}

func TestBuildApplication(t *testing.T) {
	for _, backend := range []string{"badger", "sqlite"} {
		t.Run(backend, func(t *testing.T) {
			cfg := loadTestConfig(t, backend)

			app, err := buildApplication(cfg)
			if err != nil {
				t.Fatalf("buildApplication() error = %v", err)
			}
			t.Cleanup(func() {
				if err := app.Close(); err != nil {
					t.Errorf("Close() error = %v", err)
				}
			})

			if (app.gc != nil) != (backend == "badger") {
				t.Errorf("gc set = %v for backend %s", app.gc != nil, backend)
			}
			if app.audit == nil {
				t.Error("audit consumer should be built when enabled")
			}

			rec := httptest.NewRecorder()
			app.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
			if rec.Code != http.StatusOK {
				t.Fatalf("health status = %d, want 200", rec.Code)
			}

			body := strings.NewReader(`{"contact":"010-1234-5678","consent":true}`)
			req := httptest.NewRequest(http.MethodPost, "/api/v1/customers/identify", body)
			req.Header.Set("Content-Type", "application/json")
			rec = httptest.NewRecorder()
			app.handler.ServeHTTP(rec, req)
			if rec.Code != http.StatusCreated {
				t.Fatalf("identify status = %d, want 201: %s", rec.Code, rec.Body.String())
			}

			tree, err := buildTree(app)
			if err != nil {
				t.Fatalf("buildTree() error = %v", err)
			}
			if tree.Config().ShutdownTimeout != cfg.Server.ShutdownTimeout {
				t.Errorf("tree shutdown timeout = %v, want %v", tree.Config().ShutdownTimeout, cfg.Server.ShutdownTimeout)
			}
		})
	}
}

func TestBuildApplicationEmbeddedNATS(t *testing.T) {
	t.Setenv("EVENTS_BACKEND", "nats")
	t.Setenv("NATS_EMBEDDED", "true")
	t.Setenv("NATS_EMBEDDED_PORT", "-1")
	cfg := loadTestConfig(t, "sqlite")

	app, err := buildApplication(cfg)
	if err != nil {
		t.Fatalf("buildApplication() error = %v", err)
	}
	if app.nats == nil || !app.nats.IsRunning() {
		t.Fatal("embedded NATS server should be running")
	}

	rec := httptest.NewRecorder()
	app.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("health status = %d, want 200", rec.Code)
	}

	if err := app.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if app.nats.IsRunning() {
		t.Error("embedded NATS server still running after Close")
	}
}

func TestBuildApplicationFailures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{
			name:   "missing catalog",
			mutate: func(c *config.Config) { c.Catalog.Path = filepath.Join(t.TempDir(), "menu.csv") },
			want:   "load catalog",
		},
		{
			name:   "unknown ledger backend",
			mutate: func(c *config.Config) { c.Ledger.Backend = "postgres" },
			want:   "unknown ledger backend",
		},
		{
			name:   "invalid event backend",
			mutate: func(c *config.Config) { c.Events.Backend = "kafka" },
			want:   "create event bus",
		},
		{
			name:   "missing salt",
			mutate: func(c *config.Config) { c.Identity.Salt = "" },
			want:   "create contact hasher",
		},
		{
			name:   "invalid recommend config",
			mutate: func(c *config.Config) { c.Recommend.CandidateCap = 0 },
			want:   "create recommendation engine",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := loadTestConfig(t, "sqlite")
			tt.mutate(cfg)

			app, err := buildApplication(cfg)
			if err == nil {
				_ = app.Close()
				t.Fatal("buildApplication() should fail")
			}
			if app != nil {
				t.Error("failed build should return a nil application")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestConfigMapping(t *testing.T) {
	cfg := loadTestConfig(t, "sqlite")
	cfg.Coupon.TTL = 48 * time.Hour
	cfg.Security.CORSOrigins = []string{"https://shop.example"}
	cfg.Security.CORSMaxAgeSeconds = 0

	lc := ledgerConfig(cfg)
	if lc.CouponTTL != 48*time.Hour || lc.OrderPrefix != "CRB" || lc.CouponPrefix != "LCK" {
		t.Errorf("ledgerConfig = %+v", lc)
	}
	if err := lc.Validate(); err != nil {
		t.Errorf("ledgerConfig should validate: %v", err)
	}

	rc := recommendConfig(cfg.Recommend)
	if rc.Weights.TagMatch != 3 || rc.Weights.SweetnessWindow != 3 || rc.Weights.PopularBonus != 2 {
		t.Errorf("recommend weights = %+v", rc.Weights)
	}
	if err := rc.Validate(); err != nil {
		t.Errorf("recommendConfig should validate: %v", err)
	}

	ec := eventsConfig(cfg.Events)
	if err := ec.Validate(); err != nil {
		t.Errorf("eventsConfig should validate: %v", err)
	}

	mw := middlewareConfig(cfg.Security)
	if len(mw.CORSAllowedOrigins) != 1 || mw.CORSAllowedOrigins[0] != "https://shop.example" {
		t.Errorf("CORS origins = %v", mw.CORSAllowedOrigins)
	}
	if mw.CORSMaxAge != 86400 {
		t.Errorf("CORSMaxAge = %d, want the default when unset", mw.CORSMaxAge)
	}
	if mw.RateLimitRequests != cfg.Security.RateLimitReqs || mw.WriteLimitRequests != cfg.Security.WriteLimitReqs {
		t.Errorf("rate limits = %d/%d", mw.RateLimitRequests, mw.WriteLimitRequests)
	}
}

func TestBuildApplicationLogsStartupOnce(t *testing.T) {
	for _, backend := range []string{"badger", "sqlite"} {
		t.Run(backend, func(t *testing.T) {
			cfg := loadTestConfig(t, backend)

			previous := logging.Logger()
			t.Cleanup(func() { logging.SetLogger(previous) })
			var buf bytes.Buffer
			logging.SetLogger(logging.NewTestLogger(&buf))

			app, err := buildApplication(cfg)
			if err != nil {
				t.Fatalf("buildApplication() error = %v", err)
			}
			t.Cleanup(func() { _ = app.Close() })

			out := buf.String()
			for _, msg := range []string{"Catalog loaded", "Ledger store opened"} {
				if n := strings.Count(out, `"message":"`+msg+`"`); n != 1 {
					t.Errorf("%q logged %d times, want 1\n%s", msg, n, out)
				}
			}
			if !strings.Contains(out, `"backend":"`+backend+`"`) {
				t.Errorf("store log line missing backend %s\n%s", backend, out)
			}
		})
	}
}
