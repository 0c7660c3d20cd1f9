// Crumb - Budget Bundle Recommendation and Customer Ledger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crumb

package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Validate returns the first problem found, naming the environment variable
// that controls the offending setting.
func (c *Config) Validate() error {
	for _, check := range []func() error{
		c.validateServer,
		c.validateCatalog,
		c.validateRecommend,
		c.validateIdentity,
		c.validateLedger,
		c.validateCodes,
		c.validateEvents,
		c.validateSecurity,
		c.validateLogging,
	} {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateServer() error {
	switch {
	case c.Server.Port <= 0 || c.Server.Port > 65535:
		return fmt.Errorf("HTTP_PORT %d is outside 1-65535", c.Server.Port)
	case c.Server.Timeout <= 0:
		return fmt.Errorf("HTTP_TIMEOUT must be positive")
	case c.Server.ShutdownTimeout <= 0:
		return fmt.Errorf("HTTP_SHUTDOWN_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateCatalog() error {
	if c.Catalog.Path == "" {
		return fmt.Errorf("CATALOG_PATH is required")
	}
	switch strings.ToLower(filepath.Ext(c.Catalog.Path)) {
	case ".csv", ".json":
		return nil
	default:
		return fmt.Errorf("CATALOG_PATH must end in .csv or .json, got %q", c.Catalog.Path)
	}
}

// maxCandidateCap bounds the combination search; 24 items at size 3 is about 2.3k subsets.
const maxCandidateCap = 24

func (c *Config) validateRecommend() error {
	r := c.Recommend
	if r.TagWeight < 0 || r.SweetnessWindow < 0 || r.PopularBonus < 0 {
		return fmt.Errorf("recommendation weights must be non-negative")
	}
	if r.CandidateCap < 1 || r.CandidateCap > maxCandidateCap {
		return fmt.Errorf("RECOMMEND_CANDIDATE_CAP must be between 1 and %d", maxCandidateCap)
	}
	if r.MinBundleSize < 1 || r.MaxBundleSize < r.MinBundleSize {
		return fmt.Errorf("bundle size range %d..%d is invalid", r.MinBundleSize, r.MaxBundleSize)
	}
	if r.TopK < 1 || r.DrinkTopK < 1 {
		return fmt.Errorf("RECOMMEND_TOP_K and RECOMMEND_DRINK_TOP_K must be at least 1")
	}
	if len(r.BakeryCategories) == 0 {
		return fmt.Errorf("BAKERY_CATEGORIES must not be empty")
	}
	if len(r.DrinkCategories) == 0 {
		return fmt.Errorf("DRINK_CATEGORIES must not be empty")
	}
	return nil
}

// minSaltLength is the shortest accepted digest key.
const minSaltLength = 16

func (c *Config) validateIdentity() error {
	if len(c.Identity.Salt) < minSaltLength {
		return fmt.Errorf("IDENTITY_SALT is required and must be at least %d characters", minSaltLength)
	}
	if containsPlaceholder(c.Identity.Salt) {
		return fmt.Errorf("IDENTITY_SALT contains a placeholder value - generate one with: openssl rand -base64 32")
	}
	return nil
}

// validLedgerBackends defines the allowed ledger stores
var validLedgerBackends = map[string]bool{
	"badger": true,
	"sqlite": true,
}

func (c *Config) validateLedger() error {
	if !validLedgerBackends[c.Ledger.Backend] {
		return fmt.Errorf("LEDGER_BACKEND must be one of: badger, sqlite")
	}
	if c.Ledger.Path == "" {
		return fmt.Errorf("LEDGER_PATH is required")
	}
	if c.Ledger.RetryAttempts < 1 || c.Ledger.RetryAttempts > 20 {
		return fmt.Errorf("LEDGER_RETRY_ATTEMPTS must be between 1 and 20")
	}
	if c.Ledger.GCInterval < 0 {
		return fmt.Errorf("LEDGER_GC_INTERVAL must not be negative")
	}
	if c.Ledger.GCRatio <= 0 || c.Ledger.GCRatio >= 1 {
		return fmt.Errorf("LEDGER_GC_RATIO must be between 0 and 1 (exclusive)")
	}
	return nil
}

// validateCodes checks the order and coupon code settings.
func (c *Config) validateCodes() error {
	if err := validatePrefix(c.Order.Prefix, "ORDER_PREFIX"); err != nil {
		return err
	}
	if err := validatePrefix(c.Coupon.Prefix, "COUPON_PREFIX"); err != nil {
		return err
	}
	if c.Coupon.TTL < time.Hour {
		return fmt.Errorf("COUPON_TTL must be at least 1h")
	}
	return nil
}

// validatePrefix accepts 1 to 8 upper-case ASCII letters or digits.
func validatePrefix(prefix, name string) error {
	if prefix == "" || len(prefix) > 8 {
		return fmt.Errorf("%s must be 1 to 8 characters", name)
	}
	for _, r := range prefix {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return fmt.Errorf("%s must contain only A-Z and 0-9, got %q", name, prefix)
		}
	}
	return nil
}

func (c *Config) validateEvents() error {
	switch c.Events.Backend {
	case "gochannel":
	case "nats":
		if c.Events.EmbeddedNATS {
			if c.Events.EmbeddedPort < -1 || c.Events.EmbeddedPort > 65535 {
				return fmt.Errorf("NATS_EMBEDDED_PORT must be -1 (random) or 0-65535")
			}
			break
		}
		if err := validateNATSURL(c.Events.NATSURL); err != nil {
			return fmt.Errorf("NATS_URL is invalid: %w", err)
		}
	default:
		return fmt.Errorf("EVENTS_BACKEND must be one of: gochannel, nats")
	}
	if c.Events.EmbeddedNATS && c.Events.Backend != "nats" {
		return fmt.Errorf("NATS_EMBEDDED requires EVENTS_BACKEND=nats")
	}
	if c.Events.BufferSize < 0 {
		return fmt.Errorf("EVENTS_BUFFER_SIZE must not be negative")
	}
	if c.Events.BreakerFailures == 0 {
		return fmt.Errorf("EVENTS_BREAKER_FAILURES must be at least 1")
	}
	if c.Events.BreakerTimeout <= 0 {
		return fmt.Errorf("EVENTS_BREAKER_TIMEOUT must be positive")
	}
	return nil
}

// natsSchemes are the URL schemes nats.go dials.
var natsSchemes = []string{"nats", "tls", "ws", "wss"}

// validateNATSURL accepts a single NATS server URL with a host and, if
// given, a numeric port.
func validateNATSURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if !slices.Contains(natsSchemes, u.Scheme) {
		return fmt.Errorf("scheme %q is not one of %s", u.Scheme, strings.Join(natsSchemes, ", "))
	}
	if u.Hostname() == "" {
		return fmt.Errorf("missing host in %q", raw)
	}
	if p := u.Port(); p != "" {
		if n, err := strconv.Atoi(p); err != nil || n < 1 || n > 65535 {
			return fmt.Errorf("port %q out of range", p)
		}
	}
	return nil
}

func (c *Config) validateSecurity() error {
	if c.IsProduction() && c.hasWildcardCORS() {
		return fmt.Errorf("CORS_ORIGINS may not contain * when ENVIRONMENT=production; " +
			"list the kiosk origins explicitly")
	}
	if c.Security.RateLimitDisabled {
		return nil
	}

	sec := c.Security
	switch {
	case sec.RateLimitReqs < 1 || sec.RateLimitReqs > maxRequestsPerWindow:
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be between 1 and %d", maxRequestsPerWindow)
	case sec.WriteLimitReqs < 1 || sec.WriteLimitReqs > sec.RateLimitReqs:
		return fmt.Errorf("RATE_LIMIT_WRITE_REQUESTS must be between 1 and RATE_LIMIT_REQUESTS (%d)", sec.RateLimitReqs)
	case sec.RateLimitWindow < time.Second || sec.RateLimitWindow > time.Hour:
		return fmt.Errorf("RATE_LIMIT_WINDOW %v is outside 1s-1h", sec.RateLimitWindow)
	}
	return nil
}

const maxRequestsPerWindow = 100_000

func (c *Config) hasWildcardCORS() bool {
	return slices.Contains(c.Security.CORSOrigins, "*")
}

// ShouldWarnAboutCORS reports a wildcard origin, which validation only
// rejects in production.
func (c *Config) ShouldWarnAboutCORS() bool {
	return c.hasWildcardCORS()
}

func (c *Config) environment() string {
	return strings.ToLower(strings.TrimSpace(c.Server.Environment))
}

func (c *Config) IsProduction() bool {
	switch c.environment() {
	case "production", "prod":
		return true
	}
	return false
}

// IsDevelopment treats an unset ENVIRONMENT as development.
func (c *Config) IsDevelopment() bool {
	switch c.environment() {
	case "", "development", "dev":
		return true
	}
	return false
}

// containsPlaceholder catches values pasted from the sample config.
func containsPlaceholder(s string) bool {
	lower := strings.ToLower(s)
	return slices.ContainsFunc([]string{"replace_with", "change_me", "changeme", "your_salt", "example"},
		func(marker string) bool { return strings.Contains(lower, marker) })
}

var (
	logLevels  = []string{"trace", "debug", "info", "warn", "error"}
	logFormats = []string{"json", "console"}
)

func (c *Config) validateLogging() error {
	if !slices.Contains(logLevels, c.Logging.Level) {
		return fmt.Errorf("LOG_LEVEL %q must be one of %s", c.Logging.Level, strings.Join(logLevels, ", "))
	}
	if c.Logging.Format != "" && !slices.Contains(logFormats, c.Logging.Format) {
		return fmt.Errorf("LOG_FORMAT %q must be one of %s", c.Logging.Format, strings.Join(logFormats, ", "))
	}
	return nil
}
