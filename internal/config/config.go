// Crumb - Budget Bundle Recommendation and Customer Ledger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crumb

package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Catalog   CatalogConfig   `koanf:"catalog"`
	Recommend RecommendConfig `koanf:"recommend"`
	Identity  IdentityConfig  `koanf:"identity"`
	Ledger    LedgerConfig    `koanf:"ledger"`
	Coupon    CouponConfig    `koanf:"coupon"`
	Order     OrderConfig     `koanf:"order"`
	Events    EventsConfig    `koanf:"events"`
	Logging   LoggingConfig   `koanf:"logging"`
	Security  SecurityConfig  `koanf:"security"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port int    `koanf:"port"`
	Host string `koanf:"host"`

	// Timeout bounds each request's work; read and write timeouts derive from it.
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// Environment mode: "development", "staging", "production" (default: "development")
	Environment string `koanf:"environment"`
}

// Address returns host:port for the listener.
func (s ServerConfig) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// CatalogConfig locates the menu file. The format follows the extension
// (.csv or .json).
type CatalogConfig struct {
	Path string `koanf:"path"`
}

// RecommendConfig tunes the bundle and drink recommenders.
//
// Environment Variables:
//   - RECOMMEND_TAG_WEIGHT: points per matched tag (default: 3)
//   - RECOMMEND_SWEETNESS_WINDOW: sweetness closeness window (default: 3)
//   - RECOMMEND_POPULAR_BONUS: bonus for the popular tag (default: 2)
//   - RECOMMEND_CANDIDATE_CAP: items entering combination search (default: 12)
//   - RECOMMEND_MAX_BUNDLE_SIZE: largest bundle (default: 3)
//   - RECOMMEND_TOP_K: bundles returned (default: 3)
//   - BAKERY_CATEGORIES, DRINK_CATEGORIES: comma-separated lists
type RecommendConfig struct {
	TagWeight        int      `koanf:"tag_weight"`
	SweetnessWindow  int      `koanf:"sweetness_window"`
	PopularBonus     int      `koanf:"popular_bonus"`
	PopularTag       string   `koanf:"popular_tag"`
	CandidateCap     int      `koanf:"candidate_cap"`
	MinBundleSize    int      `koanf:"min_bundle_size"`
	MaxBundleSize    int      `koanf:"max_bundle_size"`
	TopK             int      `koanf:"top_k"`
	DrinkTopK        int      `koanf:"drink_top_k"`
	BakeryCategories []string `koanf:"bakery_categories"`
	DrinkCategories  []string `koanf:"drink_categories"`
}

// IdentityConfig holds the key of the contact digest. Changing the salt
// orphans every existing customer.
type IdentityConfig struct {
	Salt string `koanf:"salt"`
}

// LedgerConfig selects and tunes the ledger store.
type LedgerConfig struct {
	// Backend is "badger" (default) or "sqlite".
	Backend string `koanf:"backend"`

	// Path is the Badger directory or the SQLite database file.
	Path string `koanf:"path"`

	// SyncWrites fsyncs every Badger commit.
	SyncWrites bool `koanf:"sync_writes"`

	// GCInterval runs Badger value log GC periodically. Zero disables it.
	GCInterval time.Duration `koanf:"gc_interval"`
	GCRatio    float64       `koanf:"gc_ratio"`

	// RetryAttempts bounds attempts per write on code collisions.
	RetryAttempts int `koanf:"retry_attempts"`
}

// CouponConfig configures welcome coupons.
type CouponConfig struct {
	Prefix             string        `koanf:"prefix"`
	TTL                time.Duration `koanf:"ttl"`
	WelcomeDescription string        `koanf:"welcome_description"`
	WelcomeUsageLimit  string        `koanf:"welcome_usage_limit"`
}

// OrderConfig configures order codes.
type OrderConfig struct {
	Prefix string `koanf:"prefix"`
}

// EventsConfig configures ledger event publication.
type EventsConfig struct {
	// Backend is "gochannel" (in process, default) or "nats".
	Backend         string        `koanf:"backend"`
	BufferSize      int64         `koanf:"buffer_size"`
	NATSURL         string        `koanf:"nats_url"`
	QueueGroup      string        `koanf:"queue_group"`
	MaxReconnects   int           `koanf:"max_reconnects"`
	ReconnectWait   time.Duration `koanf:"reconnect_wait"`
	BreakerFailures uint32        `koanf:"breaker_failures"`
	BreakerTimeout  time.Duration `koanf:"breaker_timeout"`

	// EmbeddedNATS starts an in-process NATS server and points the nats
	// backend at it, ignoring NATSURL.
	EmbeddedNATS bool   `koanf:"embedded_nats"`
	EmbeddedHost string `koanf:"embedded_host"`
	EmbeddedPort int    `koanf:"embedded_port"`

	// AuditEnabled runs the in-process audit consumer.
	AuditEnabled bool `koanf:"audit_enabled"`
	AuditRecent  int  `koanf:"audit_recent"`
}

// LoggingConfig holds logging configuration.
//
// Environment Variables:
//   - LOG_LEVEL: trace, debug, info, warn, error (default: info)
//   - LOG_FORMAT: json, console (default: json)
//   - LOG_CALLER: true/false - include caller file:line (default: false)
type LoggingConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	Level string `koanf:"level"`

	// Format is the output format: json or console.
	// JSON is recommended for production (structured, machine-parseable).
	Format string `koanf:"format"`

	Caller bool `koanf:"caller"`
}

// SecurityConfig holds CORS and rate limiting settings
type SecurityConfig struct {
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	WriteLimitReqs    int           `koanf:"write_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	CORSMaxAgeSeconds int           `koanf:"cors_max_age"`
}

// Load loads configuration using koanf.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
