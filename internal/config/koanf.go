// Crumb - Budget Bundle Recommendation and Customer Ledger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crumb

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are tried in order when CONFIG_PATH is unset or names a
// missing file.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/crumb/config.yaml",
	"/etc/crumb/config.yml",
}

const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig is the bottom layer; the YAML file and then the environment
// override it key by key.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			Host:            "0.0.0.0",
			Timeout:         10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			Environment:     "development",
		},
		Catalog: CatalogConfig{
			Path: "/data/menu.csv",
		},
		Recommend: RecommendConfig{
			TagWeight:        3,
			SweetnessWindow:  3,
			PopularBonus:     2,
			PopularTag:       "#인기",
			CandidateCap:     12,
			MinBundleSize:    1,
			MaxBundleSize:    3,
			TopK:             3,
			DrinkTopK:        3,
			BakeryCategories: []string{"빵", "샌드위치", "샐러드", "디저트"},
			DrinkCategories:  []string{"커피", "라떼", "에이드", "스무디", "티"},
		},
		Identity: IdentityConfig{
			Salt: "", // Required; no default
		},
		Ledger: LedgerConfig{
			Backend:       "badger",
			Path:          "/data/ledger",
			SyncWrites:    false,
			GCInterval:    10 * time.Minute,
			GCRatio:       0.5,
			RetryAttempts: 5,
		},
		Coupon: CouponConfig{
			Prefix:             "LCK",
			TTL:                14 * 24 * time.Hour,
			WelcomeDescription: "Welcome gift: one free drink",
			WelcomeUsageLimit:  "One use per customer, in store only",
		},
		Order: OrderConfig{
			Prefix: "CRB",
		},
		Events: EventsConfig{
			Backend:         "gochannel",
			BufferSize:      256,
			NATSURL:         "nats://127.0.0.1:4222",
			QueueGroup:      "crumb",
			MaxReconnects:   -1,
			ReconnectWait:   2 * time.Second,
			BreakerFailures: 5,
			BreakerTimeout:  30 * time.Second,
			EmbeddedNATS:    false,
			EmbeddedHost:    "127.0.0.1",
			EmbeddedPort:    4222,
			AuditEnabled:    true,
			AuditRecent:     100,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Security: SecurityConfig{
			RateLimitReqs:     120,
			WriteLimitReqs:    30,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
			CORSOrigins:       []string{},
			CORSMaxAgeSeconds: 86400,
		},
	}
}

// LoadWithKoanf merges defaults, the optional YAML file and the mapped
// environment variables, in that order, and validates the result.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	type layer struct {
		name     string
		provider koanf.Provider
		parser   koanf.Parser
	}
	layers := []layer{{"defaults", structs.Provider(defaultConfig(), "koanf"), nil}}
	if path := findConfigFile(); path != "" {
		layers = append(layers, layer{"config file " + path, file.Provider(path), yaml.Parser()})
	}
	layers = append(layers, layer{"environment", env.Provider("", ".", envTransformFunc), nil})

	for _, l := range layers {
		if err := k.Load(l.provider, l.parser); err != nil {
			return nil, fmt.Errorf("load %s: %w", l.name, err)
		}
	}
	if err := splitListValues(k); err != nil {
		return nil, err
	}

	cfg := new(Config)
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// findConfigFile returns CONFIG_PATH if that file exists, else the first
// existing DefaultConfigPaths entry, else "".
func findConfigFile() string {
	candidates := DefaultConfigPaths
	if custom := os.Getenv(ConfigPathEnvVar); custom != "" {
		candidates = append([]string{custom}, DefaultConfigPaths...)
	}
	for _, path := range candidates {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}

// listKeys hold []string values. The environment delivers them as one
// comma-separated string; YAML lists pass through untouched.
var listKeys = []string{
	"security.cors_origins",
	"recommend.bakery_categories",
	"recommend.drink_categories",
}

func splitListValues(k *koanf.Koanf) error {
	for _, key := range listKeys {
		raw, ok := k.Get(key).(string)
		if !ok {
			continue
		}
		var items []string
		for _, item := range strings.Split(raw, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		if len(items) == 0 {
			continue
		}
		if err := k.Set(key, items); err != nil {
			return fmt.Errorf("set %s: %w", key, err)
		}
	}
	return nil
}

// envMappings maps lower-cased environment variable names to koanf paths.
var envMappings = map[string]string{
	// Server mappings
	"http_port":             "server.port",
	"http_host":             "server.host",
	"http_timeout":          "server.timeout",
	"http_shutdown_timeout": "server.shutdown_timeout",
	"environment":           "server.environment",

	// Catalog mappings
	"catalog_path": "catalog.path",

	// Recommendation mappings
	"recommend_tag_weight":       "recommend.tag_weight",
	"recommend_sweetness_window": "recommend.sweetness_window",
	"recommend_popular_bonus":    "recommend.popular_bonus",
	"recommend_popular_tag":      "recommend.popular_tag",
	"recommend_candidate_cap":    "recommend.candidate_cap",
	"recommend_min_bundle_size":  "recommend.min_bundle_size",
	"recommend_max_bundle_size":  "recommend.max_bundle_size",
	"recommend_top_k":            "recommend.top_k",
	"recommend_drink_top_k":      "recommend.drink_top_k",
	"bakery_categories":          "recommend.bakery_categories",
	"drink_categories":           "recommend.drink_categories",

	// Identity mappings
	"identity_salt": "identity.salt",

	// Ledger mappings
	"ledger_backend":        "ledger.backend",
	"ledger_path":           "ledger.path",
	"ledger_sync_writes":    "ledger.sync_writes",
	"ledger_gc_interval":    "ledger.gc_interval",
	"ledger_gc_ratio":       "ledger.gc_ratio",
	"ledger_retry_attempts": "ledger.retry_attempts",

	// Coupon and order mappings
	"coupon_prefix":              "coupon.prefix",
	"coupon_ttl":                 "coupon.ttl",
	"coupon_welcome_description": "coupon.welcome_description",
	"coupon_welcome_usage_limit": "coupon.welcome_usage_limit",
	"order_prefix":               "order.prefix",

	// Events mappings
	"events_backend":          "events.backend",
	"events_buffer_size":      "events.buffer_size",
	"nats_url":                "events.nats_url",
	"nats_queue_group":        "events.queue_group",
	"nats_max_reconnects":     "events.max_reconnects",
	"nats_reconnect_wait":     "events.reconnect_wait",
	"events_breaker_failures": "events.breaker_failures",
	"events_breaker_timeout":  "events.breaker_timeout",
	"nats_embedded":           "events.embedded_nats",
	"nats_embedded_host":      "events.embedded_host",
	"nats_embedded_port":      "events.embedded_port",
	"events_audit_enabled":    "events.audit_enabled",
	"events_audit_recent":     "events.audit_recent",

	// Logging mappings
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	// Security mappings
	"rate_limit_requests":       "security.rate_limit_reqs",
	"rate_limit_write_requests": "security.write_limit_reqs",
	"rate_limit_window":         "security.rate_limit_window",
	"disable_rate_limit":        "security.rate_limit_disabled",
	"cors_origins":              "security.cors_origins",
	"cors_max_age":              "security.cors_max_age",
}

// envTransformFunc maps HTTP_PORT to server.port and so on through
// envMappings. Unmapped variables return "" so koanf skips them.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
