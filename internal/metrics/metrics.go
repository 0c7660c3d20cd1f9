// Crumb - Budget Bundle Recommendation and Customer Ledger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crumb

// Package metrics defines the Prometheus collectors for Crumb.
//
// Collectors are registered with the default registry through promauto and
// exposed on /metrics by the api package. Callers use the Record* helpers so
// label values stay consistent.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values shared by several collectors.
const (
	OutcomeSuccess    = "success"
	OutcomeFailure    = "failure"
	OutcomeEmpty      = "empty"
	OutcomeRejected   = "rejected"
	OutcomeDuplicate  = "duplicate"
	OutcomeConflict   = "conflict"
	OutcomeExhausted  = "exhausted"
	OutcomeAlreadyHas = "already_issued"
)

var (
	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crumb_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "route", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crumb_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"method", "route"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "crumb_api_active_requests",
			Help: "Current number of in-flight API requests",
		},
	)

	// Catalog Metrics
	CatalogItems = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "crumb_catalog_items",
			Help: "Number of items in the currently loaded catalog",
		},
	)

	CatalogLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crumb_catalog_loads_total",
			Help: "Catalog load attempts by outcome",
		},
		[]string{"outcome"},
	)

	// Recommendation Metrics
	RecommendSearches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crumb_recommend_searches_total",
			Help: "Bundle searches by outcome (success, empty, rejected)",
		},
		[]string{"kind", "outcome"},
	)

	RecommendSubsetsEvaluated = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "crumb_recommend_subsets_evaluated",
			Help:    "Number of candidate subsets enumerated per bundle search",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		},
	)

	RecommendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "crumb_recommend_duration_seconds",
			Help:    "Bundle search duration in seconds",
			Buckets: []float64{0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
		},
	)

	// Ledger Metrics
	LedgerOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crumb_ledger_operations_total",
			Help: "Ledger operations by name and outcome",
		},
		[]string{"operation", "outcome"},
	)

	LedgerOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crumb_ledger_operation_duration_seconds",
			Help:    "Ledger operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	LedgerRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crumb_ledger_retries_total",
			Help: "Retried ledger writes after a uniqueness or transaction conflict",
		},
		[]string{"operation", "reason"},
	)

	CustomersResolved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crumb_customers_resolved_total",
			Help: "Identity resolutions by result (created, existing)",
		},
		[]string{"result"},
	)

	CouponsIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crumb_coupons_issued_total",
			Help: "Coupon issuance attempts by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	// Event Metrics
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crumb_events_published_total",
			Help: "Ledger events published by topic and outcome",
		},
		[]string{"topic", "outcome"},
	)

	EventsConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crumb_events_consumed_total",
			Help: "Ledger events processed by the audit consumer",
		},
		[]string{"topic"},
	)
)

// RecordAPIRequest records one finished HTTP request.
func RecordAPIRequest(method, route string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// TrackActiveRequest increments or decrements the in-flight gauge.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordCatalogLoad records a catalog load and, on success, the item count.
func RecordCatalogLoad(items int, err error) {
	if err != nil {
		CatalogLoads.WithLabelValues(OutcomeFailure).Inc()
		return
	}
	CatalogLoads.WithLabelValues(OutcomeSuccess).Inc()
	CatalogItems.Set(float64(items))
}

// RecordSearch records a finished recommendation request.
// kind is "bundle" or "drink".
func RecordSearch(kind, outcome string, subsets int, duration time.Duration) {
	RecommendSearches.WithLabelValues(kind, outcome).Inc()
	if kind == "bundle" && outcome != OutcomeRejected {
		RecommendSubsetsEvaluated.Observe(float64(subsets))
		RecommendDuration.Observe(duration.Seconds())
	}
}

// RecordLedgerOperation records the outcome and duration of a ledger call.
func RecordLedgerOperation(operation, outcome string, duration time.Duration) {
	LedgerOperations.WithLabelValues(operation, outcome).Inc()
	LedgerOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordLedgerRetry records one retried attempt of operation.
func RecordLedgerRetry(operation, reason string) {
	LedgerRetries.WithLabelValues(operation, reason).Inc()
}

// RecordCustomerResolved records whether a resolution created a customer.
func RecordCustomerResolved(created bool) {
	if created {
		CustomersResolved.WithLabelValues("created").Inc()
		return
	}
	CustomersResolved.WithLabelValues("existing").Inc()
}

// RecordCouponIssue records a coupon issuance outcome.
func RecordCouponIssue(kind, outcome string) {
	CouponsIssued.WithLabelValues(kind, outcome).Inc()
}

// RecordEventPublished records a publish attempt on topic.
func RecordEventPublished(topic string, err error) {
	if err != nil {
		EventsPublished.WithLabelValues(topic, OutcomeFailure).Inc()
		return
	}
	EventsPublished.WithLabelValues(topic, OutcomeSuccess).Inc()
}

// RecordEventConsumed records one event handled by the audit consumer.
func RecordEventConsumed(topic string) {
	EventsConsumed.WithLabelValues(topic).Inc()
}
