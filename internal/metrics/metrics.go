// Fleetwatch - Real-time Vehicle Position Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingestion Metrics
	PositionsAccepted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fleet_positions_accepted_total",
			Help: "Total number of position reports accepted",
		},
	)

	PositionsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleet_positions_rejected_total",
			Help: "Total number of position reports rejected",
		},
		[]string{"reason"}, // validation, not_found, persistence, rate_limited
	)

	IngestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fleet_ingest_duration_seconds",
			Help:    "Duration of the synchronous part of position ingestion",
			Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
	)

	// Cache Metrics
	CacheOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleet_cache_operations_total",
			Help: "Total number of position cache operations",
		},
		[]string{"backend", "operation", "result"}, // result: hit, miss, ok, error
	)

	CacheEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fleet_cache_entries",
			Help: "Current number of live entries in the position cache",
		},
		[]string{"backend"},
	)

	CacheSweptEntries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleet_cache_swept_entries_total",
			Help: "Total number of expired entries removed by the sweeper or lazy confirmation",
		},
		[]string{"backend"},
	)

	NearbyQueryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fleet_nearby_query_duration_seconds",
			Help:    "Duration of radius queries against the geo-index",
			Buckets: prometheus.DefBuckets,
		},
	)

	// WebSocket Metrics
	WSConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Current number of registered WebSocket connections",
		},
		[]string{"group"},
	)

	WSMessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket messages delivered",
		},
		[]string{"group"},
	)

	WSMessagesReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_received_total",
			Help: "Total number of WebSocket messages received",
		},
	)

	WSDeliveryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_delivery_failures_total",
			Help: "Total number of per-connection delivery failures",
		},
		[]string{"group", "reason"}, // reason: timeout, closed, write
	)

	WSEventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_events_dropped_total",
			Help: "Total number of broadcast events dropped because the dispatch queue was full",
		},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: success, failure, rejected
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Feed Metrics
	FeedPolls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gtfsrt_feed_polls_total",
			Help: "Total number of GTFS-Realtime feed polls",
		},
		[]string{"result"}, // ok, fetch_error, decode_error
	)

	FeedPositions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gtfsrt_feed_positions_total",
			Help: "Total number of vehicle positions read from the feed",
		},
		[]string{"result"}, // ingested, unchanged, unknown_vehicle, rejected
	)

	// Event Bus Metrics
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleet_events_published_total",
			Help: "Total number of domain events published to the event bus",
		},
		[]string{"result"}, // ok, error
	)

	EventsRelayed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fleet_events_relayed_total",
			Help: "Total number of events from other instances rebroadcast locally",
		},
	)

	// Database Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdb_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation", "table"},
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Number of API requests currently being processed",
		},
	)
)

// RecordDBQuery records a database query metric
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation, table).Inc()
	}
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordCacheOp records a cache operation result for a backend.
func RecordCacheOp(backend, operation string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	CacheOperations.WithLabelValues(backend, operation, result).Inc()
}

// RecordCacheLookup records a hit or miss for a cache read.
func RecordCacheLookup(backend string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	CacheOperations.WithLabelValues(backend, "get", result).Inc()
}

// RecordRejection records a rejected position report.
func RecordRejection(reason string) {
	PositionsRejected.WithLabelValues(reason).Inc()
}
