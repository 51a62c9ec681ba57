// Fleetwatch - Real-time Vehicle Position Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

/*
Package metrics provides Prometheus metrics collection and export for observability.

# Overview

The package provides metrics for:
  - Position ingestion outcomes and latency
  - Position cache operations per backend and circuit breaker state
  - WebSocket connections per group and fan-out delivery results
  - Nearby query latency
  - GTFS-Realtime feed polling
  - Event bus publishing
  - HTTP request latency and throughput
  - DuckDB query performance

# Metrics Endpoint

Metrics are exposed at the /metrics endpoint in Prometheus text format:

	curl http://localhost:8000/metrics

All collectors are registered with the default registry through promauto, so
importing the package is enough to make them visible.
*/
package metrics
