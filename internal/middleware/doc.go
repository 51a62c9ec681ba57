// Fleetwatch - Real-time Vehicle Position Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

// Package middleware provides chi-compatible HTTP middleware shared by the API
// router: request ID propagation into the logging context, and Prometheus
// request instrumentation labelled by route pattern.
//
// Both wrap the response writer with chi's WrapResponseWriter so WebSocket
// upgrades can still hijack the connection.
package middleware
