// Fleetwatch - Real-time Vehicle Position Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

// Package logging provides centralized zerolog-based structured logging for Fleetwatch.
//
// The package owns a single global zerolog logger configured once at startup
// and exposes level helpers, context helpers and adapters for libraries that
// expect a different logging interface.
//
// # Quick Start
//
//	logging.Init(logging.Config{
//	    Level:  "info",
//	    Format: "json",
//	})
//
//	logging.Info().Int64("vehicle_id", id).Msg("position accepted")
//	logging.Error().Err(err).Msg("persist failed")
//
//	// Request-scoped logging picks up request_id and correlation_id
//	logging.Ctx(ctx).Warn().Err(err).Msg("cache update failed")
//
// # Configuration
//
// Environment Variables:
//
//	LOG_LEVEL   - Minimum log level: trace, debug, info, warn, error (default: info)
//	LOG_FORMAT  - Output format: json, console (default: json)
//	LOG_CALLER  - Include caller file:line: true, false (default: false)
//
// # Adapters
//
//   - NewSlogLogger: slog.Logger backed by zerolog, used by the suture supervisor
//   - NewWatermillLogger: watermill.LoggerAdapter backed by zerolog, used by the event bus
//
// # Best Practices
//
// Always terminate log chains with .Msg() or .Send():
//
//	logging.Info().Str("group", "monitoring").Msg("client connected")  // Correct
//	logging.Info().Str("group", "monitoring")                          // WRONG - log not emitted
package logging
