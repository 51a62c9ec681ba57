// Fleetwatch - Real-time Vehicle Position Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

// Package auth issues and validates the HMAC-signed JWTs carried by vehicles
// and observers, and provides the HTTP middleware that attaches validated
// claims to the request context.
//
// Three roles exist:
//
//   - device: a vehicle reporting its own positions. The token is bound to a
//     single vehicle id and may only report for, or connect as, that vehicle.
//   - observer: a monitoring client reading positions and subscribing to the
//     monitoring stream.
//   - admin: everything, including directed vehicle commands.
//
// Authentication is only enforced when security.auth_mode is "jwt". In "none"
// mode the middleware passes requests through untouched and handlers treat the
// caller as unrestricted.
//
// Tokens are read from the Authorization header ("Bearer <token>") or, for
// WebSocket upgrades where browsers cannot set headers, from the "token"
// query parameter.
//
// Route-level permissions live in internal/authz.
package auth
