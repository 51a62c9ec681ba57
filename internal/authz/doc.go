// Fleetwatch - Real-time Vehicle Position Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

// Package authz provides route authorization using Casbin.
//
//	Request -> auth.Authenticate -> authz.Authorize -> Handler
//
// The subject is the role carried in the token, the object is the request
// path and the action is derived from the HTTP method (read or write). The
// model uses keyMatch so policies may end in a wildcard:
//
//	p, observer, /api/v1/vehicles/*, read
//	g, admin, observer
//
// Both model and policy are embedded; EnforcerConfig can point at files on disk
// instead. Decisions are cached for CacheTTL.
//
// Per-vehicle ownership (a device token may only act as its own vehicle) is
// not expressible as a path rule and is checked by the handlers with
// auth.Claims.CanActAs.
package authz
