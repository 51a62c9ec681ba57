// Fleetwatch - Real-time Vehicle Position Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

// Package services adapts Fleetwatch components to suture.Service.
//
// Components whose lifecycle is not already Serve(ctx) error get a wrapper
// here: the HTTP server (ListenAndServe/Shutdown), the WebSocket hub
// (RunWithContext), the embedded NATS server (Shutdown) and periodic
// maintenance jobs. The event relay and the feed poller implement Serve
// themselves and are added to the tree directly.
//
// Wrappers take small interfaces instead of concrete types so they can be
// tested with fakes and do not import the packages they supervise.
package services
