// Fleetwatch - Real-time Vehicle Position Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

// Package feed ingests vehicle positions from a GTFS-Realtime
// VehiclePositions feed. A Poller fetches the feed on an interval, resolves
// each entity to a registered vehicle (license plate first, then a numeric
// vehicle id) and submits it through the same ingestion path as the HTTP API.
// Entities whose timestamp has not advanced since the last poll are skipped.
package feed
