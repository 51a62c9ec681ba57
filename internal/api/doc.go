// Fleetwatch - Real-time Vehicle Position Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

// Package api exposes the HTTP and WebSocket surface of Fleetwatch using the
// chi router.
//
// # Endpoints
//
//	POST /api/v1/positions                  report a position (201)
//	GET  /api/v1/positions/nearby           vehicles within radius_km of lat,lng
//	GET  /api/v1/vehicles                   list the fleet
//	GET  /api/v1/vehicles/{id}              one vehicle
//	GET  /api/v1/vehicles/{id}/position     latest position, cache first
//	GET  /api/v1/vehicles/{id}/positions    position history, newest first
//	POST /api/v1/vehicles/{id}/commands     directed command to the vehicle (202)
//	POST /api/v1/auth/token                 issue a token (jwt mode only)
//	GET  /ws/vehicle/{id}                   vehicle connection, may send positions
//	GET  /ws/monitoring                     observer connection
//	GET  /health                            dependency status
//	GET  /metrics                           Prometheus
//
// # Responses
//
// Every JSON response uses one envelope:
//
//	{"success": true, "data": {...}, "metadata": {"timestamp": "...", "request_id": "..."}}
//	{"success": false, "error": {"code": "NOT_FOUND", "message": "...", "details": {...}}, "metadata": {...}}
//
// Ingestion errors map to status codes as follows: validation 400, unknown
// vehicle 404, rate limited 429, durable store failure 503.
package api
