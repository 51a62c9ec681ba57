// Fleetwatch - Real-time Vehicle Position Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

package api

import (
	"context"
	"net/http"
	"time"

	ws "github.com/tomtom215/fleetwatch/internal/websocket"
)

const healthCheckTimeout = 2 * time.Second

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	Status        string          `json:"status"`
	Database      ComponentStatus `json:"database"`
	Cache         ComponentStatus `json:"cache"`
	WebSocket     WebSocketStatus `json:"websocket"`
	UptimeSeconds float64         `json:"uptime_seconds"`
}

// ComponentStatus is the state of one dependency.
type ComponentStatus struct {
	Status  string `json:"status"`
	Backend string `json:"backend,omitempty"`
	Error   string `json:"error,omitempty"`
}

// WebSocketStatus summarizes live connections.
type WebSocketStatus struct {
	Running    bool `json:"running"`
	Vehicles   int  `json:"vehicles"`
	Monitoring int  `json:"monitoring"`
	Queued     int  `json:"queued"`
}

// Health handles GET /health. The durable store gates readiness: without it
// no report can be accepted, so the endpoint answers 503. A degraded cache
// only degrades nearby queries and is reported with 200.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	health := HealthStatus{
		Status:        "healthy",
		Database:      ComponentStatus{Status: "ok", Backend: "duckdb"},
		Cache:         h.cacheStatus(),
		UptimeSeconds: time.Since(h.startTime).Seconds(),
	}

	if err := h.vehicles.Ping(ctx); err != nil {
		health.Database.Status = "error"
		health.Database.Error = err.Error()
		health.Status = "unhealthy"
	}
	if health.Cache.Status != "ok" && health.Status == "healthy" {
		health.Status = "degraded"
	}

	if h.hub != nil {
		reg := h.hub.Registry()
		health.WebSocket = WebSocketStatus{
			Running:    h.hub.Running(),
			Vehicles:   reg.Count(ws.GroupVehicles),
			Monitoring: reg.Count(ws.GroupMonitoring),
			Queued:     h.hub.QueueLen(),
		}
	}

	rw := NewResponseWriter(w, r)
	if health.Status == "unhealthy" {
		rw.write(http.StatusServiceUnavailable, APIResponse{Success: false, Data: health, Metadata: rw.meta()})
		return
	}
	rw.Success(health)
}

func (h *Handler) cacheStatus() ComponentStatus {
	if h.cache == nil {
		return ComponentStatus{Status: "unknown"}
	}
	status := ComponentStatus{Status: "ok", Backend: h.cache.Name()}
	if b, ok := h.cache.(interface{ Status() string }); ok {
		if state := b.Status(); state != "closed" {
			status.Status = "degraded"
			status.Error = "circuit " + state
		}
	}
	return status
}
