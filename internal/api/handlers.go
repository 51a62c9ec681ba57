// Fleetwatch - Real-time Vehicle Position Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/fleetwatch/internal/auth"
	"github.com/tomtom215/fleetwatch/internal/config"
	"github.com/tomtom215/fleetwatch/internal/models"
	ws "github.com/tomtom215/fleetwatch/internal/websocket"
)

// Tracker is the ingestion and query side of tracking.Service.
type Tracker interface {
	ReportPosition(ctx context.Context, report models.PositionReport) (models.StoredPosition, error)
	Nearby(ctx context.Context, lat, lng, radiusKm float64) ([]models.NearbyVehicle, error)
	LatestPosition(ctx context.Context, vehicleID int64) (models.CachedPosition, bool, error)
}

// VehicleStore is the read side of the durable store.
type VehicleStore interface {
	ListVehicles(ctx context.Context, filter models.VehicleFilter) ([]models.Vehicle, error)
	GetVehicle(ctx context.Context, id int64) (models.Vehicle, bool, error)
	PositionHistory(ctx context.Context, vehicleID int64, limit int) ([]models.StoredPosition, error)
	Ping(ctx context.Context) error
}

// Hub is the WebSocket fan-out used by the handlers.
type Hub interface {
	Serve(ctx context.Context, conn *websocket.Conn, group ws.Group, onMessage ws.InboundHandler) error
	SendTo(ctx context.Context, vehicleID int64, msg ws.Message) int
	Registry() *ws.Registry
	Running() bool
	QueueLen() int
}

// CacheStatus describes the position cache for the health endpoint.
// Status is optional; the circuit-breaker wrapper provides it.
type CacheStatus interface {
	Name() string
}

// Handler contains dependencies for API handlers.
//
// Handler methods are split across files:
//   - handlers_positions.go: ingestion and nearby queries
//   - handlers_vehicles.go: fleet listing, latest position, history, commands
//   - handlers_websocket.go: vehicle and monitoring connections
//   - handlers_health.go: dependency status
//   - handlers_auth.go: token issuance
type Handler struct {
	tracker    Tracker
	vehicles   VehicleStore
	hub        Hub
	cache      CacheStatus
	jwtManager *auth.JWTManager
	config     *config.Config
	startTime  time.Time
	upgrader   websocket.Upgrader
}

// NewHandler creates a new API handler. jwtManager may be nil when
// authentication is disabled.
func NewHandler(tracker Tracker, vehicles VehicleStore, hub Hub, cache CacheStatus, jwtManager *auth.JWTManager, cfg *config.Config) *Handler {
	h := &Handler{
		tracker:    tracker,
		vehicles:   vehicles,
		hub:        hub,
		cache:      cache,
		jwtManager: jwtManager,
		config:     cfg,
		startTime:  time.Now(),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
	return h
}

// claims returns the caller's token claims. ok is false when authentication
// is disabled, in which case the caller is unrestricted.
func claims(r *http.Request) (*auth.Claims, bool) {
	return auth.ClaimsFromContext(r.Context())
}

// canActAs reports whether the caller may report for or connect as vehicleID.
func canActAs(r *http.Request, vehicleID int64) bool {
	c, ok := claims(r)
	if !ok {
		return true
	}
	return c.CanActAs(vehicleID)
}
