// Fleetwatch - Real-time Vehicle Position Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

package api

import (
	"time"

	"github.com/tomtom215/fleetwatch/internal/models"
)

// PositionRequest is the body of POST /api/v1/positions and the data of an
// inbound "position" WebSocket message. Coordinates are pointers so a missing
// field is distinguishable from the equator or the prime meridian.
type PositionRequest struct {
	VehicleID  int64      `json:"vehicle_id"`
	Latitude   *float64   `json:"latitude" validate:"required"`
	Longitude  *float64   `json:"longitude" validate:"required"`
	Speed      *float64   `json:"speed,omitempty"`
	Heading    *float64   `json:"heading,omitempty"`
	Accuracy   *float64   `json:"accuracy,omitempty"`
	ObservedAt *time.Time `json:"observed_at,omitempty"`
}

// Report converts the request into a position report.
func (p PositionRequest) Report() models.PositionReport {
	report := models.PositionReport{
		VehicleID: p.VehicleID,
		Latitude:  *p.Latitude,
		Longitude: *p.Longitude,
		Speed:     p.Speed,
		Heading:   p.Heading,
		Accuracy:  p.Accuracy,
	}
	if p.ObservedAt != nil {
		report.ObservedAt = p.ObservedAt.UTC()
	}
	return report
}

// VehicleListRequest holds the query parameters of GET /api/v1/vehicles.
type VehicleListRequest struct {
	VehicleType string `json:"vehicle_type" validate:"omitempty,oneof=car motorcycle"`
	Status      string `json:"status" validate:"omitempty,oneof=active inactive maintenance accident"`
	Limit       int    `json:"limit" validate:"gte=1,lte=1000"`
	Offset      int    `json:"offset" validate:"gte=0"`
}

// HistoryRequest holds the query parameters of GET /api/v1/vehicles/{id}/positions.
type HistoryRequest struct {
	Limit int `json:"limit" validate:"gte=1,lte=1000"`
}

// CommandRequest is the body of POST /api/v1/vehicles/{id}/commands.
type CommandRequest struct {
	Command string                 `json:"command" validate:"required,max=64"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// TokenRequest is the body of POST /api/v1/auth/token.
type TokenRequest struct {
	Subject   string `json:"subject" validate:"required,max=128"`
	Role      string `json:"role" validate:"required,oneof=device observer admin"`
	VehicleID int64  `json:"vehicle_id" validate:"required_if=Role device"`
}

// TokenResponse is returned by POST /api/v1/auth/token.
type TokenResponse struct {
	Token     string    `json:"token"`
	TokenType string    `json:"token_type"`
	ExpiresAt time.Time `json:"expires_at"`
	ExpiresIn int64     `json:"expires_in"`
}

// NearbyResponse is returned by GET /api/v1/positions/nearby.
type NearbyResponse struct {
	Center   Coordinates            `json:"center"`
	RadiusKm float64                `json:"radius_km"`
	Count    int                    `json:"count"`
	Vehicles []models.NearbyVehicle `json:"vehicles"`
}

// Coordinates is a latitude/longitude pair.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// CommandResponse is returned by POST /api/v1/vehicles/{id}/commands.
type CommandResponse struct {
	VehicleID int64  `json:"vehicle_id"`
	Command   string `json:"command"`
	Delivered int    `json:"delivered"`
}
