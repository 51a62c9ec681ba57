// Fleetwatch - Real-time Vehicle Position Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

// Package models defines data structures shared across Fleetwatch packages:
// position reports as they arrive, positions as they are stored, the cached
// projection served to observers, and vehicle identity.
package models

import (
	"time"
)

// PositionReport is one position observation sent by a vehicle or a feed.
// It is immutable once created and consumed once by the ingestion service.
type PositionReport struct {
	VehicleID  int64     `json:"vehicle_id" validate:"gt=0"`
	Latitude   float64   `json:"latitude" validate:"latitude"`
	Longitude  float64   `json:"longitude" validate:"longitude"`
	Speed      *float64  `json:"speed,omitempty" validate:"omitempty,gte=0"`           // km/h
	Heading    *float64  `json:"heading,omitempty" validate:"omitempty,gte=0,lte=360"` // degrees
	Accuracy   *float64  `json:"accuracy,omitempty" validate:"omitempty,gte=0"`        // meters
	ObservedAt time.Time `json:"observed_at"`
}

// StoredPosition is a PositionReport after the durable store assigned it an
// identity and a recording timestamp.
type StoredPosition struct {
	ID         int64     `json:"id"`
	VehicleID  int64     `json:"vehicle_id"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Speed      *float64  `json:"speed,omitempty"`
	Heading    *float64  `json:"heading,omitempty"`
	Accuracy   *float64  `json:"accuracy,omitempty"`
	ObservedAt time.Time `json:"observed_at"`
	Timestamp  time.Time `json:"timestamp"`
}

// CachedPosition is the latest position of a vehicle joined with its identity.
// It lives in the position cache with a TTL and is what observers receive.
type CachedPosition struct {
	VehicleID    int64       `json:"vehicle_id"`
	LicensePlate string      `json:"license_plate"`
	VehicleType  VehicleType `json:"vehicle_type"`
	PositionID   int64       `json:"position_id"`
	Latitude     float64     `json:"latitude"`
	Longitude    float64     `json:"longitude"`
	Speed        *float64    `json:"speed,omitempty"`
	Heading      *float64    `json:"heading,omitempty"`
	Accuracy     *float64    `json:"accuracy,omitempty"`
	ObservedAt   time.Time   `json:"observed_at"`
	Timestamp    time.Time   `json:"timestamp"`
}

// NewCachedPosition projects a stored position onto the vehicle's identity.
func NewCachedPosition(v VehicleSummary, p StoredPosition) CachedPosition {
	return CachedPosition{
		VehicleID:    v.ID,
		LicensePlate: v.LicensePlate,
		VehicleType:  v.VehicleType,
		PositionID:   p.ID,
		Latitude:     p.Latitude,
		Longitude:    p.Longitude,
		Speed:        p.Speed,
		Heading:      p.Heading,
		Accuracy:     p.Accuracy,
		ObservedAt:   p.ObservedAt,
		Timestamp:    p.Timestamp,
	}
}

// NearbyVehicle is one radius query hit.
type NearbyVehicle struct {
	VehicleID      int64          `json:"vehicle_id"`
	DistanceKm     float64        `json:"distance_km"`
	LatestPosition CachedPosition `json:"latest_position"`
}
