// Fleetwatch - Real-time Vehicle Position Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

package models

import (
	"time"
)

// VehicleType is the kind of vehicle.
type VehicleType string

const (
	VehicleTypeCar        VehicleType = "car"
	VehicleTypeMotorcycle VehicleType = "motorcycle"
)

// VehicleStatus is the operational status of a vehicle.
type VehicleStatus string

const (
	VehicleStatusActive      VehicleStatus = "active"
	VehicleStatusInactive    VehicleStatus = "inactive"
	VehicleStatusMaintenance VehicleStatus = "maintenance"
	VehicleStatusAccident    VehicleStatus = "accident"
)

// Vehicle is a registered fleet vehicle.
type Vehicle struct {
	ID           int64         `json:"id"`
	LicensePlate string        `json:"license_plate"`
	VehicleType  VehicleType   `json:"vehicle_type"`
	Brand        string        `json:"brand,omitempty"`
	Model        string        `json:"model,omitempty"`
	Year         int           `json:"year,omitempty"`
	Color        string        `json:"color,omitempty"`
	Status       VehicleStatus `json:"status"`
	CreatedAt    time.Time     `json:"created_at"`
}

// Summary returns the identity fields carried on cached positions.
func (v Vehicle) Summary() VehicleSummary {
	return VehicleSummary{ID: v.ID, LicensePlate: v.LicensePlate, VehicleType: v.VehicleType}
}

// VehicleSummary is the subset of vehicle identity needed by the ingestion path.
type VehicleSummary struct {
	ID           int64       `json:"id"`
	LicensePlate string      `json:"license_plate"`
	VehicleType  VehicleType `json:"vehicle_type"`
}

// VehicleFilter narrows vehicle listings.
type VehicleFilter struct {
	VehicleType VehicleType
	Status      VehicleStatus
	Limit       int
	Offset      int
}
