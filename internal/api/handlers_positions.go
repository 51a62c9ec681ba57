// Fleetwatch - Real-time Vehicle Position Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

package api

import (
	"net/http"

	"github.com/tomtom215/fleetwatch/internal/logging"
	"github.com/tomtom215/fleetwatch/internal/validation"
)

// DefaultNearbyRadiusKm is used when radius_km is omitted.
const DefaultNearbyRadiusKm = 5.0

// ReportPosition handles POST /api/v1/positions.
func (h *Handler) ReportPosition(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req PositionRequest
	if err := decodeJSON(r, &req); err != nil {
		rw.BadRequest(err.Error())
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		validationFailure(w, r, verr)
		return
	}
	if !canActAs(r, req.VehicleID) {
		rw.Forbidden("Token is not allowed to report for this vehicle")
		return
	}

	stored, err := h.tracker.ReportPosition(r.Context(), req.Report())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	logging.Ctx(r.Context()).Debug().
		Int64("vehicle_id", stored.VehicleID).
		Int64("position_id", stored.ID).
		Msg("Position accepted")
	rw.Created(stored)
}

// NearbyVehicles handles GET /api/v1/positions/nearby?lat=&lng=&radius_km=.
func (h *Handler) NearbyVehicles(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	defaultRadius := DefaultNearbyRadiusKm
	lat, err := getFloatParam(r, "lat", nil)
	if err != nil {
		rw.ErrorWithDetails(http.StatusBadRequest, ErrCodeValidation, err.Error(), map[string]interface{}{"field": "lat"})
		return
	}
	lng, err := getFloatParam(r, "lng", nil)
	if err != nil {
		rw.ErrorWithDetails(http.StatusBadRequest, ErrCodeValidation, err.Error(), map[string]interface{}{"field": "lng"})
		return
	}
	radius, err := getFloatParam(r, "radius_km", &defaultRadius)
	if err != nil {
		rw.ErrorWithDetails(http.StatusBadRequest, ErrCodeValidation, err.Error(), map[string]interface{}{"field": "radius_km"})
		return
	}

	vehicles, err := h.tracker.Nearby(r.Context(), lat, lng, radius)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	rw.Success(NearbyResponse{
		Center:   Coordinates{Lat: lat, Lng: lng},
		RadiusKm: radius,
		Count:    len(vehicles),
		Vehicles: vehicles,
	})
}
