// Fleetwatch - Real-time Vehicle Position Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

package api

import (
	"fmt"
	"net/http"

	"github.com/tomtom215/fleetwatch/internal/logging"
	"github.com/tomtom215/fleetwatch/internal/models"
	"github.com/tomtom215/fleetwatch/internal/validation"
	ws "github.com/tomtom215/fleetwatch/internal/websocket"
)

const (
	defaultListLimit    = 100
	defaultHistoryLimit = 100
)

// ListVehicles handles GET /api/v1/vehicles.
func (h *Handler) ListVehicles(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	limit, err := getIntParam(r, "limit", defaultListLimit)
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}
	offset, err := getIntParam(r, "offset", 0)
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}

	req := VehicleListRequest{
		VehicleType: r.URL.Query().Get("vehicle_type"),
		Status:      r.URL.Query().Get("status"),
		Limit:       limit,
		Offset:      offset,
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		validationFailure(w, r, verr)
		return
	}

	vehicles, err := h.vehicles.ListVehicles(r.Context(), models.VehicleFilter{
		VehicleType: models.VehicleType(req.VehicleType),
		Status:      models.VehicleStatus(req.Status),
		Limit:       req.Limit,
		Offset:      req.Offset,
	})
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to list vehicles")
		rw.ServiceUnavailable("Vehicle directory unavailable")
		return
	}

	rw.SuccessWithPagination(vehicles, &PaginationMeta{
		Count:   len(vehicles),
		Offset:  req.Offset,
		Limit:   req.Limit,
		HasMore: len(vehicles) == req.Limit,
	})
}

// lookupVehicle resolves the {id} parameter, writing 400/404/503 itself.
func (h *Handler) lookupVehicle(w http.ResponseWriter, r *http.Request) (models.Vehicle, bool) {
	rw := NewResponseWriter(w, r)

	id, ok := pathID(r, "id")
	if !ok {
		rw.ErrorWithDetails(http.StatusBadRequest, ErrCodeValidation, "id must be a positive integer", map[string]interface{}{"field": "id"})
		return models.Vehicle{}, false
	}

	vehicle, found, err := h.vehicles.GetVehicle(r.Context(), id)
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Int64("vehicle_id", id).Msg("Failed to load vehicle")
		rw.ServiceUnavailable("Vehicle directory unavailable")
		return models.Vehicle{}, false
	}
	if !found {
		rw.ErrorWithDetails(http.StatusNotFound, ErrCodeNotFound, fmt.Sprintf("vehicle %d not found", id), map[string]interface{}{"vehicle_id": id})
		return models.Vehicle{}, false
	}
	return vehicle, true
}

// GetVehicle handles GET /api/v1/vehicles/{id}.
func (h *Handler) GetVehicle(w http.ResponseWriter, r *http.Request) {
	vehicle, ok := h.lookupVehicle(w, r)
	if !ok {
		return
	}
	NewResponseWriter(w, r).Success(vehicle)
}

// LatestPosition handles GET /api/v1/vehicles/{id}/position. The cache is
// consulted first and the durable store is the fallback.
func (h *Handler) LatestPosition(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	id, ok := pathID(r, "id")
	if !ok {
		rw.ErrorWithDetails(http.StatusBadRequest, ErrCodeValidation, "id must be a positive integer", map[string]interface{}{"field": "id"})
		return
	}

	pos, found, err := h.tracker.LatestPosition(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if !found {
		rw.ErrorWithDetails(http.StatusNotFound, ErrCodeNotFound, fmt.Sprintf("no position recorded for vehicle %d", id), map[string]interface{}{"vehicle_id": id})
		return
	}
	rw.Success(pos)
}

// PositionHistory handles GET /api/v1/vehicles/{id}/positions?limit=.
func (h *Handler) PositionHistory(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	limit, err := getIntParam(r, "limit", defaultHistoryLimit)
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}
	req := HistoryRequest{Limit: limit}
	if verr := validation.ValidateStruct(&req); verr != nil {
		validationFailure(w, r, verr)
		return
	}

	vehicle, ok := h.lookupVehicle(w, r)
	if !ok {
		return
	}

	positions, err := h.vehicles.PositionHistory(r.Context(), vehicle.ID, req.Limit)
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Int64("vehicle_id", vehicle.ID).Msg("Failed to load position history")
		rw.ServiceUnavailable("Position store unavailable")
		return
	}
	if positions == nil {
		positions = []models.StoredPosition{}
	}

	rw.SuccessWithPagination(positions, &PaginationMeta{
		Count:   len(positions),
		Limit:   req.Limit,
		HasMore: len(positions) == req.Limit,
	})
}

// SendCommand handles POST /api/v1/vehicles/{id}/commands. The command is
// delivered to the vehicles group addressed to this vehicle; delivered counts
// the connections that accepted it.
func (h *Handler) SendCommand(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req CommandRequest
	if err := decodeJSON(r, &req); err != nil {
		rw.BadRequest(err.Error())
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		validationFailure(w, r, verr)
		return
	}

	vehicle, ok := h.lookupVehicle(w, r)
	if !ok {
		return
	}

	data := map[string]interface{}{"command": req.Command}
	if req.Payload != nil {
		data["payload"] = req.Payload
	}
	delivered := h.hub.SendTo(r.Context(), vehicle.ID, ws.NewMessage(ws.MessageTypeCommand, data))

	logging.Ctx(r.Context()).Info().
		Int64("vehicle_id", vehicle.ID).
		Str("command", sanitizeLogValue(req.Command)).
		Int("delivered", delivered).
		Msg("Vehicle command sent")

	rw.Accepted(CommandResponse{VehicleID: vehicle.ID, Command: req.Command, Delivered: delivered})
}
