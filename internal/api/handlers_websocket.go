// Fleetwatch - Real-time Vehicle Position Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

package api

import (
	"context"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/tomtom215/fleetwatch/internal/logging"
	"github.com/tomtom215/fleetwatch/internal/validation"
	ws "github.com/tomtom215/fleetwatch/internal/websocket"
)

// VehicleSocket handles GET /ws/vehicle/{id}. The connection joins the
// vehicles group and may send {"type":"position","data":{...}} messages,
// which are ingested exactly like POST /api/v1/positions and answered with
// position_ack or error.
func (h *Handler) VehicleSocket(w http.ResponseWriter, r *http.Request) {
	vehicle, ok := h.lookupVehicle(w, r)
	if !ok {
		return
	}
	if !canActAs(r, vehicle.ID) {
		NewResponseWriter(w, r).Forbidden("Token is not allowed to connect as this vehicle")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already written the HTTP error.
		logging.Ctx(r.Context()).Warn().Err(err).Int64("vehicle_id", vehicle.ID).Msg("WebSocket upgrade failed")
		return
	}

	logging.Ctx(r.Context()).Info().Int64("vehicle_id", vehicle.ID).Str("license_plate", vehicle.LicensePlate).Msg("Vehicle connected")
	if err := h.hub.Serve(r.Context(), conn, ws.GroupVehicles, h.vehicleInbound(vehicle.ID)); err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Int64("vehicle_id", vehicle.ID).Msg("Vehicle connection ended with error")
		return
	}
	logging.Ctx(r.Context()).Info().Int64("vehicle_id", vehicle.ID).Msg("Vehicle disconnected")
}

// MonitoringSocket handles GET /ws/monitoring. Observers receive every
// position_update; anything they send besides ping is logged and ignored.
func (h *Handler) MonitoringSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	logging.Ctx(r.Context()).Info().Msg("Observer connected")
	if err := h.hub.Serve(r.Context(), conn, ws.GroupMonitoring, logInbound(ws.GroupMonitoring, 0)); err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Msg("Observer connection ended with error")
		return
	}
	logging.Ctx(r.Context()).Info().Msg("Observer disconnected")
}

// vehicleInbound ingests position messages sent by a connected vehicle.
func (h *Handler) vehicleInbound(vehicleID int64) ws.InboundHandler {
	fallback := logInbound(ws.GroupVehicles, vehicleID)

	return func(ctx context.Context, msg ws.InboundMessage) *ws.Message {
		if msg.Type != ws.MessageTypePosition {
			return fallback(ctx, msg)
		}

		var req PositionRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			return errorMessage(ErrCodeBadRequest, "invalid position data")
		}
		if req.VehicleID == 0 {
			req.VehicleID = vehicleID
		}
		if req.VehicleID != vehicleID {
			return errorMessage(ErrCodeForbidden, "position must be for the connected vehicle")
		}
		if verr := validation.ValidateStruct(&req); verr != nil {
			return errorMessage(ErrCodeValidation, verr.Error())
		}

		stored, err := h.tracker.ReportPosition(ctx, req.Report())
		if err != nil {
			status, code, message, _ := errorStatus(err)
			if status >= http.StatusInternalServerError {
				logging.Ctx(ctx).Error().Err(err).Int64("vehicle_id", vehicleID).Msg("WebSocket position rejected")
			}
			return errorMessage(code, message)
		}

		ack := ws.NewMessage(ws.MessageTypePositionAck, map[string]interface{}{
			"position_id": stored.ID,
			"timestamp":   stored.Timestamp,
		})
		return &ack
	}
}

// logInbound logs messages no handler consumes.
func logInbound(group ws.Group, vehicleID int64) ws.InboundHandler {
	return func(ctx context.Context, msg ws.InboundMessage) *ws.Message {
		logging.Ctx(ctx).Debug().
			Str("group", string(group)).
			Int64("vehicle_id", vehicleID).
			Str("type", sanitizeLogValue(msg.Type)).
			Int("bytes", len(msg.Data)).
			Msg("Unhandled WebSocket message")
		return nil
	}
}

func errorMessage(code, message string) *ws.Message {
	msg := ws.NewMessage(ws.MessageTypeError, map[string]interface{}{
		"code":    code,
		"message": message,
	})
	return &msg
}

// checkWebSocketOrigin validates WebSocket connection origins. Requests
// without an Origin header come from non-browser clients such as vehicles and
// are allowed; they authenticate with tokens instead.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	if h.config == nil {
		return true
	}

	allowed := h.config.WebSocket.AllowedOrigins
	if len(allowed) == 0 {
		allowed = h.config.Security.CORSOrigins
	}
	for _, o := range allowed {
		if o == "*" || o == origin {
			return true
		}
	}

	logging.Warn().Str("origin", sanitizeLogValue(origin)).Msg("WebSocket connection rejected from unauthorized origin")
	return false
}
