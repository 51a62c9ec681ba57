// Fleetwatch - Real-time Vehicle Position Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

package api

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"time"

	"github.com/tomtom215/fleetwatch/internal/auth"
	"github.com/tomtom215/fleetwatch/internal/logging"
	"github.com/tomtom215/fleetwatch/internal/validation"
)

// ProvisioningSecretHeader must carry the configured JWT secret to issue tokens.
const ProvisioningSecretHeader = "X-Fleetwatch-Secret"

// IssueToken handles POST /api/v1/auth/token. It is mounted only in jwt mode
// and is guarded by the shared provisioning secret rather than by a token.
func (h *Handler) IssueToken(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	if h.jwtManager == nil || h.config == nil {
		rw.NotFound("Token issuance is disabled")
		return
	}

	provided := r.Header.Get(ProvisioningSecretHeader)
	if provided == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(h.config.Security.JWTSecret)) != 1 {
		logging.Ctx(r.Context()).Warn().Str("remote_addr", r.RemoteAddr).Msg("Token request with invalid provisioning secret")
		rw.Error(http.StatusUnauthorized, ErrCodeUnauthorized, "Invalid provisioning secret")
		return
	}

	var req TokenRequest
	if err := decodeJSON(r, &req); err != nil {
		rw.BadRequest(err.Error())
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		validationFailure(w, r, verr)
		return
	}

	if req.Role == auth.RoleDevice {
		_, found, err := h.vehicles.GetVehicle(r.Context(), req.VehicleID)
		if err != nil {
			logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to load vehicle for token")
			rw.ServiceUnavailable("Vehicle directory unavailable")
			return
		}
		if !found {
			rw.ErrorWithDetails(http.StatusNotFound, ErrCodeNotFound, "vehicle not found", map[string]interface{}{"vehicle_id": req.VehicleID})
			return
		}
	}

	token, expiresAt, err := h.jwtManager.GenerateToken(req.Subject, req.Role, req.VehicleID)
	if errors.Is(err, auth.ErrInvalidRole) {
		rw.ErrorWithDetails(http.StatusBadRequest, ErrCodeValidation, err.Error(), map[string]interface{}{"field": "role"})
		return
	}
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to generate token")
		rw.InternalError("Failed to generate token")
		return
	}

	logging.Ctx(r.Context()).Info().
		Str("subject", sanitizeLogValue(req.Subject)).
		Str("role", req.Role).
		Int64("vehicle_id", req.VehicleID).
		Msg("Token issued")

	rw.Created(TokenResponse{
		Token:     token,
		TokenType: "Bearer",
		ExpiresAt: expiresAt.UTC(),
		ExpiresIn: int64(time.Until(expiresAt).Seconds()),
	})
}
