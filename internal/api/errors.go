// Fleetwatch - Real-time Vehicle Position Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

package api

import (
	"errors"
	"net/http"

	"github.com/tomtom215/fleetwatch/internal/logging"
	"github.com/tomtom215/fleetwatch/internal/tracking"
	"github.com/tomtom215/fleetwatch/internal/validation"
)

// errorStatus maps an ingestion or query error to its HTTP status, code,
// client-safe message and optional details.
func errorStatus(err error) (int, string, string, interface{}) {
	var (
		verr *tracking.ValidationError
		nerr *tracking.NotFoundError
		perr *tracking.PersistenceError
	)

	switch {
	case errors.As(err, &verr):
		var reqErr *validation.RequestValidationError
		if errors.As(verr.Err, &reqErr) {
			apiErr := reqErr.ToAPIError()
			return http.StatusBadRequest, ErrCodeValidation, apiErr.Message, apiErr.Details
		}
		details := map[string]interface{}{}
		if verr.Field != "" {
			details["field"] = verr.Field
		}
		return http.StatusBadRequest, ErrCodeValidation, verr.Error(), details
	case errors.As(err, &nerr):
		return http.StatusNotFound, ErrCodeNotFound, nerr.Error(), map[string]interface{}{"vehicle_id": nerr.VehicleID}
	case errors.Is(err, tracking.ErrRateLimited):
		return http.StatusTooManyRequests, ErrCodeTooManyRequests, "Position reports are arriving too fast for this vehicle", nil
	case errors.As(err, &perr):
		return http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Position store unavailable, report not accepted", nil
	default:
		return http.StatusInternalServerError, ErrCodeInternalError, "Internal server error", nil
	}
}

// respondServiceError writes the envelope for err and logs server-side failures.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message, details := errorStatus(err)
	if status >= http.StatusInternalServerError {
		logging.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
	}
	NewResponseWriter(w, r).ErrorWithDetails(status, code, message, details)
}

// validationFailure writes a 400 for a request that failed struct validation.
func validationFailure(w http.ResponseWriter, r *http.Request, verr *validation.RequestValidationError) {
	apiErr := verr.ToAPIError()
	NewResponseWriter(w, r).ErrorWithDetails(http.StatusBadRequest, ErrCodeValidation, apiErr.Message, apiErr.Details)
}
