// Fleetwatch - Real-time Vehicle Position Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

package api

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tomtom215/fleetwatch/internal/logging"
	"github.com/tomtom215/fleetwatch/internal/tracking"
	"github.com/tomtom215/fleetwatch/internal/validation"
)

func TestResponseWriter_Envelope(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(logging.ContextWithRequestID(req.Context(), "req-42"))

	rec := httptest.NewRecorder()
	NewResponseWriter(rec, req).Success(map[string]int{"answer": 42})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	env := decodeEnvelope(t, rec)
	if !env.Success || env.Error != nil {
		t.Errorf("success envelope = %+v", env)
	}
	if env.Metadata.RequestID != "req-42" {
		t.Errorf("request_id = %q, want req-42", env.Metadata.RequestID)
	}
	if env.Metadata.Timestamp.IsZero() {
		t.Error("timestamp should be set")
	}
}

func TestWriteError(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	WriteError(rec, req, http.StatusForbidden, ErrCodeForbidden, "nope")

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if env.Success {
		t.Error("success should be false")
	}
	if env.Error == nil || env.Error.Code != ErrCodeForbidden || env.Error.Message != "nope" {
		t.Errorf("error = %+v", env.Error)
	}
	if len(env.Data) != 0 {
		t.Errorf("data should be omitted, got %s", env.Data)
	}
}

func TestErrorStatus(t *testing.T) {
	structErr := validation.ValidateStruct(&struct {
		Latitude float64 `json:"latitude" validate:"latitude"`
	}{Latitude: 95})

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"field validation", &tracking.ValidationError{Field: "radius_km", Reason: "must be positive"}, http.StatusBadRequest, ErrCodeValidation},
		{"struct validation", &tracking.ValidationError{Reason: "invalid report", Err: structErr}, http.StatusBadRequest, ErrCodeValidation},
		{"unknown vehicle", &tracking.NotFoundError{VehicleID: 9}, http.StatusNotFound, ErrCodeNotFound},
		{"rate limited", fmt.Errorf("vehicle 1: %w", tracking.ErrRateLimited), http.StatusTooManyRequests, ErrCodeTooManyRequests},
		{"store down", &tracking.PersistenceError{Op: "insert", Err: errBoom}, http.StatusServiceUnavailable, ErrCodeServiceUnavailable},
		{"anything else", errBoom, http.StatusInternalServerError, ErrCodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code, message, _ := errorStatus(tt.err)
			if status != tt.wantStatus || code != tt.wantCode {
				t.Errorf("errorStatus() = %d %s, want %d %s", status, code, tt.wantStatus, tt.wantCode)
			}
			if message == "" {
				t.Error("message should not be empty")
			}
		})
	}
}

func TestErrorStatus_StructDetails(t *testing.T) {
	structErr := validation.ValidateStruct(&struct {
		Latitude float64 `json:"latitude" validate:"latitude"`
	}{Latitude: 95})

	_, _, _, details := errorStatus(&tracking.ValidationError{Reason: "invalid report", Err: structErr})
	d, ok := details.(map[string]interface{})
	if !ok || d["field"] != "latitude" {
		t.Errorf("details = %v, want field latitude", details)
	}
}

func TestErrorStatus_HidesInternals(t *testing.T) {
	_, _, message, _ := errorStatus(&tracking.PersistenceError{Op: "insert", Err: fmt.Errorf("dial tcp 10.0.0.5:5432")})
	if message != "Position store unavailable, report not accepted" {
		t.Errorf("message leaked internals: %q", message)
	}
}
