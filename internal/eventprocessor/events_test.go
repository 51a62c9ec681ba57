// Fleetwatch - Real-time Vehicle Position Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

package eventprocessor

import (
	"errors"
	"testing"
)

func TestPositionEvent_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*PositionEvent)
		valid  bool
	}{
		{"valid", func(*PositionEvent) {}, true},
		{"missing event id", func(e *PositionEvent) { e.EventID = "" }, false},
		{"missing instance", func(e *PositionEvent) { e.InstanceID = "" }, false},
		{"missing vehicle", func(e *PositionEvent) { e.Position.VehicleID = 0 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := NewPositionEvent("node-a", samplePosition(1))
			tt.mutate(event)
			err := event.Validate()
			if tt.valid && err != nil {
				t.Errorf("Validate() error = %v", err)
			}
			if !tt.valid && !errors.Is(err, ErrInvalidEvent) {
				t.Errorf("Validate() error = %v, want ErrInvalidEvent", err)
			}
		})
	}
}

func TestMarshalEvent(t *testing.T) {
	event := NewPositionEvent("node-a", samplePosition(7))
	data, err := MarshalEvent(event)
	if err != nil {
		t.Fatal(err)
	}

	decoded, err := UnmarshalEvent(data)
	if err != nil {
		t.Fatal(err)
	}
	if decoded.EventID != event.EventID || decoded.Position.VehicleID != 7 || decoded.SchemaVersion != SchemaVersion {
		t.Errorf("decoded = %+v", decoded)
	}

	if _, err := MarshalEvent(&PositionEvent{}); err == nil {
		t.Error("MarshalEvent should reject an invalid event")
	}
	if _, err := UnmarshalEvent([]byte("{not json")); err == nil {
		t.Error("UnmarshalEvent should reject malformed input")
	}
	if _, err := UnmarshalEvent([]byte(`{"event_id":"x"}`)); !errors.Is(err, ErrInvalidEvent) {
		t.Errorf("UnmarshalEvent(incomplete) error = %v, want ErrInvalidEvent", err)
	}
}
