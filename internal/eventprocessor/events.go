// Fleetwatch - Real-time Vehicle Position Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

package eventprocessor

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/fleetwatch/internal/models"
)

// SchemaVersion is the current event schema version.
// Increment this when making breaking changes to PositionEvent.
const SchemaVersion = 1

// DefaultTopic carries position events.
const DefaultTopic = "fleet.positions"

// PositionEvent announces an accepted position.
type PositionEvent struct {
	SchemaVersion int       `json:"schema_version"`
	EventID       string    `json:"event_id"`
	InstanceID    string    `json:"instance_id"`
	PublishedAt   time.Time `json:"published_at"`

	Position models.CachedPosition `json:"position"`
}

// NewPositionEvent creates an event for pos published by instanceID.
func NewPositionEvent(instanceID string, pos models.CachedPosition) *PositionEvent {
	return &PositionEvent{
		SchemaVersion: SchemaVersion,
		EventID:       uuid.NewString(),
		InstanceID:    instanceID,
		PublishedAt:   time.Now().UTC(),
		Position:      pos,
	}
}

// Validate checks required fields.
func (e *PositionEvent) Validate() error {
	switch {
	case e.EventID == "":
		return fmt.Errorf("%w: event_id is required", ErrInvalidEvent)
	case e.InstanceID == "":
		return fmt.Errorf("%w: instance_id is required", ErrInvalidEvent)
	case e.Position.VehicleID <= 0:
		return fmt.Errorf("%w: position.vehicle_id must be positive", ErrInvalidEvent)
	}
	return nil
}
