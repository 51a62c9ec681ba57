// Fleetwatch - Real-time Vehicle Position Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

package tracking

import (
	"errors"
	"fmt"

	"github.com/tomtom215/fleetwatch/internal/cache"
	"github.com/tomtom215/fleetwatch/internal/websocket"
)

// ErrCacheUnavailable is the cache backend failure, absorbed by this package.
var ErrCacheUnavailable = cache.ErrCacheUnavailable

// ErrRateLimited is returned when a vehicle reports faster than allowed.
var ErrRateLimited = errors.New("position report rate limit exceeded")

// DeliveryError is a failed send to one observer, absorbed by the hub.
type DeliveryError = websocket.DeliveryError

// ValidationError rejects a report or query before any side effect.
type ValidationError struct {
	Field  string
	Reason string
	// Err carries the field-level detail when it came from struct validation.
	Err error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid request: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// NotFoundError reports a vehicle that is not in the directory.
type NotFoundError struct {
	VehicleID int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("vehicle %d not found", e.VehicleID)
}

// PersistenceError is a durable store failure. The report was not accepted.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist position (%s): %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
