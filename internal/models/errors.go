// Fleetwatch - Real-time Vehicle Position Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

package models

import "errors"

// ErrVehicleNotFound is returned by stores when a vehicle id has no row.
var ErrVehicleNotFound = errors.New("vehicle not found")
