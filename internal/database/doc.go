// Fleetwatch - Real-time Vehicle Position Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

/*
Package database is the durable store of Fleetwatch: the vehicle directory and
the append-only position history, both kept in DuckDB.

# Tables

	vehicles           one row per registered vehicle, unique license plate
	vehicle_positions  every accepted position report, ids from a sequence
	schema_migrations  applied versioned migrations

# Usage

	db, err := database.New(&cfg.Database)
	if err != nil {
	    return err
	}
	defer db.Close()

	stored, err := db.CreatePosition(ctx, report)
	if errors.Is(err, models.ErrVehicleNotFound) {
	    // the vehicle row does not exist
	}

A position insert and the check that its vehicle exists run in one
transaction, so a report is never stored for an unknown vehicle. Transaction
conflicts are retried with a short exponential backoff.

# Testing

Tests open ":memory:" databases. DuckDB CGO calls are serialized across tests
with a semaphore held for the whole test.
*/
package database
