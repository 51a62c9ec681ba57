// Fleetwatch - Real-time Vehicle Position Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

package database

import (
	"context"
	"fmt"
	"time"
)

// schemaContext returns a context with timeout for schema operations
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

// createTables creates the core database tables
func (db *DB) createTables() error {
	ctx, cancel := schemaContext()
	defer cancel()

	for _, query := range tableCreationQueries {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %s: %w", query, err)
		}
	}
	return nil
}

// Timestamps are stored as UTC TIMESTAMP values written by the application,
// which keeps the schema free of ICU-dependent defaults.
var tableCreationQueries = []string{
	`CREATE SEQUENCE IF NOT EXISTS vehicles_id_seq START 1;`,
	`CREATE SEQUENCE IF NOT EXISTS vehicle_positions_id_seq START 1;`,

	`CREATE TABLE IF NOT EXISTS vehicles (
		id BIGINT PRIMARY KEY DEFAULT nextval('vehicles_id_seq'),
		license_plate VARCHAR NOT NULL UNIQUE,
		vehicle_type VARCHAR NOT NULL CHECK (vehicle_type IN ('car', 'motorcycle')),
		brand VARCHAR,
		model VARCHAR,
		year INTEGER,
		color VARCHAR,
		status VARCHAR NOT NULL DEFAULT 'active'
			CHECK (status IN ('active', 'inactive', 'maintenance', 'accident')),
		created_at TIMESTAMP NOT NULL
	);`,

	// vehicle_id is checked inside the insert transaction rather than with a
	// foreign key, since DuckDB foreign keys block later updates of the parent.
	`CREATE TABLE IF NOT EXISTS vehicle_positions (
		id BIGINT PRIMARY KEY DEFAULT nextval('vehicle_positions_id_seq'),
		vehicle_id BIGINT NOT NULL,
		latitude DOUBLE NOT NULL,
		longitude DOUBLE NOT NULL,
		speed DOUBLE,
		heading DOUBLE,
		accuracy DOUBLE,
		observed_at TIMESTAMP NOT NULL,
		timestamp TIMESTAMP NOT NULL
	);`,
}

// createIndexes creates database indexes for query optimization
func (db *DB) createIndexes() error {
	ctx, cancel := schemaContext()
	defer cancel()

	for _, query := range indexQueries {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute index query: %s: %w", query, err)
		}
	}
	return nil
}

var indexQueries = []string{
	`CREATE INDEX IF NOT EXISTS idx_positions_vehicle ON vehicle_positions(vehicle_id);`,
	`CREATE INDEX IF NOT EXISTS idx_positions_timestamp ON vehicle_positions(timestamp);`,
	`CREATE INDEX IF NOT EXISTS idx_vehicles_status ON vehicles(status);`,
}
