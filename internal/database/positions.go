// Fleetwatch - Real-time Vehicle Position Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/fleetwatch/internal/metrics"
	"github.com/tomtom215/fleetwatch/internal/models"
)

const (
	DefaultHistoryLimit = 100
	MaxHistoryLimit     = 1000
)

// CreatePosition stores a report and returns it with its id and recording
// timestamp. It returns models.ErrVehicleNotFound when the vehicle is unknown.
func (db *DB) CreatePosition(ctx context.Context, report models.PositionReport) (models.StoredPosition, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	stored := models.StoredPosition{
		VehicleID:  report.VehicleID,
		Latitude:   report.Latitude,
		Longitude:  report.Longitude,
		Speed:      report.Speed,
		Heading:    report.Heading,
		Accuracy:   report.Accuracy,
		ObservedAt: report.ObservedAt.UTC(),
	}

	start := time.Now()
	err := retryOnConflict(ctx, func() error {
		stored.Timestamp = db.now().UTC()
		id, err := db.insertPosition(ctx, &stored)
		stored.ID = id
		return err
	})
	if errors.Is(err, models.ErrVehicleNotFound) {
		metrics.RecordDBQuery("INSERT", "vehicle_positions", time.Since(start), nil)
		return models.StoredPosition{}, err
	}
	metrics.RecordDBQuery("INSERT", "vehicle_positions", time.Since(start), err)
	if err != nil {
		return models.StoredPosition{}, fmt.Errorf("insert position: %w", err)
	}
	return stored, nil
}

func (db *DB) insertPosition(ctx context.Context, p *models.StoredPosition) (int64, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer rollbackQuietly(tx)

	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM vehicles WHERE id = ?)`, p.VehicleID).Scan(&exists); err != nil {
		return 0, err
	}
	if !exists {
		return 0, models.ErrVehicleNotFound
	}

	var id int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO vehicle_positions (vehicle_id, latitude, longitude, speed, heading, accuracy, observed_at, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		p.VehicleID, p.Latitude, p.Longitude,
		nullFloat(p.Speed), nullFloat(p.Heading), nullFloat(p.Accuracy),
		p.ObservedAt, p.Timestamp,
	).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, tx.Commit()
}

const positionColumns = `id, vehicle_id, latitude, longitude, speed, heading, accuracy, observed_at, timestamp`

// LatestPosition returns the most recently recorded position of a vehicle.
func (db *DB) LatestPosition(ctx context.Context, vehicleID int64) (models.StoredPosition, bool, error) {
	positions, err := db.PositionHistory(ctx, vehicleID, 1)
	if err != nil {
		return models.StoredPosition{}, false, err
	}
	if len(positions) == 0 {
		return models.StoredPosition{}, false, nil
	}
	return positions[0], true, nil
}

// PositionHistory returns up to limit positions of a vehicle, newest first.
func (db *DB) PositionHistory(ctx context.Context, vehicleID int64, limit int) ([]models.StoredPosition, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+positionColumns+`
		FROM vehicle_positions
		WHERE vehicle_id = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ?`, vehicleID, limit)
	if err != nil {
		metrics.RecordDBQuery("SELECT", "vehicle_positions", time.Since(start), err)
		return nil, fmt.Errorf("query position history: %w", err)
	}
	defer rows.Close()

	positions := []models.StoredPosition{}
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		positions = append(positions, p)
	}
	err = rows.Err()
	metrics.RecordDBQuery("SELECT", "vehicle_positions", time.Since(start), err)
	return positions, err
}

func scanPosition(row rowScanner) (models.StoredPosition, error) {
	var (
		p                        models.StoredPosition
		speed, heading, accuracy sql.NullFloat64
	)
	err := row.Scan(&p.ID, &p.VehicleID, &p.Latitude, &p.Longitude, &speed, &heading, &accuracy, &p.ObservedAt, &p.Timestamp)
	if err != nil {
		return models.StoredPosition{}, err
	}
	p.Speed = floatPtr(speed)
	p.Heading = floatPtr(heading)
	p.Accuracy = floatPtr(accuracy)
	return p, nil
}
