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
	"strings"
	"time"

	"github.com/tomtom215/fleetwatch/internal/config"
	"github.com/tomtom215/fleetwatch/internal/metrics"
	"github.com/tomtom215/fleetwatch/internal/models"
)

const (
	DefaultVehicleLimit = 100
	MaxVehicleLimit     = 1000
)

// DefaultFleet is seeded when no vehicles are configured.
var DefaultFleet = []models.Vehicle{
	{LicensePlate: "ABC1D23", VehicleType: models.VehicleTypeCar, Brand: "Toyota", Model: "Corolla", Year: 2022, Color: "Prata", Status: models.VehicleStatusActive},
	{LicensePlate: "MOT0R01", VehicleType: models.VehicleTypeMotorcycle, Brand: "Honda", Model: "CB 500", Year: 2021, Color: "Vermelha", Status: models.VehicleStatusActive},
	{LicensePlate: "XYZ9A87", VehicleType: models.VehicleTypeCar, Brand: "Volkswagen", Model: "Golf", Year: 2020, Color: "Azul", Status: models.VehicleStatusActive},
}

// VehiclesFromConfig converts configured seeds to vehicles.
func VehiclesFromConfig(seeds []config.VehicleSeed) []models.Vehicle {
	vehicles := make([]models.Vehicle, 0, len(seeds))
	for _, s := range seeds {
		status := models.VehicleStatus(s.Status)
		if status == "" {
			status = models.VehicleStatusActive
		}
		vehicles = append(vehicles, models.Vehicle{
			LicensePlate: s.LicensePlate,
			VehicleType:  models.VehicleType(s.VehicleType),
			Brand:        s.Brand,
			Model:        s.Model,
			Year:         s.Year,
			Color:        s.Color,
			Status:       status,
		})
	}
	return vehicles
}

// SeedVehicles inserts vehicles whose license plate is not registered yet and
// returns how many were added.
func (db *DB) SeedVehicles(ctx context.Context, vehicles []models.Vehicle) (int, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	added := 0
	err := retryOnConflict(ctx, func() error {
		added = 0
		tx, err := db.conn.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer rollbackQuietly(tx)

		for i := range vehicles {
			v := &vehicles[i]
			if v.Status == "" {
				v.Status = models.VehicleStatusActive
			}
			res, err := tx.ExecContext(ctx, `
				INSERT INTO vehicles (license_plate, vehicle_type, brand, model, year, color, status, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT (license_plate) DO NOTHING`,
				v.LicensePlate, string(v.VehicleType), nullString(v.Brand), nullString(v.Model),
				nullInt(v.Year), nullString(v.Color), string(v.Status), db.now().UTC())
			if err != nil {
				return fmt.Errorf("seed vehicle %s: %w", v.LicensePlate, err)
			}
			if n, _ := res.RowsAffected(); n > 0 {
				added++
			}
		}
		return tx.Commit()
	})
	metrics.RecordDBQuery("INSERT", "vehicles", time.Since(start), err)
	if err != nil {
		return 0, err
	}
	return added, nil
}

const vehicleColumns = `id, license_plate, vehicle_type, brand, model, year, color, status, created_at`

// GetVehicle returns the full vehicle row.
func (db *DB) GetVehicle(ctx context.Context, id int64) (models.Vehicle, bool, error) {
	return db.queryVehicle(ctx, `SELECT `+vehicleColumns+` FROM vehicles WHERE id = ?`, id)
}

// LookupVehicle returns the identity fields of a vehicle.
func (db *DB) LookupVehicle(ctx context.Context, id int64) (models.VehicleSummary, bool, error) {
	v, ok, err := db.GetVehicle(ctx, id)
	if err != nil || !ok {
		return models.VehicleSummary{}, ok, err
	}
	return v.Summary(), true, nil
}

// LookupVehicleByPlate finds a vehicle by license plate, ignoring case.
func (db *DB) LookupVehicleByPlate(ctx context.Context, plate string) (models.VehicleSummary, bool, error) {
	v, ok, err := db.queryVehicle(ctx,
		`SELECT `+vehicleColumns+` FROM vehicles WHERE upper(license_plate) = ?`, strings.ToUpper(plate))
	if err != nil || !ok {
		return models.VehicleSummary{}, ok, err
	}
	return v.Summary(), true, nil
}

func (db *DB) queryVehicle(ctx context.Context, query string, arg interface{}) (models.Vehicle, bool, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	v, err := scanVehicle(db.conn.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		metrics.RecordDBQuery("SELECT", "vehicles", time.Since(start), nil)
		return models.Vehicle{}, false, nil
	}
	metrics.RecordDBQuery("SELECT", "vehicles", time.Since(start), err)
	if err != nil {
		return models.Vehicle{}, false, fmt.Errorf("query vehicle: %w", err)
	}
	return v, true, nil
}

// ListVehicles returns vehicles ordered by id.
func (db *DB) ListVehicles(ctx context.Context, filter models.VehicleFilter) ([]models.Vehicle, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var (
		where []string
		args  []interface{}
	)
	if filter.VehicleType != "" {
		where = append(where, "vehicle_type = ?")
		args = append(args, string(filter.VehicleType))
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultVehicleLimit
	}
	if limit > MaxVehicleLimit {
		limit = MaxVehicleLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := `SELECT ` + vehicleColumns + ` FROM vehicles`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		metrics.RecordDBQuery("SELECT", "vehicles", time.Since(start), err)
		return nil, fmt.Errorf("list vehicles: %w", err)
	}
	defer rows.Close()

	vehicles := []models.Vehicle{}
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan vehicle: %w", err)
		}
		vehicles = append(vehicles, v)
	}
	err = rows.Err()
	metrics.RecordDBQuery("SELECT", "vehicles", time.Since(start), err)
	return vehicles, err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanVehicle(row rowScanner) (models.Vehicle, error) {
	var (
		v                   models.Vehicle
		vehicleType, status string
		brand, model, color sql.NullString
		year                sql.NullInt64
	)
	if err := row.Scan(&v.ID, &v.LicensePlate, &vehicleType, &brand, &model, &year, &color, &status, &v.CreatedAt); err != nil {
		return models.Vehicle{}, err
	}
	v.VehicleType = models.VehicleType(vehicleType)
	v.Status = models.VehicleStatus(status)
	v.Brand = brand.String
	v.Model = model.String
	v.Color = color.String
	v.Year = int(year.Int64)
	return v, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(n int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(n), Valid: n != 0}
}
