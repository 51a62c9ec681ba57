// Fleetwatch - Real-time Vehicle Position Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

package cache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/tomtom215/fleetwatch/internal/config"
	"github.com/tomtom215/fleetwatch/internal/models"
)

// ErrCacheUnavailable is returned when the cache backend cannot serve a request.
// Callers on the ingestion path treat it as non-terminal.
var ErrCacheUnavailable = errors.New("position cache unavailable")

// GeoIndexKey is the name of the redis sorted set holding vehicle coordinates.
const GeoIndexKey = "vehicles:locations"

const positionKeyPrefix = "vehicle:"
const positionKeySuffix = ":position"

// PositionStore is the position cache and geo-index contract.
// All implementations must be safe for concurrent use.
type PositionStore interface {
	// Upsert stores or overwrites the position and its index entry and resets the TTL.
	Upsert(ctx context.Context, vehicleID int64, snapshot models.CachedPosition, ttl time.Duration) error

	// Get returns the cached position. Absent and expired entries report false.
	Get(ctx context.Context, vehicleID int64) (models.CachedPosition, bool, error)

	// QueryRadius returns live vehicles within radiusKm of (lat, lng), nearest first.
	QueryRadius(ctx context.Context, lat, lng, radiusKm float64) ([]models.NearbyVehicle, error)

	// Sweep removes expired entries and returns how many were removed.
	Sweep(ctx context.Context) (int, error)

	// Name identifies the backend in logs and metrics.
	Name() string

	Close() error
}

// PositionKey returns the cache key of a vehicle's position entry.
func PositionKey(vehicleID int64) string {
	return positionKeyPrefix + strconv.FormatInt(vehicleID, 10) + positionKeySuffix
}

// ParsePositionKey extracts the vehicle id from a position key.
func ParsePositionKey(key string) (int64, bool) {
	if !strings.HasPrefix(key, positionKeyPrefix) || !strings.HasSuffix(key, positionKeySuffix) {
		return 0, false
	}
	id, err := strconv.ParseInt(key[len(positionKeyPrefix):len(key)-len(positionKeySuffix)], 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// Open creates the backend named in cfg and wraps it in a circuit breaker.
func Open(ctx context.Context, cfg config.CacheConfig) (PositionStore, error) {
	var (
		backend PositionStore
		err     error
	)

	switch cfg.Backend {
	case config.CacheBackendMemory, "":
		backend = NewMemoryStore(cfg.CellSizeKm)
	case config.CacheBackendRedis:
		backend, err = NewRedisStore(ctx, cfg.RedisURL)
	case config.CacheBackendBadger:
		backend, err = NewBadgerStore(cfg.BadgerDir, cfg.CellSizeKm)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s cache: %w", cfg.Backend, err)
	}

	return NewBreaker(backend, BreakerSettings{
		MaxFailures: cfg.BreakerFailures,
		OpenTimeout: cfg.BreakerTimeout,
	}), nil
}

// sortByDistance orders results nearest first, breaking ties by vehicle id.
func sortByDistance(results []models.NearbyVehicle) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].DistanceKm == results[j].DistanceKm {
			return results[i].VehicleID < results[j].VehicleID
		}
		return results[i].DistanceKm < results[j].DistanceKm
	})
}
