// Fleetwatch - Real-time Vehicle Position Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

package cache

import (
	"context"
	"sync"
	"time"

	"github.com/tomtom215/fleetwatch/internal/metrics"
	"github.com/tomtom215/fleetwatch/internal/models"
)

// MemoryStore is the in-process PositionStore. The position map and the grid
// are updated under one lock so readers never see one without the other.
type MemoryStore struct {
	mu        sync.RWMutex
	positions map[int64]memoryEntry
	grid      *SpatialHashGrid
	now       func() time.Time
}

type memoryEntry struct {
	position  models.CachedPosition
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(cellSizeKm float64) *MemoryStore {
	return &MemoryStore{
		positions: make(map[int64]memoryEntry),
		grid:      NewSpatialHashGrid(cellSizeKm),
		now:       time.Now,
	}
}

// Name implements PositionStore.
func (s *MemoryStore) Name() string { return "memory" }

// Upsert implements PositionStore. A non-positive ttl stores without expiry.
func (s *MemoryStore) Upsert(ctx context.Context, vehicleID int64, snapshot models.CachedPosition, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = s.now().Add(ttl)
	}

	s.mu.Lock()
	s.positions[vehicleID] = memoryEntry{position: snapshot, expiresAt: expiresAt}
	s.grid.Insert(vehicleID, snapshot.Latitude, snapshot.Longitude, expiresAt)
	n := len(s.positions)
	s.mu.Unlock()

	metrics.CacheEntries.WithLabelValues(s.Name()).Set(float64(n))
	return nil
}

// Get implements PositionStore. An expired entry is deleted on the way out.
func (s *MemoryStore) Get(ctx context.Context, vehicleID int64) (models.CachedPosition, bool, error) {
	if err := ctx.Err(); err != nil {
		return models.CachedPosition{}, false, err
	}

	now := s.now()
	s.mu.RLock()
	entry, ok := s.positions[vehicleID]
	s.mu.RUnlock()

	if !ok {
		return models.CachedPosition{}, false, nil
	}
	if entry.expired(now) {
		s.evictIfExpired(vehicleID, now)
		return models.CachedPosition{}, false, nil
	}
	return entry.position, true, nil
}

// QueryRadius implements PositionStore.
func (s *MemoryStore) QueryRadius(ctx context.Context, lat, lng, radiusKm float64) ([]models.NearbyVehicle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := s.now()
	var stale []int64

	s.mu.RLock()
	hits := s.grid.QueryNearby(lat, lng, radiusKm)
	results := make([]models.NearbyVehicle, 0, len(hits))
	for _, hit := range hits {
		entry, ok := s.positions[hit.VehicleID]
		if !ok || entry.expired(now) {
			stale = append(stale, hit.VehicleID)
			continue
		}
		results = append(results, models.NearbyVehicle{
			VehicleID:      hit.VehicleID,
			DistanceKm:     hit.DistanceKm,
			LatestPosition: entry.position,
		})
	}
	s.mu.RUnlock()

	for _, id := range stale {
		s.evictIfExpired(id, now)
	}

	sortByDistance(results)
	return results, nil
}

// Sweep implements PositionStore.
func (s *MemoryStore) Sweep(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	now := s.now()
	removed := 0

	s.mu.Lock()
	for id, entry := range s.positions {
		if entry.expired(now) {
			delete(s.positions, id)
			s.grid.Remove(id)
			removed++
		}
	}
	// Grid entries without a position should not exist, but never outlive a sweep.
	for _, id := range s.grid.ExpiredBefore(now) {
		if _, ok := s.positions[id]; !ok {
			s.grid.Remove(id)
		}
	}
	n := len(s.positions)
	s.mu.Unlock()

	metrics.CacheEntries.WithLabelValues(s.Name()).Set(float64(n))
	if removed > 0 {
		metrics.CacheSweptEntries.WithLabelValues(s.Name()).Add(float64(removed))
	}
	return removed, nil
}

// Len returns the number of stored entries, including expired ones not yet swept.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.positions)
}

// Close implements PositionStore.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions = make(map[int64]memoryEntry)
	s.grid.Clear()
	return nil
}

// evictIfExpired deletes both structures for a vehicle unless it was refreshed
// after now was taken.
func (s *MemoryStore) evictIfExpired(vehicleID int64, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.positions[vehicleID]
	if ok && !entry.expired(now) {
		return
	}
	delete(s.positions, vehicleID)
	s.grid.Remove(vehicleID)
	metrics.CacheSweptEntries.WithLabelValues(s.Name()).Inc()
}
