// Fleetwatch - Real-time Vehicle Position Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

package cache

import (
	"context"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/fleetwatch/internal/models"
)

// Two vehicles in São Paulo, B about 11.1 km due south of A.
const (
	latA = -23.5505
	lngA = -46.6333
	latB = -23.6505
	lngB = -46.6333
)

func snapshot(id int64, lat, lng float64) models.CachedPosition {
	return models.CachedPosition{
		VehicleID:    id,
		LicensePlate: fmt.Sprintf("ABC-%04d", id),
		VehicleType:  models.VehicleTypeCar,
		PositionID:   id * 100,
		Latitude:     lat,
		Longitude:    lng,
		ObservedAt:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Timestamp:    time.Date(2026, 1, 2, 3, 4, 6, 0, time.UTC),
	}
}

// fakeClock is a settable clock for TTL tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// assertRadiusExample checks the A/B radius example against any store.
func assertRadiusExample(t *testing.T, store PositionStore) {
	t.Helper()
	ctx := context.Background()

	if err := store.Upsert(ctx, 1, snapshot(1, latA, lngA), time.Minute); err != nil {
		t.Fatalf("Upsert(A) error = %v", err)
	}
	if err := store.Upsert(ctx, 2, snapshot(2, latB, lngB), time.Minute); err != nil {
		t.Fatalf("Upsert(B) error = %v", err)
	}

	near, err := store.QueryRadius(ctx, latA, lngA, 5)
	if err != nil {
		t.Fatalf("QueryRadius(5) error = %v", err)
	}
	if len(near) != 1 || near[0].VehicleID != 1 {
		t.Fatalf("QueryRadius(5) = %+v, want only vehicle 1", near)
	}
	if near[0].DistanceKm > 1e-6 {
		t.Errorf("distance to self = %v, want 0", near[0].DistanceKm)
	}

	both, err := store.QueryRadius(ctx, latA, lngA, 15)
	if err != nil {
		t.Fatalf("QueryRadius(15) error = %v", err)
	}
	if len(both) != 2 {
		t.Fatalf("QueryRadius(15) returned %d results, want 2", len(both))
	}
	if both[0].VehicleID != 1 || both[1].VehicleID != 2 {
		t.Errorf("results not sorted by distance: %+v", both)
	}

	want := haversineDistance(latA, lngA, latB, lngB)
	if math.Abs(both[1].DistanceKm-want) > 1e-3 {
		t.Errorf("distance to B = %v, want %v", both[1].DistanceKm, want)
	}
	if both[1].LatestPosition.LicensePlate != snapshot(2, 0, 0).LicensePlate {
		t.Errorf("LatestPosition = %+v, want vehicle 2 snapshot", both[1].LatestPosition)
	}
}
