// Fleetwatch - Real-time Vehicle Position Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

package cache

import (
	"context"
	"sync"
	"testing"
	"time"
)

func newTestMemoryStore(clock *fakeClock) *MemoryStore {
	s := NewMemoryStore(1)
	if clock != nil {
		s.now = clock.Now
	}
	return s
}

func TestMemoryStore_QueryRadius(t *testing.T) {
	assertRadiusExample(t, newTestMemoryStore(nil))
}

func TestMemoryStore_LastWriterWins(t *testing.T) {
	ctx := context.Background()
	s := newTestMemoryStore(nil)

	if err := s.Upsert(ctx, 1, snapshot(1, latA, lngA), time.Minute); err != nil {
		t.Fatal(err)
	}
	moved := snapshot(1, latB, lngB)
	moved.PositionID = 999
	if err := s.Upsert(ctx, 1, moved, time.Minute); err != nil {
		t.Fatal(err)
	}

	got, ok, err := s.Get(ctx, 1)
	if err != nil || !ok {
		t.Fatalf("Get(1) = %v, %v", ok, err)
	}
	if got.PositionID != 999 {
		t.Errorf("PositionID = %d, want 999", got.PositionID)
	}

	// The index followed the cache entry.
	if near, _ := s.QueryRadius(ctx, latA, lngA, 1); len(near) != 0 {
		t.Errorf("vehicle still indexed at old location: %+v", near)
	}
	if near, _ := s.QueryRadius(ctx, latB, lngB, 1); len(near) != 1 {
		t.Errorf("vehicle not indexed at new location: %+v", near)
	}
}

func TestMemoryStore_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	s := newTestMemoryStore(clock)

	if err := s.Upsert(ctx, 1, snapshot(1, latA, lngA), 5*time.Minute); err != nil {
		t.Fatal(err)
	}
	if err := s.Upsert(ctx, 2, snapshot(2, latB, lngB), 10*time.Minute); err != nil {
		t.Fatal(err)
	}

	clock.Advance(5*time.Minute - time.Second)
	if _, ok, _ := s.Get(ctx, 1); !ok {
		t.Fatal("Get(1) should be present before TTL elapses")
	}

	clock.Advance(2 * time.Second)

	// No sweep has run; the read itself must hide the expired entry.
	if _, ok, _ := s.Get(ctx, 1); ok {
		t.Error("Get(1) should be absent after TTL")
	}
	near, err := s.QueryRadius(ctx, latA, lngA, 15)
	if err != nil {
		t.Fatal(err)
	}
	if len(near) != 1 || near[0].VehicleID != 2 {
		t.Errorf("QueryRadius after expiry = %+v, want only vehicle 2", near)
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1 after lazy eviction", s.Len())
	}
	if s.grid.Len() != 1 {
		t.Errorf("grid Len() = %d, want 1 after lazy eviction", s.grid.Len())
	}
}

func TestMemoryStore_UpsertResetsTTL(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	s := newTestMemoryStore(clock)

	_ = s.Upsert(ctx, 1, snapshot(1, latA, lngA), time.Minute)
	clock.Advance(50 * time.Second)
	_ = s.Upsert(ctx, 1, snapshot(1, latA, lngA), time.Minute)
	clock.Advance(50 * time.Second)

	if _, ok, _ := s.Get(ctx, 1); !ok {
		t.Error("refreshed entry expired on the original TTL")
	}
}

func TestMemoryStore_Sweep(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	s := newTestMemoryStore(clock)

	for id := int64(1); id <= 5; id++ {
		ttl := time.Minute
		if id > 3 {
			ttl = time.Hour
		}
		if err := s.Upsert(ctx, id, snapshot(id, latA, lngA), ttl); err != nil {
			t.Fatal(err)
		}
	}

	clock.Advance(2 * time.Minute)
	removed, err := s.Sweep(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 3 {
		t.Errorf("Sweep() removed %d, want 3", removed)
	}
	if s.Len() != 2 || s.grid.Len() != 2 {
		t.Errorf("after sweep: positions=%d grid=%d, want 2 and 2", s.Len(), s.grid.Len())
	}
}

func TestMemoryStore_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := newTestMemoryStore(nil)
	if err := s.Upsert(ctx, 1, snapshot(1, latA, lngA), time.Minute); err == nil {
		t.Error("Upsert with canceled context should fail")
	}
	if s.Len() != 0 {
		t.Error("canceled Upsert must not write")
	}
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	s := newTestMemoryStore(nil)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				id := int64(i%20 + 1)
				lat := latA - float64(w)*0.001
				_ = s.Upsert(ctx, id, snapshot(id, lat, lngA), time.Minute)
				if _, err := s.QueryRadius(ctx, latA, lngA, 5); err != nil {
					t.Errorf("QueryRadius error = %v", err)
					return
				}
				_, _, _ = s.Get(ctx, id)
			}
		}(w)
	}
	wg.Wait()

	if s.Len() != 20 || s.grid.Len() != 20 {
		t.Errorf("positions=%d grid=%d, want 20 each", s.Len(), s.grid.Len())
	}
}
