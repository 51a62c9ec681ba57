// Fleetwatch - Real-time Vehicle Position Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
)

func openTestBadger(t *testing.T) *badger.DB {
	t.Helper()
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		t.Fatalf("open badger: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestBadgerStore_QueryRadius(t *testing.T) {
	s, err := NewBadgerStoreFromDB(openTestBadger(t), 1)
	if err != nil {
		t.Fatal(err)
	}
	assertRadiusExample(t, s)
}

func TestBadgerStore_GetAndOverwrite(t *testing.T) {
	ctx := context.Background()
	s, err := NewBadgerStoreFromDB(openTestBadger(t), 1)
	if err != nil {
		t.Fatal(err)
	}

	if _, ok, err := s.Get(ctx, 7); err != nil || ok {
		t.Fatalf("Get(missing) = %v, %v; want absent", ok, err)
	}

	_ = s.Upsert(ctx, 7, snapshot(7, latA, lngA), time.Minute)
	_ = s.Upsert(ctx, 7, snapshot(7, latB, lngB), time.Minute)

	got, ok, err := s.Get(ctx, 7)
	if err != nil || !ok {
		t.Fatalf("Get(7) = %v, %v", ok, err)
	}
	if got.Latitude != latB {
		t.Errorf("Latitude = %v, want %v", got.Latitude, latB)
	}
	if near, _ := s.QueryRadius(ctx, latA, lngA, 1); len(near) != 0 {
		t.Errorf("stale location still returned: %+v", near)
	}
}

func TestBadgerStore_RebuildIndex(t *testing.T) {
	ctx := context.Background()
	db := openTestBadger(t)

	first, err := NewBadgerStoreFromDB(db, 1)
	if err != nil {
		t.Fatal(err)
	}
	_ = first.Upsert(ctx, 1, snapshot(1, latA, lngA), time.Hour)
	_ = first.Upsert(ctx, 2, snapshot(2, latB, lngB), 0)

	// A second store over the same data starts with the index rebuilt.
	second, err := NewBadgerStoreFromDB(db, 1)
	if err != nil {
		t.Fatal(err)
	}
	near, err := second.QueryRadius(ctx, latA, lngA, 15)
	if err != nil {
		t.Fatal(err)
	}
	if len(near) != 2 {
		t.Errorf("rebuilt index returned %d results, want 2", len(near))
	}
}

func TestBadgerStore_TTLExpiry(t *testing.T) {
	if testing.Short() {
		t.Skip("badger TTL has one second resolution")
	}

	ctx := context.Background()
	s, err := NewBadgerStoreFromDB(openTestBadger(t), 1)
	if err != nil {
		t.Fatal(err)
	}

	_ = s.Upsert(ctx, 1, snapshot(1, latA, lngA), time.Second)
	_ = s.Upsert(ctx, 2, snapshot(2, latB, lngB), time.Hour)

	time.Sleep(2100 * time.Millisecond)

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
	if s.grid.Len() != 1 {
		t.Errorf("grid Len() = %d, want 1 after lazy confirmation", s.grid.Len())
	}
}

func TestBadgerStore_ExpiryRoundsUp(t *testing.T) {
	db := openTestBadger(t)
	s, err := NewBadgerStoreFromDB(db, 1)
	if err != nil {
		t.Fatal(err)
	}
	// A future clock keeps the entry readable for the real-time expiry check.
	base := time.Now().Add(time.Hour).Truncate(time.Second)
	s.now = func() time.Time { return base.Add(400 * time.Millisecond) }

	if err := s.Upsert(context.Background(), 1, snapshot(1, latA, lngA), 1500*time.Millisecond); err != nil {
		t.Fatal(err)
	}

	var got uint64
	err = db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(PositionKey(1)))
		if err != nil {
			return err
		}
		got = item.ExpiresAt()
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	// Deadline is base+1.9s; truncation would give base+1s.
	if want := uint64(base.Unix() + 2); got != want {
		t.Errorf("ExpiresAt() = %d, want %d", got, want)
	}

	if got := expiresAtSeconds(base); got != uint64(base.Unix()) {
		t.Errorf("expiresAtSeconds(whole second) = %d, want %d", got, base.Unix())
	}
}

func TestBadgerStore_Sweep(t *testing.T) {
	if testing.Short() {
		t.Skip("badger TTL has one second resolution")
	}

	ctx := context.Background()
	s, err := NewBadgerStoreFromDB(openTestBadger(t), 1)
	if err != nil {
		t.Fatal(err)
	}

	_ = s.Upsert(ctx, 1, snapshot(1, latA, lngA), time.Second)
	_ = s.Upsert(ctx, 2, snapshot(2, latA, lngA), time.Second)
	_ = s.Upsert(ctx, 3, snapshot(3, latA, lngA), time.Hour)

	time.Sleep(2100 * time.Millisecond)

	removed, err := s.Sweep(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 2 {
		t.Errorf("Sweep() removed %d, want 2", removed)
	}
	if s.grid.Len() != 1 {
		t.Errorf("grid Len() = %d, want 1", s.grid.Len())
	}
}
