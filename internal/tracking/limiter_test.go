// Fleetwatch - Real-time Vehicle Position Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

package tracking

import (
	"testing"
	"time"
)

func TestVehicleLimiter(t *testing.T) {
	l := NewVehicleLimiter(1, 2)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	if !l.Allow(1) || !l.Allow(1) {
		t.Fatal("burst of 2 should be allowed")
	}
	if l.Allow(1) {
		t.Error("third report in the same instant should be limited")
	}
	if !l.Allow(2) {
		t.Error("a different vehicle has its own bucket")
	}

	now = now.Add(time.Second)
	if !l.Allow(1) {
		t.Error("bucket should refill after one second")
	}
}

func TestVehicleLimiter_ReserveCancel(t *testing.T) {
	l := NewVehicleLimiter(1, 1)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	token, ok := l.Reserve(1)
	if !ok {
		t.Fatal("first reservation should succeed")
	}
	if _, ok := l.Reserve(1); ok {
		t.Fatal("second reservation in the same instant should be limited")
	}

	// Handing the token back later still restores it.
	now = now.Add(100 * time.Millisecond)
	token.Cancel()
	if _, ok := l.Reserve(1); !ok {
		t.Error("reservation after Cancel should succeed")
	}
	if _, ok := l.Reserve(1); ok {
		t.Error("the restored token can only be spent once")
	}

	var none *Reservation
	none.Cancel()
	var disabled *VehicleLimiter
	if token, ok := disabled.Reserve(1); !ok || token != nil {
		t.Errorf("disabled Reserve() = %v, %v, want nil, true", token, ok)
	}
}

func TestVehicleLimiter_Disabled(t *testing.T) {
	l := NewVehicleLimiter(0, 5)
	if l != nil {
		t.Fatal("zero rate should disable limiting")
	}
	for i := 0; i < 100; i++ {
		if !l.Allow(1) {
			t.Fatal("disabled limiter must allow everything")
		}
	}
	if l.Cleanup() != 0 {
		t.Error("Cleanup on nil limiter should be a no-op")
	}
}

func TestVehicleLimiter_Cleanup(t *testing.T) {
	l := NewVehicleLimiter(1, 1)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	l.Allow(1)
	now = now.Add(30 * time.Minute)
	l.Allow(2)
	now = now.Add(45 * time.Minute)

	if remaining := l.Cleanup(); remaining != 1 {
		t.Errorf("Cleanup() left %d limiters, want 1", remaining)
	}
}
