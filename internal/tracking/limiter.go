// Fleetwatch - Real-time Vehicle Position Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

package tracking

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// limiterIdleTTL is how long an unused vehicle limiter is kept.
const limiterIdleTTL = time.Hour

// VehicleLimiter rate limits reports per vehicle with token buckets.
type VehicleLimiter struct {
	mu       sync.Mutex
	limiters map[int64]*limiterEntry
	rate     rate.Limit
	burst    int
	now      func() time.Time
}

type limiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// NewVehicleLimiter allows perSecond reports per vehicle with the given burst.
// A non-positive perSecond returns nil, which allows everything.
func NewVehicleLimiter(perSecond float64, burst int) *VehicleLimiter {
	if perSecond <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &VehicleLimiter{
		limiters: make(map[int64]*limiterEntry),
		rate:     rate.Limit(perSecond),
		burst:    burst,
		now:      time.Now,
	}
}

// Allow reports whether vehicleID may submit a report now, consuming a token.
func (l *VehicleLimiter) Allow(vehicleID int64) bool {
	_, ok := l.Reserve(vehicleID)
	return ok
}

// Reserve takes a token for vehicleID. It reports false, taking nothing, when
// the vehicle is over its rate. A nil limiter always succeeds.
func (l *VehicleLimiter) Reserve(vehicleID int64) (*Reservation, bool) {
	if l == nil {
		return nil, true
	}

	now := l.now()
	l.mu.Lock()
	entry, ok := l.limiters[vehicleID]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.limiters[vehicleID] = entry
	}
	entry.lastAccess = now
	limiter := entry.limiter
	l.mu.Unlock()

	res := limiter.ReserveN(now, 1)
	if !res.OK() {
		return nil, false
	}
	if res.DelayFrom(now) > 0 {
		res.CancelAt(now)
		return nil, false
	}
	return &Reservation{res: res, at: now}, true
}

// Reservation is one taken token. Cancel hands it back when the report it
// paid for was not accepted.
type Reservation struct {
	res *rate.Reservation
	at  time.Time
}

// Cancel returns the token. It is safe on a nil Reservation.
func (r *Reservation) Cancel() {
	if r == nil {
		return
	}
	// rate.Reservation ignores cancellation after its time to act, so cancel
	// at the instant the token was taken.
	r.res.CancelAt(r.at)
}

// Cleanup drops limiters idle for longer than an hour and returns how many remain.
func (l *VehicleLimiter) Cleanup() int {
	if l == nil {
		return 0
	}

	threshold := l.now().Add(-limiterIdleTTL)
	l.mu.Lock()
	defer l.mu.Unlock()
	for id, entry := range l.limiters {
		if entry.lastAccess.Before(threshold) {
			delete(l.limiters, id)
		}
	}
	return len(l.limiters)
}
