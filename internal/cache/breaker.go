// Fleetwatch - Real-time Vehicle Position Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/fleetwatch/internal/logging"
	"github.com/tomtom215/fleetwatch/internal/metrics"
	"github.com/tomtom215/fleetwatch/internal/models"
)

// BreakerSettings configures the circuit breaker around a cache backend.
type BreakerSettings struct {
	// MaxFailures consecutive failures open the circuit.
	MaxFailures int
	// OpenTimeout is how long the circuit stays open before probing again.
	OpenTimeout time.Duration
}

// Breaker wraps a PositionStore with circuit breaker protection. Backend
// errors and rejected calls surface as ErrCacheUnavailable.
//
// The breaker uses real time for its open timeout. Tests that exercise
// recovery use a short OpenTimeout rather than a fake clock.
type Breaker struct {
	store PositionStore
	cb    *gobreaker.CircuitBreaker[interface{}]
	name  string
}

// NewBreaker wraps store. Zero settings fall back to 5 failures and 30 seconds.
func NewBreaker(store PositionStore, settings BreakerSettings) *Breaker {
	if settings.MaxFailures <= 0 {
		settings.MaxFailures = 5
	}
	if settings.OpenTimeout <= 0 {
		settings.OpenTimeout = 30 * time.Second
	}

	cbName := "cache-" + store.Name()
	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0)

	maxFailures := uint32(settings.MaxFailures)
	cb := gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 1,
		Timeout:     settings.OpenTimeout,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			shouldTrip := counts.ConsecutiveFailures >= maxFailures
			if shouldTrip {
				logging.Warn().Str("breaker", cbName).Uint32("consecutive_failures", counts.ConsecutiveFailures).Msg("[CIRCUIT BREAKER] Opening circuit")
			}
			return shouldTrip
		},

		// Caller cancellation says nothing about backend health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := stateToString(from)
			toStr := stateToString(to)
			logging.Info().Str("breaker", name).Str("from", fromStr).Str("to", toStr).Msg("[CIRCUIT BREAKER] State transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},
	})

	return &Breaker{store: store, cb: cb, name: cbName}
}

// execute runs fn through the circuit breaker and classifies the outcome.
func (b *Breaker) execute(ctx context.Context, fn func() (interface{}, error)) (interface{}, error) {
	result, err := b.cb.Execute(fn)
	if err == nil {
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "success").Inc()
		return result, nil
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "rejected").Inc()
		return nil, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	metrics.CircuitBreakerRequests.WithLabelValues(b.name, "failure").Inc()
	return nil, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
}

// State returns the current circuit state.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

// Status returns the circuit state as reported by the health endpoint:
// closed, half-open or open.
func (b *Breaker) Status() string {
	return stateToString(b.cb.State())
}

// Name implements PositionStore.
func (b *Breaker) Name() string { return b.store.Name() }

// Upsert implements PositionStore.
func (b *Breaker) Upsert(ctx context.Context, vehicleID int64, snapshot models.CachedPosition, ttl time.Duration) error {
	_, err := b.execute(ctx, func() (interface{}, error) {
		return nil, b.store.Upsert(ctx, vehicleID, snapshot, ttl)
	})
	return err
}

type getResult struct {
	pos models.CachedPosition
	ok  bool
}

// Get implements PositionStore.
func (b *Breaker) Get(ctx context.Context, vehicleID int64) (models.CachedPosition, bool, error) {
	result, err := b.execute(ctx, func() (interface{}, error) {
		pos, ok, err := b.store.Get(ctx, vehicleID)
		return getResult{pos: pos, ok: ok}, err
	})
	if err != nil {
		return models.CachedPosition{}, false, err
	}
	r := result.(getResult)
	return r.pos, r.ok, nil
}

// QueryRadius implements PositionStore.
func (b *Breaker) QueryRadius(ctx context.Context, lat, lng, radiusKm float64) ([]models.NearbyVehicle, error) {
	result, err := b.execute(ctx, func() (interface{}, error) {
		return b.store.QueryRadius(ctx, lat, lng, radiusKm)
	})
	if err != nil {
		return nil, err
	}
	return result.([]models.NearbyVehicle), nil
}

// Sweep implements PositionStore.
func (b *Breaker) Sweep(ctx context.Context) (int, error) {
	result, err := b.execute(ctx, func() (interface{}, error) {
		return b.store.Sweep(ctx)
	})
	if err != nil {
		return 0, err
	}
	return result.(int), nil
}

// Close implements PositionStore.
func (b *Breaker) Close() error {
	return b.store.Close()
}

// stateToFloat converts circuit breaker state to numeric value for metrics
func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// stateToString converts circuit breaker state to string for logging
func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
