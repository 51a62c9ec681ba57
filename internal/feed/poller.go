// Fleetwatch - Real-time Vehicle Position Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

package feed

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/tomtom215/fleetwatch/internal/logging"
	"github.com/tomtom215/fleetwatch/internal/metrics"
	"github.com/tomtom215/fleetwatch/internal/models"
)

// DefaultInterval is used when the configured interval is not positive.
const DefaultInterval = 30 * time.Second

// Directory resolves feed identities to registered vehicles.
type Directory interface {
	LookupVehicle(ctx context.Context, id int64) (models.VehicleSummary, bool, error)
	LookupVehicleByPlate(ctx context.Context, plate string) (models.VehicleSummary, bool, error)
}

// Reporter ingests a position report.
type Reporter interface {
	ReportPosition(ctx context.Context, report models.PositionReport) (models.StoredPosition, error)
}

// PollResult counts what happened to the observations of one poll.
type PollResult struct {
	Ingested  int
	Unchanged int
	Unknown   int
	Rejected  int
}

type lastSeen struct {
	timestamp time.Time
	lat, lng  float64
}

// Poller periodically ingests a feed.
type Poller struct {
	source    Source
	directory Directory
	reporter  Reporter
	interval  time.Duration

	mu   sync.Mutex
	last map[int64]lastSeen
}

// NewPoller polls source every interval.
func NewPoller(source Source, directory Directory, reporter Reporter, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{
		source:    source,
		directory: directory,
		reporter:  reporter,
		interval:  interval,
		last:      make(map[int64]lastSeen),
	}
}

// Serve implements suture.Service. The first poll runs immediately.
func (p *Poller) Serve(ctx context.Context) error {
	logging.Info().Dur("interval", p.interval).Msg("Feed poller started")

	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			if _, err := p.Poll(ctx); err != nil && ctx.Err() == nil {
				logging.Warn().Err(err).Msg("Feed poll failed")
			}
			timer.Reset(p.interval)
		}
	}
}

// String implements fmt.Stringer for suture logging.
func (p *Poller) String() string {
	return "feed-poller"
}

// Poll fetches the feed once and ingests every changed observation.
func (p *Poller) Poll(ctx context.Context) (PollResult, error) {
	var result PollResult

	observations, err := p.source.Fetch(ctx)
	if err != nil {
		if errors.Is(err, ErrDecode) {
			metrics.FeedPolls.WithLabelValues("decode_error").Inc()
		} else {
			metrics.FeedPolls.WithLabelValues("fetch_error").Inc()
		}
		return result, err
	}
	metrics.FeedPolls.WithLabelValues("ok").Inc()

	for i := range observations {
		switch p.ingest(ctx, &observations[i]) {
		case "ingested":
			result.Ingested++
		case "unchanged":
			result.Unchanged++
		case "unknown_vehicle":
			result.Unknown++
		default:
			result.Rejected++
		}
	}

	logging.Debug().Int("observations", len(observations)).Int("ingested", result.Ingested).
		Int("unchanged", result.Unchanged).Int("unknown", result.Unknown).Int("rejected", result.Rejected).
		Msg("Feed polled")
	return result, nil
}

// ingest returns the outcome label for one observation.
func (p *Poller) ingest(ctx context.Context, obs *Observation) (outcome string) {
	defer func() { metrics.FeedPositions.WithLabelValues(outcome).Inc() }()

	vehicle, ok := p.resolve(ctx, obs)
	if !ok {
		return "unknown_vehicle"
	}
	if !p.changed(vehicle.ID, obs) {
		return "unchanged"
	}

	_, err := p.reporter.ReportPosition(ctx, models.PositionReport{
		VehicleID:  vehicle.ID,
		Latitude:   obs.Latitude,
		Longitude:  obs.Longitude,
		Speed:      obs.Speed,
		Heading:    obs.Heading,
		ObservedAt: obs.Timestamp,
	})
	if err != nil {
		logging.Debug().Err(err).Str("entity", obs.EntityID).Int64("vehicle_id", vehicle.ID).Msg("Feed position rejected")
		return "rejected"
	}

	p.remember(vehicle.ID, obs)
	return "ingested"
}

func (p *Poller) resolve(ctx context.Context, obs *Observation) (models.VehicleSummary, bool) {
	if obs.LicensePlate != "" {
		v, ok, err := p.directory.LookupVehicleByPlate(ctx, obs.LicensePlate)
		if err != nil {
			logging.Warn().Err(err).Str("plate", obs.LicensePlate).Msg("Vehicle lookup failed")
		} else if ok {
			return v, true
		}
	}

	id, err := strconv.ParseInt(obs.VehicleID, 10, 64)
	if err != nil || id <= 0 {
		return models.VehicleSummary{}, false
	}
	v, ok, err := p.directory.LookupVehicle(ctx, id)
	if err != nil {
		logging.Warn().Err(err).Int64("vehicle_id", id).Msg("Vehicle lookup failed")
		return models.VehicleSummary{}, false
	}
	return v, ok
}

// changed compares timestamps when the feed has them, coordinates otherwise.
func (p *Poller) changed(vehicleID int64, obs *Observation) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	prev, ok := p.last[vehicleID]
	if !ok {
		return true
	}
	if !obs.Timestamp.IsZero() {
		return obs.Timestamp.After(prev.timestamp)
	}
	return obs.Latitude != prev.lat || obs.Longitude != prev.lng
}

func (p *Poller) remember(vehicleID int64, obs *Observation) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.last[vehicleID] = lastSeen{timestamp: obs.Timestamp, lat: obs.Latitude, lng: obs.Longitude}
}
