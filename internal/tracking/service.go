// Fleetwatch - Real-time Vehicle Position Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

package tracking

import (
	"context"
	"errors"
	"time"

	"github.com/tomtom215/fleetwatch/internal/cache"
	"github.com/tomtom215/fleetwatch/internal/logging"
	"github.com/tomtom215/fleetwatch/internal/metrics"
	"github.com/tomtom215/fleetwatch/internal/models"
	"github.com/tomtom215/fleetwatch/internal/validation"
	"github.com/tomtom215/fleetwatch/internal/websocket"
)

const (
	DefaultCacheTTL = 5 * time.Minute

	// MaxRadiusKm bounds nearby queries.
	MaxRadiusKm = 1000.0
)

// Store is the durable store and vehicle directory used by the service.
type Store interface {
	LookupVehicle(ctx context.Context, id int64) (models.VehicleSummary, bool, error)
	// CreatePosition returns models.ErrVehicleNotFound when the vehicle row is gone.
	CreatePosition(ctx context.Context, report models.PositionReport) (models.StoredPosition, error)
	LatestPosition(ctx context.Context, vehicleID int64) (models.StoredPosition, bool, error)
}

// Broadcaster queues events for observers without waiting for delivery.
type Broadcaster interface {
	Dispatch(msg websocket.Message, group websocket.Group) bool
	DispatchTo(vehicleID int64, msg websocket.Message) bool
}

// EventPublisher publishes accepted positions to the event bus.
type EventPublisher interface {
	PublishPosition(ctx context.Context, pos models.CachedPosition) error
}

// Config configures the service.
type Config struct {
	CacheTTL           time.Duration
	NotifyVehicle      bool
	RateLimitPerSecond float64
	RateLimitBurst     int
}

// Option customizes a Service.
type Option func(*Service)

// WithEventPublisher publishes every accepted position.
func WithEventPublisher(p EventPublisher) Option {
	return func(s *Service) {
		s.events = p
	}
}

// Service is the ingestion orchestrator. It holds no locks of its own.
type Service struct {
	store     Store
	positions cache.PositionStore
	hub       Broadcaster
	events    EventPublisher
	limiter   *VehicleLimiter
	cfg       Config
	now       func() time.Time
}

// NewService wires the orchestrator to its collaborators.
func NewService(store Store, positions cache.PositionStore, hub Broadcaster, cfg Config, opts ...Option) *Service {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	s := &Service{
		store:     store,
		positions: positions,
		hub:       hub,
		limiter:   NewVehicleLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst),
		cfg:       cfg,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ReportPosition validates, persists, caches and broadcasts one report.
// It returns once the report is durable; delivery to observers happens later.
func (s *Service) ReportPosition(ctx context.Context, report models.PositionReport) (models.StoredPosition, error) {
	start := s.now()
	if report.ObservedAt.IsZero() {
		report.ObservedAt = start.UTC()
	}

	// Validate
	if verr := validation.ValidateStruct(&report); verr != nil {
		metrics.RecordRejection("validation")
		return models.StoredPosition{}, fromRequestValidation(verr)
	}
	vehicle, found, err := s.store.LookupVehicle(ctx, report.VehicleID)
	if err != nil {
		metrics.RecordRejection("persistence")
		return models.StoredPosition{}, &PersistenceError{Op: "lookup vehicle", Err: err}
	}
	if !found {
		metrics.RecordRejection("not_found")
		return models.StoredPosition{}, &NotFoundError{VehicleID: report.VehicleID}
	}
	token, ok := s.limiter.Reserve(report.VehicleID)
	if !ok {
		metrics.RecordRejection("rate_limited")
		return models.StoredPosition{}, ErrRateLimited
	}

	// Persist. A rejected report hands its token back.
	stored, err := s.store.CreatePosition(ctx, report)
	if err != nil {
		token.Cancel()
	}
	if errors.Is(err, models.ErrVehicleNotFound) {
		metrics.RecordRejection("not_found")
		return models.StoredPosition{}, &NotFoundError{VehicleID: report.VehicleID}
	}
	if err != nil {
		metrics.RecordRejection("persistence")
		logging.Ctx(ctx).Error().Err(err).Int64("vehicle_id", report.VehicleID).Msg("Failed to persist position")
		return models.StoredPosition{}, &PersistenceError{Op: "create position", Err: err}
	}

	// Cache
	snapshot := models.NewCachedPosition(vehicle, stored)
	if err := s.positions.Upsert(ctx, vehicle.ID, snapshot, s.cfg.CacheTTL); err != nil {
		metrics.CacheOperations.WithLabelValues(s.positions.Name(), "upsert", "unavailable").Inc()
		logging.Ctx(ctx).Warn().Err(err).Int64("vehicle_id", vehicle.ID).Int64("position_id", stored.ID).
			Msg("Position accepted but cache update failed")
	}

	// Broadcast
	s.broadcast(ctx, snapshot)

	metrics.PositionsAccepted.Inc()
	metrics.IngestDuration.Observe(s.now().Sub(start).Seconds())
	return stored, nil
}

// broadcast queues the observer events and publishes the domain event.
// Failures here never reach the caller.
func (s *Service) broadcast(ctx context.Context, pos models.CachedPosition) {
	if s.hub != nil {
		s.hub.Dispatch(websocket.NewMessage(websocket.MessageTypePositionUpdate, PositionPayload(pos)), websocket.GroupMonitoring)
		if s.cfg.NotifyVehicle {
			s.hub.DispatchTo(pos.VehicleID, websocket.NewMessage(websocket.MessageTypePositionAck, map[string]interface{}{
				"position_id": pos.PositionID,
				"timestamp":   pos.Timestamp,
			}))
		}
	}

	if s.events != nil {
		if err := s.events.PublishPosition(ctx, pos); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Int64("vehicle_id", pos.VehicleID).Msg("Failed to publish position event")
		}
	}
}

// PositionPayload is the data of a position_update message.
func PositionPayload(pos models.CachedPosition) map[string]interface{} {
	data := map[string]interface{}{
		"vehicle_id":    pos.VehicleID,
		"license_plate": pos.LicensePlate,
		"vehicle_type":  pos.VehicleType,
		"latitude":      pos.Latitude,
		"longitude":     pos.Longitude,
		"timestamp":     pos.Timestamp,
	}
	if pos.Speed != nil {
		data["speed"] = *pos.Speed
	}
	if pos.Heading != nil {
		data["heading"] = *pos.Heading
	}
	return data
}

// NearbyQuery is a validated radius query.
type NearbyQuery struct {
	Lat      float64 `json:"lat" validate:"latitude"`
	Lng      float64 `json:"lng" validate:"longitude"`
	RadiusKm float64 `json:"radius_km" validate:"gt=0,lte=1000"`
}

// Nearby returns live vehicles within radiusKm of (lat, lng), nearest first.
// A cache failure yields an empty result, never an error.
func (s *Service) Nearby(ctx context.Context, lat, lng, radiusKm float64) ([]models.NearbyVehicle, error) {
	q := NearbyQuery{Lat: lat, Lng: lng, RadiusKm: radiusKm}
	if verr := validation.ValidateStruct(&q); verr != nil {
		return nil, fromRequestValidation(verr)
	}

	start := s.now()
	defer func() {
		metrics.NearbyQueryDuration.Observe(s.now().Sub(start).Seconds())
	}()

	results, err := s.positions.QueryRadius(ctx, lat, lng, radiusKm)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Float64("lat", lat).Float64("lng", lng).Float64("radius_km", radiusKm).
			Msg("Nearby query degraded to empty result")
		return []models.NearbyVehicle{}, nil
	}
	if results == nil {
		results = []models.NearbyVehicle{}
	}
	return results, nil
}

// LatestPosition returns the newest known position of a vehicle, preferring the
// cache and falling back to the durable store. The second result is false when
// the vehicle has never reported.
func (s *Service) LatestPosition(ctx context.Context, vehicleID int64) (models.CachedPosition, bool, error) {
	if pos, ok, err := s.positions.Get(ctx, vehicleID); err == nil && ok {
		return pos, true, nil
	} else if err != nil {
		logging.Ctx(ctx).Debug().Err(err).Int64("vehicle_id", vehicleID).Msg("Cache read failed, falling back to store")
	}

	vehicle, found, err := s.store.LookupVehicle(ctx, vehicleID)
	if err != nil {
		return models.CachedPosition{}, false, &PersistenceError{Op: "lookup vehicle", Err: err}
	}
	if !found {
		return models.CachedPosition{}, false, &NotFoundError{VehicleID: vehicleID}
	}

	stored, ok, err := s.store.LatestPosition(ctx, vehicleID)
	if err != nil {
		return models.CachedPosition{}, false, &PersistenceError{Op: "latest position", Err: err}
	}
	if !ok {
		return models.CachedPosition{}, false, nil
	}
	return models.NewCachedPosition(vehicle, stored), true, nil
}

// Maintain sweeps expired cache entries and idle rate limiters.
func (s *Service) Maintain(ctx context.Context) (int, error) {
	s.limiter.Cleanup()
	return s.positions.Sweep(ctx)
}

func fromRequestValidation(verr *validation.RequestValidationError) *ValidationError {
	ve := &ValidationError{Reason: verr.Error(), Err: verr}
	if errs := verr.Errors(); len(errs) > 0 {
		ve.Field = errs[0].Field()
		ve.Reason = errs[0].Error()
	}
	return ve
}
