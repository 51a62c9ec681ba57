// Fleetwatch - Real-time Vehicle Position Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/fleetwatch/internal/logging"
	"github.com/tomtom215/fleetwatch/internal/models"
)

// Simulation area: central São Paulo.
const (
	minLat = -23.6
	maxLat = -23.5
	minLng = -46.7
	maxLng = -46.6

	centerLat = -23.5505
	centerLng = -46.6333

	startSpread = 0.05
	maxStep     = 0.001
)

type options struct {
	baseURL     string
	vehicles    int
	minInterval time.Duration
	maxInterval time.Duration
	token       string
	logLevel    string
}

func (o *options) validate() error {
	if o.baseURL == "" {
		return errors.New("--base-url is required")
	}
	if o.vehicles < 0 {
		return errors.New("--vehicles must not be negative")
	}
	if o.minInterval <= 0 || o.maxInterval < o.minInterval {
		return fmt.Errorf("intervals must satisfy 0 < min (%s) <= max (%s)", o.minInterval, o.maxInterval)
	}
	o.baseURL = strings.TrimRight(o.baseURL, "/")
	return nil
}

// walker is one vehicle's random walk. It is not safe for concurrent use.
type walker struct {
	lat, lng float64
	rng      *rand.Rand
}

func newWalker(rng *rand.Rand) *walker {
	return &walker{
		lat: clamp(centerLat+uniform(rng, -startSpread, startSpread), minLat, maxLat),
		lng: clamp(centerLng+uniform(rng, -startSpread, startSpread), minLng, maxLng),
		rng: rng,
	}
}

// step moves the walker and returns the next report for vehicleID.
func (w *walker) step(vehicleID int64) positionBody {
	w.lat = clamp(w.lat+uniform(w.rng, -maxStep, maxStep), minLat, maxLat)
	w.lng = clamp(w.lng+uniform(w.rng, -maxStep, maxStep), minLng, maxLng)

	speed := uniform(w.rng, 0, 80)
	heading := uniform(w.rng, 0, 360)
	accuracy := uniform(w.rng, 1, 10)
	return positionBody{
		VehicleID: vehicleID,
		Latitude:  w.lat,
		Longitude: w.lng,
		Speed:     &speed,
		Heading:   &heading,
		Accuracy:  &accuracy,
	}
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

func clamp(v, lo, hi float64) float64 {
	return max(lo, min(hi, v))
}

type positionBody struct {
	VehicleID int64    `json:"vehicle_id"`
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Speed     *float64 `json:"speed,omitempty"`
	Heading   *float64 `json:"heading,omitempty"`
	Accuracy  *float64 `json:"accuracy,omitempty"`
}

// envelope is the server's response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// apiClient talks to the Fleetwatch REST API.
type apiClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func (c *apiClient) do(ctx context.Context, method, path string, body interface{}, wantStatus int) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var env envelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&env); err != nil {
		return nil, fmt.Errorf("%s %s: status %d: decode response: %w", method, path, resp.StatusCode, err)
	}
	if resp.StatusCode != wantStatus {
		if env.Error != nil {
			return nil, fmt.Errorf("%s %s: status %d: %s: %s", method, path, resp.StatusCode, env.Error.Code, env.Error.Message)
		}
		return nil, fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}
	return env.Data, nil
}

func (c *apiClient) listVehicles(ctx context.Context, limit int) ([]models.Vehicle, error) {
	path := "/api/v1/vehicles?status=active"
	if limit > 0 {
		path += fmt.Sprintf("&limit=%d", limit)
	}
	data, err := c.do(ctx, http.MethodGet, path, nil, http.StatusOK)
	if err != nil {
		return nil, err
	}
	var vehicles []models.Vehicle
	if err := json.Unmarshal(data, &vehicles); err != nil {
		return nil, fmt.Errorf("decode vehicles: %w", err)
	}
	return vehicles, nil
}

func (c *apiClient) reportPosition(ctx context.Context, body positionBody) (models.StoredPosition, error) {
	var stored models.StoredPosition
	data, err := c.do(ctx, http.MethodPost, "/api/v1/positions", body, http.StatusCreated)
	if err != nil {
		return stored, err
	}
	err = json.Unmarshal(data, &stored)
	return stored, err
}

// simulator moves the fleet until its context is canceled.
type simulator struct {
	opts   options
	client *apiClient
	seed   func() *rand.Rand
	sleep  func(ctx context.Context, d time.Duration) error
}

func newSimulator(opts options) *simulator {
	return &simulator{
		opts: opts,
		client: &apiClient{
			baseURL: opts.baseURL,
			token:   opts.token,
			http:    &http.Client{Timeout: 10 * time.Second},
		},
		seed: func() *rand.Rand {
			return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
		},
		sleep: sleepContext,
	}
}

// Run lists the fleet and simulates every vehicle concurrently.
func (s *simulator) Run(ctx context.Context) error {
	vehicles, err := s.client.listVehicles(ctx, s.opts.vehicles)
	if err != nil {
		return fmt.Errorf("list vehicles: %w", err)
	}
	if len(vehicles) == 0 {
		return errors.New("no active vehicles registered")
	}
	logging.Info().Int("vehicles", len(vehicles)).Str("server", s.opts.baseURL).Msg("Starting simulation")

	var wg sync.WaitGroup
	for _, v := range vehicles {
		wg.Add(1)
		go func(v models.Vehicle) {
			defer wg.Done()
			s.drive(ctx, v)
		}(v)
	}
	wg.Wait()
	return ctx.Err()
}

// drive reports positions for one vehicle until ctx is canceled. Failed
// reports are logged and the walk continues.
func (s *simulator) drive(ctx context.Context, v models.Vehicle) {
	rng := s.seed()
	w := newWalker(rng)
	log := logging.WithComponent("simulator").With().Int64("vehicle_id", v.ID).Str("license_plate", v.LicensePlate).Logger()

	for {
		body := w.step(v.ID)
		stored, err := s.client.reportPosition(ctx, body)
		switch {
		case ctx.Err() != nil:
			return
		case err != nil:
			log.Warn().Err(err).Msg("Position report failed")
		default:
			log.Info().Int64("position_id", stored.ID).Float64("lat", body.Latitude).Float64("lng", body.Longitude).Msg("Position reported")
		}

		if err := s.sleep(ctx, s.nextInterval(rng)); err != nil {
			return
		}
	}
}

func (s *simulator) nextInterval(rng *rand.Rand) time.Duration {
	spread := s.opts.maxInterval - s.opts.minInterval
	if spread <= 0 {
		return s.opts.minInterval
	}
	return s.opts.minInterval + time.Duration(rng.Int64N(int64(spread)+1))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
