// Fleetwatch - Real-time Vehicle Position Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

package api

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/fleetwatch/internal/config"
	"github.com/tomtom215/fleetwatch/internal/logging"
	"github.com/tomtom215/fleetwatch/internal/models"
	"github.com/tomtom215/fleetwatch/internal/tracking"
	ws "github.com/tomtom215/fleetwatch/internal/websocket"
)

//nolint:gochecknoinits // test logging setup
func init() {
	logging.Init(logging.Config{Level: "info", Format: "console", Output: io.Discard})
}

// fakeTracker records reports and serves canned query results.
type fakeTracker struct {
	mu        sync.Mutex
	reports   []models.PositionReport
	reportErr error
	nextID    int64

	nearby    []models.NearbyVehicle
	nearbyErr error
	gotRadius float64

	latest    map[int64]models.CachedPosition
	latestErr error
}

func (f *fakeTracker) ReportPosition(_ context.Context, report models.PositionReport) (models.StoredPosition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reportErr != nil {
		return models.StoredPosition{}, f.reportErr
	}
	f.reports = append(f.reports, report)
	f.nextID++
	return models.StoredPosition{
		ID:         f.nextID,
		VehicleID:  report.VehicleID,
		Latitude:   report.Latitude,
		Longitude:  report.Longitude,
		Speed:      report.Speed,
		Heading:    report.Heading,
		ObservedAt: report.ObservedAt,
		Timestamp:  time.Now().UTC(),
	}, nil
}

func (f *fakeTracker) Nearby(_ context.Context, _, _, radiusKm float64) ([]models.NearbyVehicle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gotRadius = radiusKm
	return f.nearby, f.nearbyErr
}

func (f *fakeTracker) LatestPosition(_ context.Context, vehicleID int64) (models.CachedPosition, bool, error) {
	if f.latestErr != nil {
		return models.CachedPosition{}, false, f.latestErr
	}
	pos, ok := f.latest[vehicleID]
	return pos, ok, nil
}

func (f *fakeTracker) reportCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reports)
}

// fakeStore is an in-memory vehicle directory.
type fakeStore struct {
	vehicles  map[int64]models.Vehicle
	history   map[int64][]models.StoredPosition
	pingErr   error
	storeErr  error
	gotFilter models.VehicleFilter
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		vehicles: map[int64]models.Vehicle{
			1: {ID: 1, LicensePlate: "ABC1D23", VehicleType: models.VehicleTypeCar, Status: models.VehicleStatusActive},
			2: {ID: 2, LicensePlate: "MOT0R01", VehicleType: models.VehicleTypeMotorcycle, Status: models.VehicleStatusActive},
			3: {ID: 3, LicensePlate: "XYZ9W87", VehicleType: models.VehicleTypeCar, Status: models.VehicleStatusMaintenance},
		},
		history: map[int64][]models.StoredPosition{},
	}
}

func (s *fakeStore) ListVehicles(_ context.Context, filter models.VehicleFilter) ([]models.Vehicle, error) {
	s.gotFilter = filter
	if s.storeErr != nil {
		return nil, s.storeErr
	}
	ids := make([]int64, 0, len(s.vehicles))
	for id := range s.vehicles {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var out []models.Vehicle
	for _, id := range ids {
		v := s.vehicles[id]
		if filter.VehicleType != "" && v.VehicleType != filter.VehicleType {
			continue
		}
		if filter.Status != "" && v.Status != filter.Status {
			continue
		}
		out = append(out, v)
	}
	if filter.Offset >= len(out) {
		return []models.Vehicle{}, nil
	}
	out = out[filter.Offset:]
	if len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *fakeStore) GetVehicle(_ context.Context, id int64) (models.Vehicle, bool, error) {
	if s.storeErr != nil {
		return models.Vehicle{}, false, s.storeErr
	}
	v, ok := s.vehicles[id]
	return v, ok, nil
}

func (s *fakeStore) PositionHistory(_ context.Context, vehicleID int64, limit int) ([]models.StoredPosition, error) {
	h := s.history[vehicleID]
	if len(h) > limit {
		h = h[:limit]
	}
	return h, nil
}

func (s *fakeStore) Ping(context.Context) error { return s.pingErr }

// fakeCache reports a fixed breaker state.
type fakeCache struct {
	status string
}

func (c fakeCache) Name() string   { return "memory" }
func (c fakeCache) Status() string { return c.status }

var errBoom = errors.New("boom")

func testConfig() *config.Config {
	return &config.Config{
		Security: config.SecurityConfig{
			AuthMode:           config.AuthModeNone,
			JWTSecret:          "provisioning-secret-for-tests-0123456789",
			TokenExpireMinutes: 30,
			RateLimitDisabled:  true,
			CORSOrigins:        []string{"*"},
		},
	}
}

type testEnv struct {
	tracker *fakeTracker
	store   *fakeStore
	hub     *ws.Hub
	handler *Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		tracker: &fakeTracker{latest: map[int64]models.CachedPosition{}},
		store:   newFakeStore(),
		hub:     ws.NewHub(ws.NewRegistry(), ws.HubConfig{SendTimeout: time.Second}),
	}
	env.handler = NewHandler(env.tracker, env.store, env.hub, fakeCache{status: "closed"}, nil, testConfig())
	return env
}

// router mounts the handler without authentication.
func (e *testEnv) router() http.Handler {
	return NewRouter(e.handler, NewChiMiddleware(ChiMiddlewareConfigFromSecurity(testConfig().Security)), nil, nil).Setup()
}

func do(t *testing.T, h http.Handler, method, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reader = bytes.NewBufferString(b)
		default:
			data, err := json.Marshal(b)
			if err != nil {
				t.Fatalf("marshal body: %v", err)
			}
			reader = bytes.NewReader(data)
		}
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// envelope is APIResponse with Data left raw for per-test decoding.
type envelope struct {
	Success  bool            `json:"success"`
	Data     json.RawMessage `json:"data"`
	Error    *APIError       `json:"error"`
	Metadata APIMeta         `json:"metadata"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (body %s)", err, rec.Body.String())
	}
	return env
}

func decodeData(t *testing.T, env envelope, dst interface{}) {
	t.Helper()
	if err := json.Unmarshal(env.Data, dst); err != nil {
		t.Fatalf("decode data: %v (data %s)", err, env.Data)
	}
}

func toJSON(t *testing.T, v interface{}) string {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(data)
}

var _ Tracker = (*tracking.Service)(nil)
