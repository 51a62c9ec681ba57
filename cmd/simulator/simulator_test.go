// Fleetwatch - Real-time Vehicle Position Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

package main

import (
	"context"
	"io"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/fleetwatch/internal/logging"
	"github.com/tomtom215/fleetwatch/internal/models"
)

//nolint:gochecknoinits // test logging setup
func init() {
	logging.Init(logging.Config{Level: "info", Format: "console", Output: io.Discard})
}

func TestWalker_StaysInsideArea(t *testing.T) {
	w := newWalker(rand.New(rand.NewPCG(1, 2)))
	for i := 0; i < 10000; i++ {
		body := w.step(7)
		if body.VehicleID != 7 {
			t.Fatalf("VehicleID = %d, want 7", body.VehicleID)
		}
		if body.Latitude < minLat || body.Latitude > maxLat {
			t.Fatalf("step %d: latitude %v outside [%v, %v]", i, body.Latitude, minLat, maxLat)
		}
		if body.Longitude < minLng || body.Longitude > maxLng {
			t.Fatalf("step %d: longitude %v outside [%v, %v]", i, body.Longitude, minLng, maxLng)
		}
		if *body.Speed < 0 || *body.Speed > 80 {
			t.Fatalf("step %d: speed %v outside [0, 80]", i, *body.Speed)
		}
		if *body.Heading < 0 || *body.Heading > 360 {
			t.Fatalf("step %d: heading %v outside [0, 360]", i, *body.Heading)
		}
		if *body.Accuracy < 1 || *body.Accuracy > 10 {
			t.Fatalf("step %d: accuracy %v outside [1, 10]", i, *body.Accuracy)
		}
	}
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		opts    options
		wantErr bool
	}{
		{"defaults", options{baseURL: "http://x/", minInterval: 5 * time.Second, maxInterval: 15 * time.Second}, false},
		{"equal intervals", options{baseURL: "http://x", minInterval: time.Second, maxInterval: time.Second}, false},
		{"missing url", options{minInterval: time.Second, maxInterval: time.Second}, true},
		{"negative vehicles", options{baseURL: "http://x", vehicles: -1, minInterval: time.Second, maxInterval: time.Second}, true},
		{"inverted intervals", options{baseURL: "http://x", minInterval: 2 * time.Second, maxInterval: time.Second}, true},
		{"zero interval", options{baseURL: "http://x", maxInterval: time.Second}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNextInterval_WithinBounds(t *testing.T) {
	s := &simulator{opts: options{minInterval: 5 * time.Second, maxInterval: 15 * time.Second}}
	rng := rand.New(rand.NewPCG(3, 4))
	for i := 0; i < 1000; i++ {
		d := s.nextInterval(rng)
		if d < 5*time.Second || d > 15*time.Second {
			t.Fatalf("nextInterval() = %s, want within [5s, 15s]", d)
		}
	}
}

// fakeServer records position reports and serves a fixed fleet.
type fakeServer struct {
	mu       sync.Mutex
	reports  []positionBody
	auth     []string
	rejectID int64
}

func (f *fakeServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/vehicles", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.auth = append(f.auth, r.Header.Get("Authorization"))
		f.mu.Unlock()
		if r.URL.Query().Get("limit") != "2" {
			http.Error(w, "limit missing", http.StatusBadRequest)
			return
		}
		writeEnvelope(w, http.StatusOK, []models.Vehicle{
			{ID: 1, LicensePlate: "ABC1234", VehicleType: models.VehicleTypeCar, Status: models.VehicleStatusActive},
			{ID: 2, LicensePlate: "XYZ9876", VehicleType: models.VehicleTypeMotorcycle, Status: models.VehicleStatusActive},
		})
	})
	mux.HandleFunc("POST /api/v1/positions", func(w http.ResponseWriter, r *http.Request) {
		var body positionBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.reports = append(f.reports, body)
		f.auth = append(f.auth, r.Header.Get("Authorization"))
		n := int64(len(f.reports))
		f.mu.Unlock()

		if body.VehicleID == f.rejectID {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"success":false,"error":{"code":"NOT_FOUND","message":"vehicle not found"}}`))
			return
		}
		writeEnvelope(w, http.StatusCreated, models.StoredPosition{ID: n, VehicleID: body.VehicleID})
	})
	return mux
}

func (f *fakeServer) reportsFor(id int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.reports {
		if r.VehicleID == id {
			n++
		}
	}
	return n
}

func writeEnvelope(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "data": data})
}

func TestSimulator_ReportsForEveryVehicle(t *testing.T) {
	fake := &fakeServer{rejectID: 2}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	opts := options{baseURL: srv.URL, vehicles: 2, minInterval: time.Millisecond, maxInterval: 2 * time.Millisecond, token: "tok"}
	if err := opts.validate(); err != nil {
		t.Fatal(err)
	}
	sim := newSimulator(opts)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sim.Run(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for fake.reportsFor(1) < 3 || fake.reportsFor(2) < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("timed out: vehicle 1 = %d, vehicle 2 = %d reports", fake.reportsFor(1), fake.reportsFor(2))
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Run() = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	for i, h := range fake.auth {
		if h != "Bearer tok" {
			t.Fatalf("request %d Authorization = %q, want Bearer tok", i, h)
		}
	}
}

func TestSimulator_NoVehicles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeEnvelope(w, http.StatusOK, []models.Vehicle{})
	}))
	defer srv.Close()

	sim := newSimulator(options{baseURL: srv.URL, minInterval: time.Millisecond, maxInterval: time.Millisecond})
	if err := sim.Run(context.Background()); err == nil {
		t.Fatal("Run() expected error for empty fleet")
	}
}

func TestAPIClient_ErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"success":false,"error":{"code":"UNAUTHORIZED","message":"missing token"}}`))
	}))
	defer srv.Close()

	c := &apiClient{baseURL: srv.URL, http: srv.Client()}
	_, err := c.listVehicles(context.Background(), 0)
	if err == nil {
		t.Fatal("listVehicles() expected error")
	}
	if got := err.Error(); !strings.Contains(got, "UNAUTHORIZED") || !strings.Contains(got, "401") {
		t.Errorf("error = %q, want status and code", got)
	}
}
