// Fleetwatch - Real-time Vehicle Position Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

package eventprocessor

import (
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/fleetwatch/internal/logging"
	"github.com/tomtom215/fleetwatch/internal/models"
	"github.com/tomtom215/fleetwatch/internal/websocket"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{Level: "info", Format: "console", Output: io.Discard})
}

func samplePosition(id int64) models.CachedPosition {
	return models.CachedPosition{
		VehicleID:    id,
		LicensePlate: "ABC1D23",
		VehicleType:  models.VehicleTypeCar,
		PositionID:   100 + id,
		Latitude:     -23.5505,
		Longitude:    -46.6333,
		Timestamp:    time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC),
	}
}

type dispatched struct {
	msg   websocket.Message
	group websocket.Group
}

type fakeDispatcher struct {
	mu  sync.Mutex
	out []dispatched
}

func (d *fakeDispatcher) Dispatch(msg websocket.Message, group websocket.Group) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.out = append(d.out, dispatched{msg: msg, group: group})
	return true
}

func (d *fakeDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.out)
}

func (d *fakeDispatcher) last() dispatched {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.out[len(d.out)-1]
}

// failingPublisher fails every publish.
type failingPublisher struct {
	calls atomic.Int32
}

func (p *failingPublisher) Publish(string, ...*message.Message) error {
	p.calls.Add(1)
	return errors.New("nats: connection closed")
}

func (p *failingPublisher) Close() error { return nil }

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}
