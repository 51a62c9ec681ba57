// Fleetwatch - Real-time Vehicle Position Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

package websocket

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tomtom215/fleetwatch/internal/logging"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{
		Level:  "info",
		Format: "console",
		Output: io.Discard,
	})
}

var fakeConnIDs atomic.Uint64

// fakeConn records deliveries. fail makes Send return an error; block makes
// Send wait for the context.
type fakeConn struct {
	id     uint64
	fail   bool
	block  bool
	mu     sync.Mutex
	got    []Message
	closed atomic.Bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{id: fakeConnIDs.Add(1)}
}

func (f *fakeConn) ID() uint64 { return f.id }

func (f *fakeConn) Send(ctx context.Context, msg Message) error {
	if f.closed.Load() {
		return ErrConnClosed
	}
	if f.fail {
		return errors.New("broken pipe")
	}
	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}
	f.mu.Lock()
	f.got = append(f.got, msg)
	f.mu.Unlock()
	return nil
}

func (f *fakeConn) Close() error {
	f.closed.Store(true)
	return nil
}

func (f *fakeConn) received() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Message(nil), f.got...)
}

func TestRegistry_RegisterUnknownGroup(t *testing.T) {
	r := NewRegistry()
	err := r.Register(newFakeConn(), Group("vehicle-control"))
	if !errors.Is(err, ErrUnknownGroup) {
		t.Fatalf("Register() error = %v, want ErrUnknownGroup", err)
	}
}

func TestRegistry_UnregisterIsIdempotent(t *testing.T) {
	r := NewRegistry()
	c := newFakeConn()
	if err := r.Register(c, GroupMonitoring); err != nil {
		t.Fatal(err)
	}

	if !r.Unregister(c, GroupMonitoring) {
		t.Error("first Unregister() = false, want true")
	}
	if r.Unregister(c, GroupMonitoring) {
		t.Error("second Unregister() = true, want false")
	}
	if r.Unregister(c, GroupVehicles) {
		t.Error("Unregister() from a group it never joined = true")
	}
	if r.Count(GroupMonitoring) != 0 {
		t.Errorf("Count() = %d, want 0", r.Count(GroupMonitoring))
	}
}

func TestRegistry_ConnectionKeepsOneGroup(t *testing.T) {
	r := NewRegistry()
	c := newFakeConn()
	if err := r.Register(c, GroupVehicles); err != nil {
		t.Fatal(err)
	}

	err := r.Register(c, GroupMonitoring)
	if !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("Register() under a second group error = %v, want ErrAlreadyRegistered", err)
	}
	if got := r.Count(GroupMonitoring); got != 0 {
		t.Errorf("monitoring members = %d, want 0", got)
	}
	if err := r.Register(c, GroupVehicles); err != nil {
		t.Errorf("Register() again under the same group error = %v, want nil", err)
	}
	if got := r.Count(GroupVehicles); got != 1 {
		t.Errorf("vehicles members = %d, want 1", got)
	}

	hub := NewHub(r, HubConfig{SendTimeout: time.Second})
	if n := hub.Broadcast(context.Background(), Message{Type: "position_update"}, GroupMonitoring); n != 0 {
		t.Errorf("monitoring broadcast delivered = %d, want 0", n)
	}

	// After leaving, the connection is free to join another group.
	r.Unregister(c, GroupVehicles)
	if err := r.Register(c, GroupMonitoring); err != nil {
		t.Fatalf("Register() after Unregister error = %v", err)
	}

	r.CloseAll()
	if err := r.Register(c, GroupVehicles); err != nil {
		t.Errorf("Register() after CloseAll error = %v", err)
	}
}

func TestRegistry_MembersOfIsSnapshot(t *testing.T) {
	r := NewRegistry()
	a, b := newFakeConn(), newFakeConn()
	_ = r.Register(a, GroupVehicles)
	_ = r.Register(b, GroupVehicles)

	snapshot := r.MembersOf(GroupVehicles)
	r.Unregister(a, GroupVehicles)
	_ = r.Register(newFakeConn(), GroupVehicles)

	if len(snapshot) != 2 {
		t.Fatalf("snapshot changed size to %d", len(snapshot))
	}
	if snapshot[0].ID() != a.ID() || snapshot[1].ID() != b.ID() {
		t.Errorf("snapshot not ordered by ID: %d, %d", snapshot[0].ID(), snapshot[1].ID())
	}
	if got := len(r.MembersOf(GroupMonitoring)); got != 0 {
		t.Errorf("monitoring members = %d, want 0", got)
	}
}

func TestRegistry_ConcurrentRegistration(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := newFakeConn()
			g := Groups[i%len(Groups)]
			_ = r.Register(c, g)
			_ = r.MembersOf(g)
			if i%2 == 0 {
				r.Unregister(c, g)
			}
		}(i)
	}
	wg.Wait()

	// Even i alternate between both groups and always unregister.
	if total := r.Count(GroupVehicles) + r.Count(GroupMonitoring); total != 25 {
		t.Errorf("remaining connections = %d, want 25", total)
	}
}

func TestRegistry_CloseAll(t *testing.T) {
	r := NewRegistry()
	a, b := newFakeConn(), newFakeConn()
	_ = r.Register(a, GroupVehicles)
	_ = r.Register(b, GroupMonitoring)

	if n := r.CloseAll(); n != 2 {
		t.Errorf("CloseAll() = %d, want 2", n)
	}
	if !a.closed.Load() || !b.closed.Load() {
		t.Error("CloseAll() should close every connection")
	}
	if r.Count(GroupVehicles)+r.Count(GroupMonitoring) != 0 {
		t.Error("registry not empty after CloseAll()")
	}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
