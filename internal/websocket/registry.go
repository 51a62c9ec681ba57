// Fleetwatch - Real-time Vehicle Position Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

package websocket

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/tomtom215/fleetwatch/internal/logging"
	"github.com/tomtom215/fleetwatch/internal/metrics"
)

// Group names a set of connections that receive the same broadcasts.
type Group string

const (
	GroupVehicles   Group = "vehicles"
	GroupMonitoring Group = "monitoring"
)

// Groups lists every valid group.
var Groups = []Group{GroupVehicles, GroupMonitoring}

var (
	// ErrUnknownGroup is returned when registering under a group that does not exist.
	ErrUnknownGroup = errors.New("unknown connection group")

	// ErrAlreadyRegistered is returned when a connection already belongs to
	// another group. A connection keeps one group for its whole lifetime.
	ErrAlreadyRegistered = errors.New("connection already registered in another group")
)

// Conn is one live connection as seen by the registry and the hub.
type Conn interface {
	// ID is unique per process and stable for the connection's lifetime.
	ID() uint64
	// Send queues msg for delivery, giving up when ctx is done.
	Send(ctx context.Context, msg Message) error
	// Close ends the connection. It is safe to call more than once.
	Close() error
}

// Registry tracks live connections by group.
type Registry struct {
	mu     sync.RWMutex
	groups map[Group]map[uint64]Conn
	owner  map[uint64]Group
}

// NewRegistry creates a registry with every group empty.
func NewRegistry() *Registry {
	r := &Registry{
		groups: make(map[Group]map[uint64]Conn, len(Groups)),
		owner:  make(map[uint64]Group),
	}
	for _, g := range Groups {
		r.groups[g] = make(map[uint64]Conn)
	}
	return r
}

// Register adds conn to group. Registering again under the same group is a
// no-op; registering under a different group fails with ErrAlreadyRegistered.
func (r *Registry) Register(conn Conn, group Group) error {
	r.mu.Lock()
	members, ok := r.groups[group]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrUnknownGroup, group)
	}
	if current, taken := r.owner[conn.ID()]; taken && current != group {
		r.mu.Unlock()
		return fmt.Errorf("%w: conn %d is in %q", ErrAlreadyRegistered, conn.ID(), current)
	}
	members[conn.ID()] = conn
	r.owner[conn.ID()] = group
	n := len(members)
	r.mu.Unlock()

	metrics.WSConnections.WithLabelValues(string(group)).Set(float64(n))
	logging.Info().Str("group", string(group)).Uint64("conn_id", conn.ID()).Int("total_clients", n).Msg("websocket client connected")
	return nil
}

// Unregister removes conn from group. It reports whether conn was a member;
// removing an absent connection is a no-op.
func (r *Registry) Unregister(conn Conn, group Group) bool {
	r.mu.Lock()
	members, ok := r.groups[group]
	if !ok {
		r.mu.Unlock()
		return false
	}
	if _, present := members[conn.ID()]; !present {
		r.mu.Unlock()
		return false
	}
	delete(members, conn.ID())
	delete(r.owner, conn.ID())
	n := len(members)
	r.mu.Unlock()

	metrics.WSConnections.WithLabelValues(string(group)).Set(float64(n))
	logging.Info().Str("group", string(group)).Uint64("conn_id", conn.ID()).Int("total_clients", n).Msg("websocket client disconnected")
	return true
}

// MembersOf returns a point-in-time copy of group's members ordered by ID.
func (r *Registry) MembersOf(group Group) []Conn {
	r.mu.RLock()
	members := r.groups[group]
	conns := make([]Conn, 0, len(members))
	for _, c := range members {
		conns = append(conns, c)
	}
	r.mu.RUnlock()

	sort.Slice(conns, func(i, j int) bool { return conns[i].ID() < conns[j].ID() })
	return conns
}

// Count returns the number of connections in group.
func (r *Registry) Count(group Group) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.groups[group])
}

// CloseAll closes and removes every connection. Used during shutdown.
func (r *Registry) CloseAll() int {
	r.mu.Lock()
	var conns []Conn
	for g, members := range r.groups {
		for _, c := range members {
			conns = append(conns, c)
		}
		r.groups[g] = make(map[uint64]Conn)
		metrics.WSConnections.WithLabelValues(string(g)).Set(0)
	}
	r.owner = make(map[uint64]Group)
	r.mu.Unlock()

	for _, c := range conns {
		_ = c.Close()
	}
	return len(conns)
}
