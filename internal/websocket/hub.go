// Fleetwatch - Real-time Vehicle Position Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

package websocket

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tomtom215/fleetwatch/internal/logging"
	"github.com/tomtom215/fleetwatch/internal/metrics"
)

const (
	DefaultSendTimeout = 2 * time.Second
	DefaultQueueSize   = 256
)

// ShutdownReason identifies why the hub is shutting down.
type ShutdownReason string

const (
	// ShutdownReasonContextCanceled is the normal graceful shutdown path (e.g., SIGTERM).
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"

	// ShutdownReasonContextDeadline may indicate a hung operation during shutdown.
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// DeliveryError reports a failed send to one connection. Broadcast absorbs it;
// it is exposed for logs and tests.
type DeliveryError struct {
	ConnID uint64
	Group  Group
	Err    error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver to %s connection %d: %v", e.Group, e.ConnID, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// HubConfig configures fan-out.
type HubConfig struct {
	SendTimeout time.Duration
	QueueSize   int
}

type dispatch struct {
	msg   Message
	group Group
}

// Hub fans messages out to the members of a group.
type Hub struct {
	registry    *Registry
	sendTimeout time.Duration
	queue       chan dispatch
	running     atomic.Bool

	// OnDeliveryError, when set, observes every failed send.
	OnDeliveryError func(*DeliveryError)
}

// NewHub creates a hub over registry.
func NewHub(registry *Registry, cfg HubConfig) *Hub {
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = DefaultSendTimeout
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	return &Hub{
		registry:    registry,
		sendTimeout: cfg.SendTimeout,
		queue:       make(chan dispatch, cfg.QueueSize),
	}
}

// Registry returns the hub's connection registry.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Broadcast delivers msg to every member of group at call time and returns
// how many deliveries succeeded. Members that fail or time out are
// unregistered and closed. It waits at most the send timeout.
func (h *Hub) Broadcast(ctx context.Context, msg Message, group Group) int {
	members := h.registry.MembersOf(group)
	if len(members) == 0 {
		return 0
	}

	var (
		wg        sync.WaitGroup
		delivered atomic.Int32
	)
	for _, conn := range members {
		wg.Add(1)
		go func(conn Conn) {
			defer wg.Done()

			sendCtx, cancel := context.WithTimeout(ctx, h.sendTimeout)
			err := conn.Send(sendCtx, msg)
			cancel()

			if err == nil {
				delivered.Add(1)
				return
			}
			h.dropMember(conn, group, err)
		}(conn)
	}
	wg.Wait()

	n := int(delivered.Load())
	metrics.WSMessagesSent.WithLabelValues(string(group)).Add(float64(n))
	return n
}

func (h *Hub) dropMember(conn Conn, group Group, err error) {
	derr := &DeliveryError{ConnID: conn.ID(), Group: group, Err: err}

	reason := "error"
	if errors.Is(err, context.DeadlineExceeded) {
		reason = "timeout"
	}
	metrics.WSDeliveryFailures.WithLabelValues(string(group), reason).Inc()
	logging.Debug().Err(derr).Str("reason", reason).Msg("websocket delivery failed, dropping connection")

	if h.OnDeliveryError != nil {
		h.OnDeliveryError(derr)
	}
	h.registry.Unregister(conn, group)
	_ = conn.Close()
}

// SendTo broadcasts msg to the vehicles group with data.target_vehicle set.
// Every vehicle connection receives it; the field is advisory.
func (h *Hub) SendTo(ctx context.Context, vehicleID int64, msg Message) int {
	return h.Broadcast(ctx, addressed(vehicleID, msg), GroupVehicles)
}

func addressed(vehicleID int64, msg Message) Message {
	msg = msg.withData()
	msg.Data[TargetVehicleField] = vehicleID
	return msg
}

// Dispatch queues msg for broadcast by the run loop and returns immediately.
// It reports false when the queue is full and the message was dropped.
func (h *Hub) Dispatch(msg Message, group Group) bool {
	select {
	case h.queue <- dispatch{msg: msg, group: group}:
		return true
	default:
		metrics.WSEventsDropped.Inc()
		logging.Warn().Str("message_type", msg.Type).Str("group", string(group)).Msg("broadcast queue full, dropping message")
		return false
	}
}

// DispatchTo is the queued form of SendTo.
func (h *Hub) DispatchTo(vehicleID int64, msg Message) bool {
	return h.Dispatch(addressed(vehicleID, msg), GroupVehicles)
}

// QueueLen returns the number of queued messages.
func (h *Hub) QueueLen() int {
	return len(h.queue)
}

// Running reports whether the run loop is active.
func (h *Hub) Running() bool {
	return h.running.Load()
}

// RunWithContext drains the dispatch queue until ctx is canceled, then closes
// every connection. Designed for suture supervision.
func (h *Hub) RunWithContext(ctx context.Context) error {
	h.running.Store(true)
	defer h.running.Store(false)

	for {
		// Shutdown wins over pending work.
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		case d := <-h.queue:
			// Sends in flight finish even when shutdown starts mid-broadcast.
			h.Broadcast(context.WithoutCancel(ctx), d.msg, d.group)
		}
	}
}

// shutdown closes all connections and logs without an error field, since
// cancellation is the expected way to stop.
func (h *Hub) shutdown(ctx context.Context) {
	closed := h.registry.CloseAll()
	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", string(getShutdownReason(ctx))).
		Int("clients_closed", closed).
		Int("queued_dropped", len(h.queue)).
		Msg("websocket hub stopped")
}

func getShutdownReason(ctx context.Context) ShutdownReason {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ShutdownReasonContextDeadline
	}
	return ShutdownReasonContextCanceled
}
