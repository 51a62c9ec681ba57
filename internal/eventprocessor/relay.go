// Fleetwatch - Real-time Vehicle Position Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

package eventprocessor

import (
	"context"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/fleetwatch/internal/logging"
	"github.com/tomtom215/fleetwatch/internal/metrics"
	"github.com/tomtom215/fleetwatch/internal/tracking"
	"github.com/tomtom215/fleetwatch/internal/websocket"
)

// Dispatcher queues a broadcast to local observers.
type Dispatcher interface {
	Dispatch(msg websocket.Message, group websocket.Group) bool
}

// Relay rebroadcasts position events published by other instances to the
// local monitoring group.
type Relay struct {
	subscriber message.Subscriber
	topic      string
	instanceID string
	target     Dispatcher
}

// NewRelay subscribes to topic and skips events carrying instanceID.
func NewRelay(sub message.Subscriber, topic, instanceID string, target Dispatcher) *Relay {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Relay{subscriber: sub, topic: topic, instanceID: instanceID, target: target}
}

// Serve implements suture.Service.
func (r *Relay) Serve(ctx context.Context) error {
	messages, err := r.subscriber.Subscribe(ctx, r.topic)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", r.topic, err)
	}
	logging.Info().Str("topic", r.topic).Str("instance_id", r.instanceID).Msg("Event relay started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return errors.New("event subscription closed")
			}
			r.handle(msg)
		}
	}
}

// String implements fmt.Stringer for suture logging.
func (r *Relay) String() string {
	return "event-relay"
}

// handle always acks: a malformed event would otherwise be redelivered forever.
func (r *Relay) handle(msg *message.Message) {
	defer msg.Ack()

	if msg.Metadata.Get(MetadataInstanceID) == r.instanceID {
		return
	}

	event, err := UnmarshalEvent(msg.Payload)
	if err != nil {
		logging.Warn().Err(err).Str("message_uuid", msg.UUID).Msg("Dropping malformed position event")
		return
	}
	if event.InstanceID == r.instanceID {
		return
	}

	update := websocket.NewMessage(websocket.MessageTypePositionUpdate, tracking.PositionPayload(event.Position))
	if r.target.Dispatch(update, websocket.GroupMonitoring) {
		metrics.EventsRelayed.Inc()
	}
}
