// Fleetwatch - Real-time Vehicle Position Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

package eventprocessor

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/fleetwatch/internal/metrics"
	"github.com/tomtom215/fleetwatch/internal/models"
)

// Metadata keys set on every published message.
const (
	MetadataInstanceID = "instance_id"
	MetadataVehicleID  = "vehicle_id"
)

// Publisher publishes position events with circuit breaker protection.
// It does not own the underlying Watermill publisher.
type Publisher struct {
	publisher      message.Publisher
	circuitBreaker *gobreaker.CircuitBreaker[interface{}]
	topic          string
	instanceID     string

	mu     sync.RWMutex
	closed bool
}

// NewPublisher publishes to topic as instanceID.
func NewPublisher(pub message.Publisher, topic, instanceID string) (*Publisher, error) {
	if pub == nil {
		return nil, ErrNilPublisher
	}
	if topic == "" {
		topic = DefaultTopic
	}
	return &Publisher{
		publisher:  pub,
		topic:      topic,
		instanceID: instanceID,
	}, nil
}

// SetCircuitBreaker configures the circuit breaker for publish operations.
func (p *Publisher) SetCircuitBreaker(cb *gobreaker.CircuitBreaker[interface{}]) {
	p.circuitBreaker = cb
}

// Publish sends msg to the publisher's topic.
func (p *Publisher) Publish(ctx context.Context, msg *message.Message) error {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return ErrPublisherClosed
	}

	if msg.Metadata.Get(natsgo.MsgIdHdr) == "" {
		msg.Metadata.Set(natsgo.MsgIdHdr, msg.UUID)
	}
	msg.SetContext(ctx)

	var err error
	if p.circuitBreaker != nil {
		_, err = p.circuitBreaker.Execute(func() (interface{}, error) {
			return nil, p.publisher.Publish(p.topic, msg)
		})
	} else {
		err = p.publisher.Publish(p.topic, msg)
	}

	if err != nil {
		metrics.EventsPublished.WithLabelValues("error").Inc()
		return fmt.Errorf("publish to %s: %w", p.topic, err)
	}
	metrics.EventsPublished.WithLabelValues("ok").Inc()
	return nil
}

// PublishPosition publishes an accepted position.
func (p *Publisher) PublishPosition(ctx context.Context, pos models.CachedPosition) error {
	event := NewPositionEvent(p.instanceID, pos)
	data, err := MarshalEvent(event)
	if err != nil {
		return err
	}

	msg := message.NewMessage(event.EventID, data)
	msg.Metadata.Set(MetadataInstanceID, p.instanceID)
	msg.Metadata.Set(MetadataVehicleID, strconv.FormatInt(pos.VehicleID, 10))
	return p.Publish(ctx, msg)
}

// Close stops publishing. The underlying publisher is left open.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}
