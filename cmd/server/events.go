// Fleetwatch - Real-time Vehicle Position Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

package main

import (
	"fmt"

	"github.com/tomtom215/fleetwatch/internal/config"
	"github.com/tomtom215/fleetwatch/internal/eventprocessor"
	"github.com/tomtom215/fleetwatch/internal/logging"
)

// eventComponents is the bus with its optional publisher and relay.
type eventComponents struct {
	bus       *eventprocessor.Bus
	publisher *eventprocessor.Publisher
	relay     *eventprocessor.Relay
}

// initEvents builds the event bus. When events are disabled the bus is an
// idle go channel so shutdown stays uniform.
func initEvents(cfg config.EventsConfig, target eventprocessor.Dispatcher) (*eventComponents, error) {
	if !cfg.Enabled {
		return &eventComponents{bus: eventprocessor.NewGoChannelBus(nil)}, nil
	}

	bus, err := eventprocessor.NewBus(cfg, logging.NewWatermillLogger())
	if err != nil {
		return nil, err
	}

	publisher, err := eventprocessor.NewPublisher(bus.Publisher, cfg.Topic, bus.InstanceID())
	if err != nil {
		_ = bus.Close()
		return nil, fmt.Errorf("create event publisher: %w", err)
	}
	publisher.SetCircuitBreaker(eventprocessor.NewCircuitBreaker(eventprocessor.DefaultCircuitBreakerConfig("event-publisher")))

	components := &eventComponents{bus: bus, publisher: publisher}
	if cfg.Relay {
		components.relay = eventprocessor.NewRelay(bus.Subscriber, cfg.Topic, bus.InstanceID(), target)
	}

	logging.Info().
		Str("backend", bus.Backend()).
		Str("topic", cfg.Topic).
		Bool("relay", cfg.Relay).
		Msg("Event bus ready")
	return components, nil
}

// Close closes the publisher and the bus.
func (e *eventComponents) Close() {
	if e.publisher != nil {
		if err := e.publisher.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing event publisher")
		}
	}
	if err := e.bus.Close(); err != nil {
		logging.Error().Err(err).Msg("Error closing event bus")
	}
}
