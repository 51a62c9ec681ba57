// Fleetwatch - Real-time Vehicle Position Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

package services

import (
	"context"
	"errors"
	"time"
)

// EmbeddedBroker is satisfied by *eventprocessor.EmbeddedServer.
type EmbeddedBroker interface {
	IsRunning() bool
	Shutdown()
}

// errBrokerStopped reports a broker that died under the supervisor.
var errBrokerStopped = errors.New("embedded NATS server stopped")

// EmbeddedNATSService owns an already started embedded NATS server. It
// checks liveness periodically and shuts the server down with ctx. A dead
// broker is reported as a failure on every restart so suture's backoff and
// event log make it visible.
type EmbeddedNATSService struct {
	broker        EmbeddedBroker
	checkInterval time.Duration
	name          string
}

// NewEmbeddedNATSService wraps a running broker.
func NewEmbeddedNATSService(broker EmbeddedBroker) *EmbeddedNATSService {
	return &EmbeddedNATSService{
		broker:        broker,
		checkInterval: 5 * time.Second,
		name:          "nats-embedded",
	}
}

// Serve implements suture.Service.
func (s *EmbeddedNATSService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.broker.Shutdown()
			return ctx.Err()
		case <-ticker.C:
			if !s.broker.IsRunning() {
				return errBrokerStopped
			}
		}
	}
}

// String implements fmt.Stringer for suture logging.
func (s *EmbeddedNATSService) String() string {
	return s.name
}
