// Fleetwatch - Real-time Vehicle Position Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

/*
Package eventprocessor publishes accepted positions as domain events and
relays events from other Fleetwatch instances to local observers.

# Backends

The bus is built on Watermill:

  - GoChannel (default): in-process pub/sub, single instance
  - NATS: core NATS through watermill-nats when events.nats_url is set
  - Embedded NATS: an in-process nats-server when events.embedded is true,
    so instances can connect to each other without an external broker

JetStream is not used. Position events are ephemeral: a relay that is down
misses them, and observers catch up from the cache.

# Flow

	tracking.Service --PublishPosition--> Publisher --(gobreaker)--> topic fleet.positions
	                                                                       |
	Relay <------------------------------------------------------------ subscribe
	  |  skip events carrying this instance's id
	  +--> websocket.Hub.Dispatch(position_update, monitoring)

Each event carries the publishing instance id, so a relay never rebroadcasts
what its own hub already delivered.
*/
package eventprocessor
