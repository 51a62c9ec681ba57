// Fleetwatch - Real-time Vehicle Position Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

/*
Package websocket keeps track of live observer connections and fans events out
to them.

# Groups

Every connection belongs to exactly one group for its whole lifetime:

  - vehicles: connections opened by vehicles at /ws/vehicle/{id}
  - monitoring: dashboards and operators at /ws/monitoring

Group membership lives in a Registry. MembersOf returns a copy so a broadcast
iterates a snapshot while connections come and go.

# Fan-out

Hub.Broadcast sends one Message to every member of a group. Each send runs in
its own goroutine and is bounded by the send timeout, so a slow or broken
connection cannot hold up the others. A member whose send fails is removed
from the registry and closed. Delivery is at most once and never retried.

Ingestion does not call Broadcast directly. It calls Dispatch, which queues
the message for the hub's run loop and returns immediately. A full queue
drops the message.

# Message Format

	{
	  "type": "position_update",
	  "data": {"vehicle_id": 1, "latitude": -23.55, ...},
	  "timestamp": "2026-01-02T03:04:05Z"
	}

Messages addressed with SendTo carry data.target_vehicle. They still reach
every connection in the vehicles group; clients filter on the field.

# Client Lifecycle

Serve registers a gorilla connection, starts its write pump and blocks in the
read pump until the peer goes away, then unregisters it. The write pump pings
every pingPeriod and the read deadline is extended on every pong.
*/
package websocket
