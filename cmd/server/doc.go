// Fleetwatch - Real-time Vehicle Position Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

/*
Package main is the entry point for the Fleetwatch server.

Fleetwatch ingests vehicle position reports over HTTP, WebSocket and
GTFS-Realtime feeds, stores them durably in DuckDB, keeps the latest position
of every vehicle in a geo-indexed cache and pushes each accepted report to
connected observers.

# Application Architecture

	RootSupervisor ("fleetwatch")
	├── DataSupervisor ("data-layer")
	│   ├── Embedded NATS server (NATS_EMBEDDED=true)
	│   └── Cache maintenance (CACHE_SWEEP_INTERVAL)
	├── MessagingSupervisor ("messaging-layer")
	│   ├── WebSocket hub
	│   ├── Event relay (EVENTS_RELAY=true)
	│   └── GTFS-Realtime poller (GTFSRT_ENABLED=true)
	└── APISupervisor ("api-layer")
	    └── HTTP server

Initialization order:

 1. Configuration: Koanf v2 with defaults, config.yaml and environment
 2. Logging: zerolog
 3. Database: DuckDB, schema migrations, fleet seeding
 4. Position cache: memory, Redis or Badger behind a circuit breaker
 5. WebSocket hub and connection registry
 6. Event bus: Watermill over go channels or NATS
 7. Tracking service: the ingestion orchestrator
 8. Authentication: JWT and Casbin when AUTH_MODE=jwt
 9. Supervisor tree and HTTP server

# Example Usage

Development with the in-memory cache:

	export AUTH_MODE=none
	export DUCKDB_PATH=./fleetwatch.duckdb
	./fleetwatch

Two instances sharing Redis and NATS:

	export CACHE_BACKEND=redis
	export REDIS_URL=redis://redis:6379/0
	export NATS_URL=nats://nats:4222
	export EVENTS_RELAY=true
	./fleetwatch

# Signal Handling

SIGINT and SIGTERM cancel the root context. The HTTP server drains for
SHUTDOWN_TIMEOUT, the hub closes every connection, and the cache, event bus
and database are closed in that order.
*/
package main
