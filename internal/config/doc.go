// Fleetwatch - Real-time Vehicle Position Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

/*
Package config loads and validates Fleetwatch configuration.

Configuration is layered with koanf: built-in defaults, then an optional YAML
file (CONFIG_PATH, ./config.yaml or /etc/fleetwatch/config.yaml), then
environment variables. Only explicitly mapped environment variables are read.

Commonly used variables:

	HTTP_PORT                    listener port (default 8000)
	DUCKDB_PATH                  durable position store
	CACHE_BACKEND                memory, redis or badger
	REDIS_URL                    redis backend address
	CACHE_TTL                    cached position lifetime (default 5m)
	AUTH_MODE                    none or jwt
	SECRET_KEY                   HS256 signing secret for device tokens
	ACCESS_TOKEN_EXPIRE_MINUTES  token lifetime (default 30)
	NATS_URL                     external NATS server for the event bus
	GTFSRT_URL                   GTFS-Realtime vehicle positions feed

The fleet to seed into the vehicle directory can only be provided through the
YAML file under fleet.vehicles.
*/
package config
