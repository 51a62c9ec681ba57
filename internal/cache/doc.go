// Fleetwatch - Real-time Vehicle Position Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

/*
Package cache holds the latest position of every vehicle together with a
geographic index that answers radius queries.

# Backends

Three PositionStore implementations are available, selected by cache.backend:

  - memory: a TTL map and a SpatialHashGrid guarded by one lock
  - redis: SET with EX plus GEOADD in one MULTI/EXEC pipeline, GEOSEARCH for queries
  - badger: entries written with native badger TTL, index kept in a SpatialHashGrid

Open wraps the selected backend in a Breaker so that a failing backend fails
fast with ErrCacheUnavailable instead of stalling the ingestion path.

# Expiry

Every backend checks liveness at read time: Get treats an expired entry as
absent, and QueryRadius confirms each index candidate against the position
entry before returning it. Stale index entries found this way are removed.
Sweep removes every expired entry from both structures and is run
periodically by the supervisor.

# Keys

Positions are stored under vehicle:<id>:position. The redis geo index is the
sorted set vehicles:locations with the vehicle id as member.
*/
package cache
