// Fleetwatch - Real-time Vehicle Position Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

/*
Package tracking runs the ingestion workflow for position reports and answers
nearby queries.

ReportPosition runs four steps in order:

 1. Validate: bounds check and vehicle lookup. Terminal.
 2. Persist: write to the durable store. Terminal.
 3. Cache: upsert the cached position and its geo entry. A failure is logged
    and the report stays accepted.
 4. Broadcast: queue a position_update for the monitoring group and publish a
    domain event. Nothing waits for delivery.

A terminal failure stops the workflow, so a report the store rejected never
reaches the cache or any observer.

# Errors

	*ValidationError   bad coordinates or fields (HTTP 400)
	*NotFoundError     unknown vehicle (HTTP 404)
	*PersistenceError  durable store failure (HTTP 503)
	ErrRateLimited     vehicle exceeded its report rate (HTTP 429)

Match them with errors.As and errors.Is. ErrCacheUnavailable never escapes
ReportPosition or Nearby; it only shows up in logs and metrics.

# Ordering

Reports for different vehicles proceed independently. Two concurrent reports
for the same vehicle are resolved by arrival order at the cache, not by
observed_at.
*/
package tracking
