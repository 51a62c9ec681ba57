// Fleetwatch - Real-time Vehicle Position Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

/*
Package supervisor runs Fleetwatch's long-lived services under a suture v4
supervisor tree.

# Overview

Services are grouped into three layers so a failure in one does not take
down the others:

	RootSupervisor ("fleetwatch")
	├── DataSupervisor ("data-layer")
	│   ├── EmbeddedNATSService (events.embedded)
	│   └── IntervalService "cache-maintenance"
	├── MessagingSupervisor ("messaging-layer")
	│   ├── HubService
	│   ├── eventprocessor.Relay (events.relay)
	│   └── feed.Poller (feed.enabled)
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

Crashed services are restarted with backoff once FailureThreshold failures
accumulate faster than FailureDecay forgives them. Supervisor events are
logged through sutureslog, which takes the slog logger built from zerolog.

# Usage

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.AddMessagingService(services.NewHubService(hub))
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	return tree.Serve(ctx)

Cancelling ctx stops every layer; services that miss ShutdownTimeout are
listed by UnstoppedServiceReport.
*/
package supervisor
