// Fleetwatch - Real-time Vehicle Position Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/fleetwatch/internal/api"
	"github.com/tomtom215/fleetwatch/internal/auth"
	"github.com/tomtom215/fleetwatch/internal/authz"
	"github.com/tomtom215/fleetwatch/internal/cache"
	"github.com/tomtom215/fleetwatch/internal/config"
	"github.com/tomtom215/fleetwatch/internal/database"
	"github.com/tomtom215/fleetwatch/internal/feed"
	"github.com/tomtom215/fleetwatch/internal/logging"
	"github.com/tomtom215/fleetwatch/internal/supervisor"
	"github.com/tomtom215/fleetwatch/internal/supervisor/services"
	"github.com/tomtom215/fleetwatch/internal/tracking"
	ws "github.com/tomtom215/fleetwatch/internal/websocket"
)

func main() {
	if err := run(); err != nil {
		logging.Fatal().Err(err).Msg("Fleetwatch stopped with error")
	}
}

//nolint:gocyclo // sequential setup steps
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("db_path", cfg.Database.Path).
		Str("cache_backend", cfg.Cache.Backend).
		Str("auth_mode", cfg.Security.AuthMode).
		Bool("events", cfg.Events.Enabled).
		Bool("feed", cfg.Feed.Enabled).
		Msg("Starting Fleetwatch")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Durable store
	db, err := database.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()

	fleet := database.VehiclesFromConfig(cfg.Fleet.Vehicles)
	if len(fleet) == 0 {
		fleet = append(fleet, database.DefaultFleet...)
	}
	added, err := db.SeedVehicles(ctx, fleet)
	if err != nil {
		return fmt.Errorf("seed vehicles: %w", err)
	}
	version, _ := db.GetCurrentSchemaVersion(ctx)
	vehicles, stored, _ := db.RecordCounts(ctx)
	logging.Info().
		Int("schema_version", version).
		Int("added", added).
		Int64("vehicles", vehicles).
		Int64("positions", stored).
		Msg("Vehicle directory ready")

	// Position cache
	positions, err := cache.Open(ctx, cfg.Cache)
	if err != nil {
		return fmt.Errorf("open position cache: %w", err)
	}
	defer func() {
		if err := positions.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing position cache")
		}
	}()
	logging.Info().Str("backend", positions.Name()).Dur("ttl", cfg.Cache.TTL).Msg("Position cache ready")

	// Fan-out
	hub := ws.NewHub(ws.NewRegistry(), ws.HubConfig{
		SendTimeout: cfg.WebSocket.SendTimeout,
		QueueSize:   cfg.WebSocket.QueueSize,
	})

	// Event bus
	events, err := initEvents(cfg.Events, hub)
	if err != nil {
		return fmt.Errorf("initialize event bus: %w", err)
	}
	defer events.Close()

	// Ingestion
	opts := []tracking.Option{}
	if events.publisher != nil {
		opts = append(opts, tracking.WithEventPublisher(events.publisher))
	}
	tracker := tracking.NewService(db, positions, hub, tracking.Config{
		CacheTTL:           cfg.Cache.TTL,
		NotifyVehicle:      cfg.Tracking.NotifyVehicle,
		RateLimitPerSecond: cfg.Tracking.RateLimitPerSecond,
		RateLimitBurst:     cfg.Tracking.RateLimitBurst,
	}, opts...)

	// Authentication and authorization
	jwtManager, authzMiddleware, closeAuthz, err := initAuth(cfg)
	if err != nil {
		return err
	}
	defer closeAuthz()

	handler := api.NewHandler(tracker, db, hub, positions, jwtManager, cfg)
	router := api.NewRouter(
		handler,
		api.NewChiMiddleware(api.ChiMiddlewareConfigFromSecurity(cfg.Security)),
		auth.NewMiddleware(jwtManager, cfg.Security.AuthMode, api.WriteError),
		authzMiddleware,
	)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router.Setup(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		IdleTimeout:       60 * time.Second,
		// WriteTimeout stays unset: it would cut long-lived WebSocket connections.
	}

	// Supervisor tree
	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		return fmt.Errorf("create supervisor tree: %w", err)
	}

	if srv := events.bus.EmbeddedServer(); srv != nil {
		tree.AddDataService(services.NewEmbeddedNATSService(srv))
	}
	tree.AddDataService(services.NewIntervalService("cache-maintenance", cfg.Cache.SweepInterval, tracker.Maintain))

	tree.AddMessagingService(services.NewHubService(hub))
	if events.relay != nil {
		tree.AddMessagingService(events.relay)
		logging.Info().Str("instance_id", events.bus.InstanceID()).Msg("Event relay added to supervisor tree")
	}
	if cfg.Feed.Enabled {
		source := feed.NewGTFSRTSource(cfg.Feed.URL, cfg.Feed.Timeout)
		tree.AddMessagingService(feed.NewPoller(source, db, tracker, cfg.Feed.Interval))
		logging.Info().Str("url", cfg.Feed.URL).Dur("interval", cfg.Feed.Interval).Msg("GTFS-Realtime poller added to supervisor tree")
	}

	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	errCh := tree.ServeBackground(ctx)
	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	if unstopped, _ := tree.UnstoppedServiceReport(); len(unstopped) > 0 {
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
		}
	}

	logging.Info().Msg("Fleetwatch stopped gracefully")
	return nil
}

// initAuth builds the JWT manager and the Casbin middleware in jwt mode.
// Both are nil in none mode.
func initAuth(cfg *config.Config) (*auth.JWTManager, *authz.Middleware, func(), error) {
	if cfg.Security.AuthMode != config.AuthModeJWT {
		logging.Warn().Msg("Authentication is DISABLED (AUTH_MODE=none); every endpoint is public")
		return nil, nil, func() {}, nil
	}

	jwtManager, err := auth.NewJWTManager(&cfg.Security)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("initialize JWT manager: %w", err)
	}
	enforcer, err := authz.NewEnforcer(authz.DefaultEnforcerConfig())
	if err != nil {
		return nil, nil, nil, fmt.Errorf("initialize authorization: %w", err)
	}

	logging.Info().Dur("token_ttl", jwtManager.TTL()).Msg("JWT authentication enabled")
	return jwtManager, authz.NewMiddleware(enforcer, api.WriteError), enforcer.Close, nil
}
