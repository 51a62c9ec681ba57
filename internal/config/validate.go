// Fleetwatch - Real-time Vehicle Position Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Validate checks that required configuration is present and valid
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateCache(); err != nil {
		return err
	}
	if err := c.validateWebSocket(); err != nil {
		return err
	}
	if err := c.validateEvents(); err != nil {
		return err
	}
	if err := c.validateFeed(); err != nil {
		return err
	}
	if err := c.validateSecurity(); err != nil {
		return err
	}
	if err := c.validateFleet(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateCache() error {
	switch c.Cache.Backend {
	case CacheBackendMemory, CacheBackendBadger:
	case CacheBackendRedis:
		if err := validateURL(c.Cache.RedisURL, "redis", "rediss"); err != nil {
			return fmt.Errorf("REDIS_URL is invalid: %w", err)
		}
	default:
		return fmt.Errorf("CACHE_BACKEND must be one of memory, redis, badger, got %q", c.Cache.Backend)
	}

	if c.Cache.TTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive")
	}
	if c.Cache.SweepInterval <= 0 {
		return fmt.Errorf("CACHE_SWEEP_INTERVAL must be positive")
	}
	if c.Cache.CellSizeKm <= 0 {
		return fmt.Errorf("CACHE_CELL_SIZE_KM must be positive")
	}
	if c.Cache.BreakerFailures < 1 {
		return fmt.Errorf("CACHE_BREAKER_FAILURES must be at least 1")
	}
	return nil
}

func (c *Config) validateWebSocket() error {
	if c.WebSocket.SendTimeout <= 0 {
		return fmt.Errorf("WS_SEND_TIMEOUT must be positive")
	}
	if c.WebSocket.QueueSize < 1 {
		return fmt.Errorf("WS_QUEUE_SIZE must be at least 1")
	}
	return nil
}

func (c *Config) validateEvents() error {
	if !c.Events.Enabled {
		return nil
	}
	if c.Events.Topic == "" {
		return fmt.Errorf("EVENTS_TOPIC is required when EVENTS_ENABLED=true")
	}
	if c.Events.NATSURL != "" {
		if err := validateURL(c.Events.NATSURL, "nats", "tls"); err != nil {
			return fmt.Errorf("NATS_URL is invalid: %w", err)
		}
	}
	if c.Events.Relay && c.Events.NATSURL == "" && !c.Events.Embedded {
		return fmt.Errorf("EVENTS_RELAY requires NATS_URL or NATS_EMBEDDED=true")
	}
	return nil
}

func (c *Config) validateFeed() error {
	if !c.Feed.Enabled {
		return nil
	}
	if err := validateURL(c.Feed.URL, "http", "https"); err != nil {
		return fmt.Errorf("GTFSRT_URL is invalid: %w", err)
	}
	if c.Feed.Interval < time.Second {
		return fmt.Errorf("GTFSRT_INTERVAL must be at least 1s")
	}
	return nil
}

func (c *Config) validateSecurity() error {
	switch c.Security.AuthMode {
	case AuthModeNone:
	case AuthModeJWT:
		if len(c.Security.JWTSecret) < 32 {
			return fmt.Errorf("SECRET_KEY must be at least 32 characters when AUTH_MODE=jwt")
		}
		if c.Security.TokenExpireMinutes < 1 {
			return fmt.Errorf("ACCESS_TOKEN_EXPIRE_MINUTES must be at least 1")
		}
	default:
		return fmt.Errorf("AUTH_MODE must be one of none, jwt, got %q", c.Security.AuthMode)
	}
	if !c.Security.RateLimitDisabled && c.Security.RateLimitReqs < 1 {
		return fmt.Errorf("RATE_LIMIT_REQS must be at least 1")
	}
	return nil
}

func (c *Config) validateFleet() error {
	seen := make(map[string]bool, len(c.Fleet.Vehicles))
	for i, v := range c.Fleet.Vehicles {
		plate := strings.ToUpper(strings.TrimSpace(v.LicensePlate))
		if plate == "" {
			return fmt.Errorf("fleet.vehicles[%d]: license_plate is required", i)
		}
		if seen[plate] {
			return fmt.Errorf("fleet.vehicles[%d]: duplicate license_plate %q", i, plate)
		}
		seen[plate] = true
		if v.VehicleType != "car" && v.VehicleType != "motorcycle" {
			return fmt.Errorf("fleet.vehicles[%d]: vehicle_type must be car or motorcycle", i)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "error", "fatal", "panic", "disabled":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of trace, debug, info, warn, error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
		return nil
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
}

func validateURL(raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Host == "" {
		return fmt.Errorf("missing host")
	}
	for _, s := range schemes {
		if u.Scheme == s {
			return nil
		}
	}
	return fmt.Errorf("scheme must be one of %s", strings.Join(schemes, ", "))
}
