// Fleetwatch - Real-time Vehicle Position Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/fleetwatch/config.yaml",
	"/etc/fleetwatch/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8000,
			Host:            "0.0.0.0",
			Timeout:         30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Database: DatabaseConfig{
			Path:      "/data/fleetwatch.duckdb",
			MaxMemory: "1GB",
			Threads:   0, // 0 = DuckDB default
		},
		Cache: CacheConfig{
			Backend:         CacheBackendMemory,
			TTL:             5 * time.Minute,
			SweepInterval:   time.Minute,
			CellSizeKm:      1.0,
			RedisURL:        "redis://localhost:6379/0",
			BadgerDir:       "/data/fleetwatch-cache",
			BreakerFailures: 5,
			BreakerTimeout:  30 * time.Second,
		},
		WebSocket: WebSocketConfig{
			SendTimeout:    2 * time.Second,
			QueueSize:      256,
			AllowedOrigins: []string{"*"},
		},
		Tracking: TrackingConfig{
			NotifyVehicle:      false,
			RateLimitPerSecond: 0,
			RateLimitBurst:     5,
		},
		Events: EventsConfig{
			Enabled:  true,
			Topic:    "fleet.positions",
			NATSURL:  "",
			Embedded: false,
			Host:     "127.0.0.1",
			Port:     4222,
			Relay:    false,
		},
		Feed: FeedConfig{
			Enabled:  false,
			Interval: 30 * time.Second,
			Timeout:  10 * time.Second,
		},
		Security: SecurityConfig{
			AuthMode:           AuthModeNone,
			TokenExpireMinutes: 30,
			RateLimitReqs:      600,
			RateLimitWindow:    time.Minute,
			CORSOrigins:        []string{"*"},
		},
	}
}

// LoadWithKoanf loads configuration using Koanf with layered sources:
//  1. Defaults: Built-in defaults
//  2. Config File: Optional YAML config file (if exists)
//  3. Environment Variables: Override any setting
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// REDIS_URL -> cache.redis_url, HTTP_PORT -> server.port
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first config file found, or "" if none exists.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"security.cors_origins",
	"websocket.allowed_origins",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
// Env vars arrive as strings while the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) == 0 {
			continue
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps environment variable names (lowercased) to koanf paths.
var envMappings = map[string]string{
	// Server
	"http_port":        "server.port",
	"http_host":        "server.host",
	"http_timeout":     "server.timeout",
	"shutdown_timeout": "server.shutdown_timeout",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	// Database
	"duckdb_path":       "database.path",
	"duckdb_max_memory": "database.max_memory",
	"duckdb_threads":    "database.threads",

	// Cache
	"cache_backend":          "cache.backend",
	"cache_ttl":              "cache.ttl",
	"cache_sweep_interval":   "cache.sweep_interval",
	"cache_cell_size_km":     "cache.cell_size_km",
	"redis_url":              "cache.redis_url",
	"badger_dir":             "cache.badger_dir",
	"cache_breaker_failures": "cache.breaker_failures",
	"cache_breaker_timeout":  "cache.breaker_timeout",

	// WebSocket
	"ws_send_timeout":    "websocket.send_timeout",
	"ws_queue_size":      "websocket.queue_size",
	"ws_allowed_origins": "websocket.allowed_origins",

	// Tracking
	"notify_vehicle":          "tracking.notify_vehicle",
	"ingest_rate_limit":       "tracking.rate_limit_per_second",
	"ingest_rate_limit_burst": "tracking.rate_limit_burst",

	// Events
	"events_enabled":     "events.enabled",
	"events_topic":       "events.topic",
	"nats_url":           "events.nats_url",
	"nats_embedded":      "events.embedded",
	"nats_embedded_host": "events.embedded_host",
	"nats_embedded_port": "events.embedded_port",
	"events_relay":       "events.relay",
	"instance_id":        "events.instance_id",

	// Feed
	"gtfsrt_enabled":  "feed.enabled",
	"gtfsrt_url":      "feed.url",
	"gtfsrt_interval": "feed.interval",
	"gtfsrt_timeout":  "feed.timeout",

	// Security
	"auth_mode":                   "security.auth_mode",
	"secret_key":                  "security.jwt_secret",
	"jwt_secret":                  "security.jwt_secret",
	"access_token_expire_minutes": "security.token_expire_minutes",
	"rate_limit_reqs":             "security.rate_limit_reqs",
	"rate_limit_window":           "security.rate_limit_window",
	"disable_rate_limit":          "security.rate_limit_disabled",
	"cors_origins":                "security.cors_origins",
}

// envTransformFunc transforms environment variable names to koanf config paths.
// Unmapped variables return "" so unrelated environment does not pollute config.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
