// Fleetwatch - Real-time Vehicle Position Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

package config

import (
	"time"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
	Database  DatabaseConfig  `koanf:"database"`
	Cache     CacheConfig     `koanf:"cache"`
	WebSocket WebSocketConfig `koanf:"websocket"`
	Tracking  TrackingConfig  `koanf:"tracking"`
	Events    EventsConfig    `koanf:"events"`
	Feed      FeedConfig      `koanf:"feed"`
	Security  SecurityConfig  `koanf:"security"`
	Fleet     FleetConfig     `koanf:"fleet"`
}

// ServerConfig holds HTTP listener settings
type ServerConfig struct {
	Port            int           `koanf:"port"`
	Host            string        `koanf:"host"`
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// DatabaseConfig holds DuckDB settings for the durable position store.
type DatabaseConfig struct {
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"`
}

// Cache backend names.
const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
	CacheBackendBadger = "badger"
)

// CacheConfig holds position cache and geo-index settings.
type CacheConfig struct {
	Backend       string        `koanf:"backend"`
	TTL           time.Duration `koanf:"ttl"`
	SweepInterval time.Duration `koanf:"sweep_interval"`
	CellSizeKm    float64       `koanf:"cell_size_km"`
	RedisURL      string        `koanf:"redis_url"`
	BadgerDir     string        `koanf:"badger_dir"`

	// Circuit breaker guarding the backend
	BreakerFailures int           `koanf:"breaker_failures"`
	BreakerTimeout  time.Duration `koanf:"breaker_timeout"`
}

// WebSocketConfig holds observer connection settings.
type WebSocketConfig struct {
	SendTimeout    time.Duration `koanf:"send_timeout"`
	QueueSize      int           `koanf:"queue_size"`
	AllowedOrigins []string      `koanf:"allowed_origins"`
}

// TrackingConfig holds ingestion orchestrator settings.
type TrackingConfig struct {
	// NotifyVehicle sends a directed position_ack to the reporting vehicle.
	NotifyVehicle bool `koanf:"notify_vehicle"`

	// Per-vehicle report rate limit; zero disables limiting.
	RateLimitPerSecond float64 `koanf:"rate_limit_per_second"`
	RateLimitBurst     int     `koanf:"rate_limit_burst"`
}

// EventsConfig holds event bus settings.
type EventsConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Topic    string `koanf:"topic"`
	NATSURL  string `koanf:"nats_url"`
	Embedded bool   `koanf:"embedded"`
	Host     string `koanf:"embedded_host"`
	Port     int    `koanf:"embedded_port"`

	// Relay rebroadcasts events published by other instances to local observers.
	Relay      bool   `koanf:"relay"`
	InstanceID string `koanf:"instance_id"`
}

// FeedConfig holds GTFS-Realtime vehicle position feed settings.
type FeedConfig struct {
	Enabled  bool          `koanf:"enabled"`
	URL      string        `koanf:"url"`
	Interval time.Duration `koanf:"interval"`
	Timeout  time.Duration `koanf:"timeout"`
}

// Auth modes.
const (
	AuthModeNone = "none"
	AuthModeJWT  = "jwt"
)

// SecurityConfig holds authentication, authorization and HTTP protection settings.
type SecurityConfig struct {
	AuthMode           string        `koanf:"auth_mode"`
	JWTSecret          string        `koanf:"jwt_secret"`
	TokenExpireMinutes int           `koanf:"token_expire_minutes"`
	RateLimitReqs      int           `koanf:"rate_limit_reqs"`
	RateLimitWindow    time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled  bool          `koanf:"rate_limit_disabled"`
	CORSOrigins        []string      `koanf:"cors_origins"`
}

// TokenTTL returns the lifetime of issued access tokens.
func (s SecurityConfig) TokenTTL() time.Duration {
	return time.Duration(s.TokenExpireMinutes) * time.Minute
}

// FleetConfig lists vehicles seeded into the vehicle directory at startup.
type FleetConfig struct {
	Vehicles []VehicleSeed `koanf:"vehicles"`
}

// VehicleSeed is one configured vehicle.
type VehicleSeed struct {
	LicensePlate string `koanf:"license_plate"`
	VehicleType  string `koanf:"vehicle_type"`
	Brand        string `koanf:"brand"`
	Model        string `koanf:"model"`
	Year         int    `koanf:"year"`
	Color        string `koanf:"color"`
	Status       string `koanf:"status"`
}

// Load reads configuration from defaults, an optional YAML file and the environment.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
