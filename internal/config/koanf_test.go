// Fleetwatch - Real-time Vehicle Position Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestDefaultConfig verifies that defaultConfig() returns proper defaults
func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Server.Port != 8000 {
		t.Errorf("Server.Port = %d, want 8000", cfg.Server.Port)
	}
	if cfg.Cache.Backend != CacheBackendMemory {
		t.Errorf("Cache.Backend = %q, want memory", cfg.Cache.Backend)
	}
	if cfg.Cache.TTL != 5*time.Minute {
		t.Errorf("Cache.TTL = %v, want 5m", cfg.Cache.TTL)
	}
	if cfg.WebSocket.SendTimeout != 2*time.Second {
		t.Errorf("WebSocket.SendTimeout = %v, want 2s", cfg.WebSocket.SendTimeout)
	}
	if cfg.Security.AuthMode != AuthModeNone {
		t.Errorf("Security.AuthMode = %q, want none", cfg.Security.AuthMode)
	}
	if cfg.Security.TokenTTL() != 30*time.Minute {
		t.Errorf("Security.TokenTTL() = %v, want 30m", cfg.Security.TokenTTL())
	}
	if cfg.Events.Topic != "fleet.positions" {
		t.Errorf("Events.Topic = %q, want fleet.positions", cfg.Events.Topic)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got %v", err)
	}
}

func TestLoadWithKoanf_Defaults(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, want 0.0.0.0", cfg.Server.Host)
	}
	if cfg.Cache.SweepInterval != time.Minute {
		t.Errorf("Cache.SweepInterval = %v, want 1m", cfg.Cache.SweepInterval)
	}
}

func TestLoadWithKoanf_EnvOverrides(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("HTTP_PORT", "9100")
	t.Setenv("CACHE_BACKEND", "redis")
	t.Setenv("REDIS_URL", "redis://cache:6379/1")
	t.Setenv("CACHE_TTL", "90s")
	t.Setenv("AUTH_MODE", "jwt")
	t.Setenv("SECRET_KEY", strings.Repeat("k", 40))
	t.Setenv("ACCESS_TOKEN_EXPIRE_MINUTES", "15")
	t.Setenv("CORS_ORIGINS", "https://ops.example.com, https://map.example.com")
	t.Setenv("UNRELATED_VARIABLE", "ignored")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}

	if cfg.Server.Port != 9100 {
		t.Errorf("Server.Port = %d, want 9100", cfg.Server.Port)
	}
	if cfg.Cache.Backend != CacheBackendRedis {
		t.Errorf("Cache.Backend = %q, want redis", cfg.Cache.Backend)
	}
	if cfg.Cache.RedisURL != "redis://cache:6379/1" {
		t.Errorf("Cache.RedisURL = %q", cfg.Cache.RedisURL)
	}
	if cfg.Cache.TTL != 90*time.Second {
		t.Errorf("Cache.TTL = %v, want 90s", cfg.Cache.TTL)
	}
	if cfg.Security.TokenTTL() != 15*time.Minute {
		t.Errorf("TokenTTL() = %v, want 15m", cfg.Security.TokenTTL())
	}
	want := []string{"https://ops.example.com", "https://map.example.com"}
	if len(cfg.Security.CORSOrigins) != len(want) {
		t.Fatalf("CORSOrigins = %v, want %v", cfg.Security.CORSOrigins, want)
	}
	for i := range want {
		if cfg.Security.CORSOrigins[i] != want[i] {
			t.Errorf("CORSOrigins[%d] = %q, want %q", i, cfg.Security.CORSOrigins[i], want[i])
		}
	}
}

func TestLoadWithKoanf_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 8080
cache:
  backend: badger
  badger_dir: /tmp/fleet-cache
fleet:
  vehicles:
    - license_plate: ABC1D23
      vehicle_type: car
      brand: Toyota
      model: Corolla
      color: Prata
    - license_plate: MOT0R01
      vehicle_type: motorcycle
      brand: Honda
      model: CB 500
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("HTTP_PORT", "8081")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}

	if cfg.Server.Port != 8081 {
		t.Errorf("env should override file: Server.Port = %d, want 8081", cfg.Server.Port)
	}
	if cfg.Cache.Backend != CacheBackendBadger {
		t.Errorf("Cache.Backend = %q, want badger", cfg.Cache.Backend)
	}
	if cfg.Cache.TTL != 5*time.Minute {
		t.Errorf("unset file keys keep defaults: Cache.TTL = %v", cfg.Cache.TTL)
	}
	if len(cfg.Fleet.Vehicles) != 2 {
		t.Fatalf("Fleet.Vehicles = %d, want 2", len(cfg.Fleet.Vehicles))
	}
	if cfg.Fleet.Vehicles[1].VehicleType != "motorcycle" {
		t.Errorf("Fleet.Vehicles[1].VehicleType = %q", cfg.Fleet.Vehicles[1].VehicleType)
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		env  string
		want string
	}{
		{"REDIS_URL", "cache.redis_url"},
		{"SECRET_KEY", "security.jwt_secret"},
		{"ACCESS_TOKEN_EXPIRE_MINUTES", "security.token_expire_minutes"},
		{"DUCKDB_PATH", "database.path"},
		{"GTFSRT_URL", "feed.url"},
		{"PATH", ""},
		{"HOME", ""},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			if got := envTransformFunc(tt.env); got != tt.want {
				t.Errorf("envTransformFunc(%q) = %q, want %q", tt.env, got, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid defaults", func(*Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "HTTP_PORT"},
		{"unknown backend", func(c *Config) { c.Cache.Backend = "memcached" }, "CACHE_BACKEND"},
		{"redis without url", func(c *Config) { c.Cache.Backend = CacheBackendRedis; c.Cache.RedisURL = "" }, "REDIS_URL"},
		{"zero ttl", func(c *Config) { c.Cache.TTL = 0 }, "CACHE_TTL"},
		{"zero send timeout", func(c *Config) { c.WebSocket.SendTimeout = 0 }, "WS_SEND_TIMEOUT"},
		{"short jwt secret", func(c *Config) { c.Security.AuthMode = AuthModeJWT; c.Security.JWTSecret = "short" }, "SECRET_KEY"},
		{"unknown auth mode", func(c *Config) { c.Security.AuthMode = "oidc" }, "AUTH_MODE"},
		{"relay without nats", func(c *Config) { c.Events.Relay = true }, "EVENTS_RELAY"},
		{"bad nats url", func(c *Config) { c.Events.NATSURL = "http://nats:4222" }, "NATS_URL"},
		{"feed without url", func(c *Config) { c.Feed.Enabled = true }, "GTFSRT_URL"},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "LOG_LEVEL"},
		{"duplicate plate", func(c *Config) {
			c.Fleet.Vehicles = []VehicleSeed{
				{LicensePlate: "ABC1D23", VehicleType: "car"},
				{LicensePlate: "abc1d23", VehicleType: "car"},
			}
		}, "duplicate license_plate"},
		{"bad vehicle type", func(c *Config) {
			c.Fleet.Vehicles = []VehicleSeed{{LicensePlate: "XYZ9A87", VehicleType: "truck"}}
		}, "vehicle_type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %q, want it to contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}
