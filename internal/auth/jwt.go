// Fleetwatch - Real-time Vehicle Position Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tomtom215/fleetwatch/internal/config"
)

// Role names. They double as casbin subjects.
const (
	RoleDevice   = "device"
	RoleObserver = "observer"
	RoleAdmin    = "admin"
)

const issuer = "fleetwatch"

var (
	// ErrMissingSecret is returned when no signing secret is configured.
	ErrMissingSecret = errors.New("JWT secret is required")

	// ErrInvalidToken is returned for tokens that fail parsing or verification.
	ErrInvalidToken = errors.New("invalid token")

	// ErrInvalidRole is returned when a token is requested for an unknown role
	// or a device token lacks its vehicle.
	ErrInvalidRole = errors.New("invalid role")
)

// ValidRole reports whether role is one of the known roles.
func ValidRole(role string) bool {
	switch role {
	case RoleDevice, RoleObserver, RoleAdmin:
		return true
	default:
		return false
	}
}

// Claims are the JWT claims carried by fleet tokens.
type Claims struct {
	Role      string `json:"role"`
	VehicleID int64  `json:"vehicle_id,omitempty"`
	jwt.RegisteredClaims
}

// CanActAs reports whether the holder may report positions for, or connect as,
// the given vehicle. Device tokens are pinned to one vehicle; admins may act
// as any vehicle.
func (c *Claims) CanActAs(vehicleID int64) bool {
	switch c.Role {
	case RoleAdmin:
		return true
	case RoleDevice:
		return c.VehicleID == vehicleID
	default:
		return false
	}
}

// JWTManager handles JWT token operations
type JWTManager struct {
	secret  []byte
	timeout time.Duration
	now     func() time.Time
}

// NewJWTManager creates a new JWT manager
func NewJWTManager(cfg *config.SecurityConfig) (*JWTManager, error) {
	if cfg == nil || cfg.JWTSecret == "" {
		return nil, ErrMissingSecret
	}

	timeout := cfg.TokenTTL()
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}

	return &JWTManager{
		secret:  []byte(cfg.JWTSecret),
		timeout: timeout,
		now:     time.Now,
	}, nil
}

// TTL returns the lifetime of issued tokens.
func (m *JWTManager) TTL() time.Duration {
	return m.timeout
}

// GenerateToken issues a token for subject with the given role. vehicleID is
// required for device tokens and ignored otherwise.
func (m *JWTManager) GenerateToken(subject, role string, vehicleID int64) (string, time.Time, error) {
	if !ValidRole(role) {
		return "", time.Time{}, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	if role == RoleDevice && vehicleID <= 0 {
		return "", time.Time{}, fmt.Errorf("%w: device token requires a vehicle id", ErrInvalidRole)
	}
	if role != RoleDevice {
		vehicleID = 0
	}

	now := m.now()
	expiresAt := now.Add(m.timeout)
	claims := &Claims{
		Role:      role,
		VehicleID: vehicleID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// ValidateToken validates and parses a JWT token
func (m *JWTManager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	},
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(m.now),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if !ValidRole(claims.Role) {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, claims.Role)
	}
	if claims.Role == RoleDevice && claims.VehicleID <= 0 {
		return nil, fmt.Errorf("%w: device token without vehicle", ErrInvalidToken)
	}

	return claims, nil
}
