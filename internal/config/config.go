// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package config

import (
	"time"
)

// StructuredConfig is the top-level configuration container for the broker.
// It aggregates all sub-configurations and is populated by merging values
// from environment variables, command-line flags, and an optional JSON file.
//
// Struct tags:
//   - envPrefix — prefix applied to all nested env tag lookups (caarlos0/env).
//   - env       — direct environment variable name for scalar fields.
type StructuredConfig struct {
	// Broker holds network address, timeout, and protocol tuning settings
	// for the WebSocket endpoint and the HTTP control API.
	Broker Broker `envPrefix:"BROKER_"`

	// Sessions holds session lifecycle settings: lifetime, sweep interval,
	// and per-role connection caps.
	Sessions Sessions `envPrefix:"SESSIONS_"`

	// Auth holds the signing parameters for session control tokens.
	Auth Auth `envPrefix:"AUTH_"`

	// JSONFilePath is the optional path to a JSON configuration file.
	// When non-empty, the file is parsed and merged on top of the values
	// already loaded from environment variables and flags.
	// Populated via the CONFIG environment variable or the -c / -config flag.
	JSONFilePath string `env:"CONFIG"`
}

// Broker holds network and protocol settings for the inbound transport layer.
type Broker struct {
	// HTTPAddress is the TCP address serving both the control API and the
	// /ws upgrade endpoint, in "host:port" format (e.g. "0.0.0.0:8080").
	// Env: BROKER_ADDRESS
	HTTPAddress string `env:"ADDRESS"`

	// RequestTimeout is the maximum duration allowed for a single inbound
	// control-API request (e.g. "30s", "1m").
	// Env: BROKER_REQUEST_TIMEOUT
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT"`

	// PingInterval is how often the dispatcher pings every connection.
	// Env: BROKER_PING_INTERVAL
	PingInterval time.Duration `env:"PING_INTERVAL"`

	// PongTimeout is how long a connection may stay silent before it is
	// considered dead and force-closed. Must exceed PingInterval.
	// Env: BROKER_PONG_TIMEOUT
	PongTimeout time.Duration `env:"PONG_TIMEOUT"`

	// DeltaThreshold is the changed-node count at or above which a push is
	// sent as a full update instead of an incremental one.
	// Env: BROKER_DELTA_THRESHOLD
	DeltaThreshold int `env:"DELTA_THRESHOLD"`
}

// Sessions holds session lifecycle settings.
type Sessions struct {
	// Lifetime is the fixed session lifetime from creation (e.g. "8h").
	// Env: SESSIONS_LIFETIME
	Lifetime time.Duration `env:"LIFETIME"`

	// SweepInterval is how often the expiry sweeper runs (e.g. "5m").
	// Env: SESSIONS_SWEEP_INTERVAL
	SweepInterval time.Duration `env:"SWEEP_INTERVAL"`

	// MaxDevices caps device-role connections per session.
	// Env: SESSIONS_MAX_DEVICES
	MaxDevices int `env:"MAX_DEVICES"`

	// MaxEditors caps editor-role connections per session.
	// Env: SESSIONS_MAX_EDITORS
	MaxEditors int `env:"MAX_EDITORS"`
}

// Auth holds signing parameters for the per-session control tokens.
type Auth struct {
	// TokenSignKey is the secret key used to sign and verify session
	// tokens. Must be kept confidential.
	// Env: AUTH_TOKEN_SIGN_KEY
	TokenSignKey string `env:"TOKEN_SIGN_KEY"`

	// TokenIssuer is the "iss" claim embedded in every issued token.
	// Env: AUTH_TOKEN_ISSUER
	TokenIssuer string `env:"TOKEN_ISSUER"`
}

// Defaults for every tunable left unset by all configuration sources.
const (
	DefaultHTTPAddress    = "0.0.0.0:8080"
	DefaultRequestTimeout = 30 * time.Second
	DefaultPingInterval   = 30 * time.Second
	DefaultPongTimeout    = 60 * time.Second
	DefaultDeltaThreshold = 10
	DefaultLifetime       = 8 * time.Hour
	DefaultSweepInterval  = 5 * time.Minute
	DefaultMaxDevices     = 10
	DefaultMaxEditors     = 3
	DefaultTokenIssuer    = "go-schema-sync"
)

// GetStructuredConfig loads, merges, and validates the application
// configuration from all available sources in the following priority order
// (last source wins for non-zero fields):
//  1. Environment variables
//  2. Command-line flags
//  3. JSON file (path resolved from sources 1 and 2)
//
// Returns a fully populated *StructuredConfig or an error if any source
// fails to load or the final config fails validation.
func GetStructuredConfig() (*StructuredConfig, error) {
	return newConfigBuilder().
		withEnv().
		withFlags().
		withJSON().
		build()
}

// applyDefaults fills every zero field with its default so downstream
// components never have to guard against unset tunables.
func (cfg *StructuredConfig) applyDefaults() {
	if cfg.Broker.HTTPAddress == "" {
		cfg.Broker.HTTPAddress = DefaultHTTPAddress
	}
	if cfg.Broker.RequestTimeout == 0 {
		cfg.Broker.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.Broker.PingInterval == 0 {
		cfg.Broker.PingInterval = DefaultPingInterval
	}
	if cfg.Broker.PongTimeout == 0 {
		cfg.Broker.PongTimeout = DefaultPongTimeout
	}
	if cfg.Broker.DeltaThreshold == 0 {
		cfg.Broker.DeltaThreshold = DefaultDeltaThreshold
	}
	if cfg.Sessions.Lifetime == 0 {
		cfg.Sessions.Lifetime = DefaultLifetime
	}
	if cfg.Sessions.SweepInterval == 0 {
		cfg.Sessions.SweepInterval = DefaultSweepInterval
	}
	if cfg.Sessions.MaxDevices == 0 {
		cfg.Sessions.MaxDevices = DefaultMaxDevices
	}
	if cfg.Sessions.MaxEditors == 0 {
		cfg.Sessions.MaxEditors = DefaultMaxEditors
	}
	if cfg.Auth.TokenIssuer == "" {
		cfg.Auth.TokenIssuer = DefaultTokenIssuer
	}
}
