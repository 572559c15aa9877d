package config

import "errors"

// Validation errors returned by [StructuredConfig.validate] when required
// configuration groups are incomplete or inconsistent.
var (
	// ErrInvalidHeartbeatConfigs indicates that the pong timeout does not
	// exceed the ping interval, which would declare every connection dead.
	ErrInvalidHeartbeatConfigs = errors.New("invalid heartbeat configuration")
	// ErrInvalidBrokerConfigs indicates invalid broker protocol settings
	// (for example, a delta threshold below one).
	ErrInvalidBrokerConfigs = errors.New("invalid broker configuration")
	// ErrInvalidSessionConfigs indicates invalid session lifecycle settings
	// (for example, a non-positive lifetime or connection cap).
	ErrInvalidSessionConfigs = errors.New("invalid session configuration")
	// ErrInvalidAuthConfigs indicates missing token signing parameters.
	ErrInvalidAuthConfigs = errors.New("invalid auth configuration")
)
