// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package config

// validate checks that the final merged [StructuredConfig] satisfies all
// application invariants before it is used at startup.
//
// Returns nil if the configuration is valid, or a descriptive error otherwise.
func (cfg *StructuredConfig) validate() error {
	if cfg.Broker.PongTimeout <= cfg.Broker.PingInterval {
		return ErrInvalidHeartbeatConfigs
	}

	if cfg.Broker.DeltaThreshold < 1 {
		return ErrInvalidBrokerConfigs
	}

	if cfg.Sessions.Lifetime <= 0 || cfg.Sessions.SweepInterval <= 0 {
		return ErrInvalidSessionConfigs
	}

	if cfg.Sessions.MaxDevices < 1 || cfg.Sessions.MaxEditors < 1 {
		return ErrInvalidSessionConfigs
	}

	if cfg.Auth.TokenSignKey == "" {
		return ErrInvalidAuthConfigs
	}

	return nil
}
