// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package adapter provides transport-layer abstractions for talking to the
// sync broker's control API.
//
// The primary abstraction is [BrokerClient], which decouples editor-side
// tooling from the underlying protocol. The package ships an HTTP/REST
// implementation ([NewHTTPBrokerClient]).
//
// Error values defined in errors.go are mapped from HTTP status codes by
// mapHTTPError so that callers can use [errors.Is] for transport-agnostic
// error handling (e.g. [ErrSessionGone] for 410, [ErrUnauthorized] for 401).
package adapter

import (
	"context"
	"time"

	"github.com/MKhiriev/go-schema-sync/models"
)

// BrokerClient defines transport-agnostic communication with the sync
// broker's control API. Implementations are responsible for serialisation,
// session-token header management, and mapping transport-level errors to the
// sentinel values defined in this package.
type BrokerClient interface {
	// SetToken stores the session token that will be attached to all
	// subsequent mutating requests. It is called automatically by
	// CreateSession.
	SetToken(token string)

	// Token returns the session token currently stored in the client, or an
	// empty string if no token has been set yet.
	Token() string

	// CreateSession asks the broker for a fresh session. On success the
	// returned token is stored via SetToken; the grant is the only place the
	// token is ever surfaced.
	CreateSession(ctx context.Context) (models.SessionGrant, error)

	// SessionInfo fetches the session's connection list and sequence position.
	SessionInfo(ctx context.Context, sessionID string) (models.SessionInfo, error)

	// SessionHealth fetches per-connection liveness for the session.
	SessionHealth(ctx context.Context, sessionID string) (models.SessionHealth, error)

	// PushSchema sends a new UI description to the session's devices. The
	// broker decides whether the push travels full or incremental.
	PushSchema(ctx context.Context, sessionID string, schema *models.UIDescription, preserveState bool) (models.PushResult, error)

	// ExtendSession pushes the session's expiry forward by extra.
	ExtendSession(ctx context.Context, sessionID string, extra time.Duration) (models.SessionExtension, error)

	// DeleteSession tears the session down, force-closing its connections.
	DeleteSession(ctx context.Context, sessionID string) error

	// Stats fetches broker-wide counters.
	Stats(ctx context.Context) (models.BrokerStats, error)
}
