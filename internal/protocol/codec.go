// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package protocol implements the stateless half of the sync wire contract:
// envelope (de)serialization, message validation, deterministic schema
// checksums, delta computation between description trees, and protocol
// version compatibility checks.
//
// The package holds no state and is safe for concurrent use; both the broker
// and the client runtime build on it.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/MKhiriev/go-schema-sync/models"
)

// NewEnvelope assembles an envelope of the given type for sessionID,
// stamping it with the current time and this build's protocol version.
// payload may be nil for types that carry no body (e.g. bare pings).
func NewEnvelope(msgType models.MessageType, sessionID string, payload any) (models.Envelope, error) {
	env := models.Envelope{
		Type:      msgType,
		SessionID: sessionID,
		Timestamp: time.Now().UnixMilli(),
		Version:   models.ProtocolVersion,
	}

	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return models.Envelope{}, fmt.Errorf("error marshaling %s payload: %w", msgType, err)
		}
		env.Payload = raw
	}

	return env, nil
}

// Serialize converts an envelope to its wire form, validating it first so a
// malformed message is caught on the sending side rather than by the peer.
func Serialize(env models.Envelope) ([]byte, error) {
	if err := Validate(env); err != nil {
		return nil, err
	}

	raw, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("error serializing %s message: %w", env.Type, err)
	}

	return raw, nil
}

// Deserialize parses wire bytes into an envelope and validates it.
func Deserialize(raw []byte) (models.Envelope, error) {
	var env models.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return models.Envelope{}, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}

	if err := Validate(env); err != nil {
		return models.Envelope{}, err
	}

	return env, nil
}

// DecodePayload unmarshals an envelope's payload into dst. dst must be a
// pointer to the payload type matching the envelope's Type.
func DecodePayload(env models.Envelope, dst any) error {
	if len(env.Payload) == 0 {
		return fmt.Errorf("%w: %s message has no payload", ErrInvalidMessage, env.Type)
	}
	if err := json.Unmarshal(env.Payload, dst); err != nil {
		return fmt.Errorf("%w: bad %s payload: %v", ErrInvalidMessage, env.Type, err)
	}
	return nil
}
