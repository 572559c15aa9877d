// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package models defines the shared wire and document types exchanged
// between the sync broker and its clients: the protocol envelope with its
// per-type payloads, the UI description document, delta shapes, and the
// session records reported by the control API.
//
// Everything in this package is plain data. Behaviour (validation,
// checksums, delta computation) lives in internal/protocol.
package models

import "encoding/json"

// ProtocolVersion is the semver protocol version spoken by this build.
// Major mismatches between peers are fatal; minor mismatches downgrade
// optional capabilities.
const ProtocolVersion = "1.0.0"

// MessageType enumerates the envelope types of the sync protocol.
type MessageType string

const (
	MessageConnect   MessageType = "connect"
	MessageConnected MessageType = "connected"
	MessageUpdate    MessageType = "update"
	MessageReload    MessageType = "reload"
	MessageError     MessageType = "error"
	MessagePing      MessageType = "ping"
	MessagePong      MessageType = "pong"
	MessageAck       MessageType = "ack"
	MessageEvent     MessageType = "event"
)

// Envelope is the outer frame of every protocol message. Type, SessionID,
// Timestamp and Version are mandatory; a message missing any of them is
// rejected before its payload is inspected.
type Envelope struct {
	// Type selects the payload shape.
	Type MessageType `json:"type"`

	// SessionID scopes the message to one session.
	SessionID string `json:"sessionId"`

	// Timestamp is the sender's clock in epoch milliseconds.
	Timestamp int64 `json:"timestamp"`

	// Version is the sender's protocol version (semver).
	Version string `json:"version"`

	// Payload holds the type-specific body, decoded lazily so that a
	// malformed payload can be reported against its envelope.
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Role distinguishes the two kinds of session members. Devices receive
// schema pushes; editors receive forwarded runtime events.
type Role string

const (
	RoleDevice Role = "device"
	RoleEditor Role = "editor"
)

// ConnectPayload is the client half of the handshake.
type ConnectPayload struct {
	DeviceID      string `json:"deviceId"`
	Platform      string `json:"platform"`
	DeviceName    string `json:"deviceName,omitempty"`
	ClientVersion string `json:"clientVersion"`

	// Role defaults to device when empty.
	Role Role `json:"role,omitempty"`
}

// Capabilities advertises which optional protocol features the broker will
// use on a connection. Minor version mismatches clear individual flags
// instead of rejecting the client.
type Capabilities struct {
	IncrementalUpdates bool `json:"incrementalUpdates"`
	Compression        bool `json:"compression"`
	StatePreservation  bool `json:"statePreservation"`
}

// ConnectedPayload is the broker half of the handshake.
type ConnectedPayload struct {
	ConnectionID  string         `json:"connectionId"`
	InitialSchema *UIDescription `json:"initialSchema,omitempty"`
	Capabilities  Capabilities   `json:"capabilities"`
}

// UpdateKind selects between a full schema replacement and a delta patch.
type UpdateKind string

const (
	UpdateFull        UpdateKind = "full"
	UpdateIncremental UpdateKind = "incremental"
)

// UpdatePayload carries one schema push. Exactly one of Schema/Delta is set,
// matching Type. Checksum is present on full updates only.
type UpdatePayload struct {
	Type           UpdateKind     `json:"type"`
	Schema         *UIDescription `json:"schema,omitempty"`
	Delta          *SchemaDelta   `json:"delta,omitempty"`
	PreserveState  bool           `json:"preserveState"`
	SequenceNumber uint64         `json:"sequenceNumber"`
	Checksum       string         `json:"checksum,omitempty"`
}

// ReloadReason explains why a peer requests a full reload.
type ReloadReason string

const (
	ReloadError        ReloadReason = "error"
	ReloadManual       ReloadReason = "manual"
	ReloadIncompatible ReloadReason = "incompatible"
)

// ReloadPayload asks the peer to resend (or refetch) the full schema.
type ReloadPayload struct {
	Reason ReloadReason `json:"reason"`
	Error  string       `json:"error,omitempty"`
}

// PingPayload optionally reports what the client is busy with.
type PingPayload struct {
	Status string `json:"status,omitempty"` // idle|rendering|updating
}

// PongPayload echoes the broker clock so clients can estimate skew.
type PongPayload struct {
	ServerTime int64 `json:"serverTime"`
}

// AckPayload confirms (or reports failure of) one applied update.
type AckPayload struct {
	SequenceNumber uint64 `json:"sequenceNumber"`
	Success        bool   `json:"success"`
	Error          string `json:"error,omitempty"`

	// ApplyTime is the client-side parse+build duration in milliseconds.
	ApplyTime int64 `json:"applyTime,omitempty"`
}

// EventPayload carries one runtime event from a device upstream. The broker
// forwards it unchanged to the session's editor connections.
type EventPayload struct {
	Action  string         `json:"action"`
	Payload map[string]any `json:"payload,omitempty"`

	// DeviceID identifies the originating device when forwarded.
	DeviceID string `json:"deviceId,omitempty"`
}
