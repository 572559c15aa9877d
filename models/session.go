package models

import "time"

// DeviceConnection describes one live connection as reported by the control
// API and tracked by the registry.
type DeviceConnection struct {
	ConnectionID  string    `json:"connectionId"`
	DeviceID      string    `json:"deviceId"`
	Platform      string    `json:"platform"`
	DeviceName    string    `json:"deviceName,omitempty"`
	ClientVersion string    `json:"clientVersion"`
	Role          Role      `json:"role"`
	ConnectedAt   time.Time `json:"connectedAt"`
	LastPing      time.Time `json:"lastPing"`

	// LastAckSequence is the highest update sequence the peer has
	// acknowledged. Zero until the first ack.
	LastAckSequence uint64 `json:"lastAckSequence,omitempty"`
}

// SessionInfo is the control-API view of one session.
type SessionInfo struct {
	SessionID   string             `json:"sessionId"`
	CreatedAt   time.Time          `json:"createdAt"`
	ExpiresAt   time.Time          `json:"expiresAt"`
	Sequence    uint64             `json:"sequence"`
	Connections []DeviceConnection `json:"connections"`
}

// DeviceHealth reports liveness of one connection.
type DeviceHealth struct {
	ConnectionID string `json:"connectionId"`
	DeviceID     string `json:"deviceId"`
	Role         Role   `json:"role"`
	Healthy      bool   `json:"healthy"`

	// SincePing is the time since the last ping in milliseconds.
	SincePing int64 `json:"sincePing"`

	// LastAckSequence is the highest update sequence the peer has
	// acknowledged.
	LastAckSequence uint64 `json:"lastAckSequence,omitempty"`
}

// SessionHealth aggregates per-connection health for one session.
type SessionHealth struct {
	SessionID string         `json:"sessionId"`
	Devices   []DeviceHealth `json:"devices"`
}

// SessionGrant is the broker's response to session creation. Token is
// returned exactly once; it is the only credential for mutating calls
// against the session.
type SessionGrant struct {
	SessionID string    `json:"sessionId"`
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// SessionExtension reports a session's expiry after a successful extension.
type SessionExtension struct {
	SessionID string    `json:"sessionId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// PushResult reports the outcome of one schema push.
type PushResult struct {
	Success        bool       `json:"success"`
	DevicesUpdated int        `json:"devicesUpdated"`
	UpdateType     UpdateKind `json:"updateType"`
	SequenceNumber uint64     `json:"sequenceNumber"`
}

// BrokerStats is the aggregate counter set exposed by the control API.
type BrokerStats struct {
	ActiveSessions    int    `json:"activeSessions"`
	ActiveConnections int    `json:"activeConnections"`
	TotalUpdates      uint64 `json:"totalUpdates"`
	TotalEvents       uint64 `json:"totalEvents"`
	ExpiredSessions   uint64 `json:"expiredSessions"`
}
