package session

import "errors"

// Sentinel errors of the session layer. The transport boundaries translate
// them to SESSION_NOT_FOUND / SESSION_EXPIRED / RATE_LIMIT_EXCEEDED wire
// codes and HTTP statuses.
var (
	// ErrSessionNotFound indicates an unknown session id.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExpired indicates a session past its expiry that has not
	// been swept yet.
	ErrSessionExpired = errors.New("session expired")
	// ErrSessionFull indicates a join rejected by the per-role connection cap.
	ErrSessionFull = errors.New("session connection cap reached")
	// ErrConnectionNotFound indicates an unknown connection id within a session.
	ErrConnectionNotFound = errors.New("connection not found")
	// ErrConnectionClosed indicates a delivery to a connection whose write
	// pump has stopped.
	ErrConnectionClosed = errors.New("connection closed")
	// ErrSendQueueFull indicates a peer that is not draining its outbound
	// queue.
	ErrSendQueueFull = errors.New("connection send queue full")
)
