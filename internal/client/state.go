package client

// State is the connection manager's lifecycle state.
type State int32

const (
	// StateDisconnected means no socket exists; a reconnect may be pending.
	StateDisconnected State = iota

	// StateConnecting means the dialer is establishing the socket.
	StateConnecting

	// StateAwaitingHandshake means the socket is up and the connect message
	// has been sent; the broker has not yet replied.
	StateAwaitingHandshake

	// StateConnected means the handshake completed and traffic flows.
	StateConnected

	// StateNeedsReauthorization is terminal: the broker rejected the session
	// (unknown, expired, or protocol-incompatible) and reconnecting with the
	// same parameters can never succeed.
	StateNeedsReauthorization
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateAwaitingHandshake:
		return "awaiting_handshake"
	case StateConnected:
		return "connected"
	case StateNeedsReauthorization:
		return "needs_reauthorization"
	default:
		return "unknown"
	}
}
