package protocol

import "errors"

// Sentinel errors of the protocol layer. Callers match with errors.Is and
// translate to wire error codes at the transport boundary.
var (
	// ErrInvalidMessage indicates a message that fails base-field or
	// payload-shape validation. Maps to INVALID_MESSAGE on the wire.
	ErrInvalidMessage = errors.New("invalid protocol message")
	// ErrUnsupportedVersion indicates a fatal protocol major-version
	// mismatch. Maps to UNSUPPORTED_VERSION on the wire.
	ErrUnsupportedVersion = errors.New("unsupported protocol version")
	// ErrSchemaValidation indicates a structurally broken UI description
	// (missing ids, duplicate ids, missing types).
	ErrSchemaValidation = errors.New("schema validation failed")
	// ErrChecksumMismatch indicates a full update whose recomputed checksum
	// differs from the advertised one.
	ErrChecksumMismatch = errors.New("schema checksum mismatch")
)
