package models

// ErrorCode enumerates the protocol-level error codes a peer may receive in
// an error envelope. Codes are stable wire contract; log messages are not.
type ErrorCode string

const (
	CodeInvalidMessage         ErrorCode = "INVALID_MESSAGE"
	CodeUnsupportedVersion     ErrorCode = "UNSUPPORTED_VERSION"
	CodeSessionNotFound        ErrorCode = "SESSION_NOT_FOUND"
	CodeSessionExpired         ErrorCode = "SESSION_EXPIRED"
	CodeAuthenticationFailed   ErrorCode = "AUTHENTICATION_FAILED"
	CodeSchemaValidationFailed ErrorCode = "SCHEMA_VALIDATION_FAILED"
	CodeUpdateFailed           ErrorCode = "UPDATE_FAILED"
	CodeChecksumMismatch       ErrorCode = "CHECKSUM_MISMATCH"
	CodeRateLimitExceeded      ErrorCode = "RATE_LIMIT_EXCEEDED"
	CodeInternalError          ErrorCode = "INTERNAL_ERROR"
)

// Severity grades an error envelope. Fatal errors require the client to
// rejoin; warnings are informational.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
	SeverityFatal   Severity = "fatal"
)

// ErrorPayload is the body of an error envelope.
type ErrorPayload struct {
	Code        ErrorCode      `json:"code"`
	Message     string         `json:"message"`
	Severity    Severity       `json:"severity"`
	Details     map[string]any `json:"details,omitempty"`
	Recoverable bool           `json:"recoverable"`
}
