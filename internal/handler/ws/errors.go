package ws

import (
	"errors"

	"github.com/MKhiriev/go-schema-sync/internal/protocol"
	"github.com/MKhiriev/go-schema-sync/internal/session"
	"github.com/MKhiriev/go-schema-sync/models"
)

// errorPayloadFor translates a domain error into the wire-level error
// payload sent to the peer. Fatal payloads tell the client to rejoin
// instead of retrying in place.
func errorPayloadFor(err error) models.ErrorPayload {
	switch {
	case errors.Is(err, protocol.ErrUnsupportedVersion):
		return models.ErrorPayload{
			Code:     models.CodeUnsupportedVersion,
			Message:  err.Error(),
			Severity: models.SeverityFatal,
			Details:  map[string]any{"brokerVersion": models.ProtocolVersion},
		}
	case errors.Is(err, session.ErrSessionNotFound):
		return models.ErrorPayload{
			Code:     models.CodeSessionNotFound,
			Message:  err.Error(),
			Severity: models.SeverityFatal,
		}
	case errors.Is(err, session.ErrSessionExpired):
		return models.ErrorPayload{
			Code:     models.CodeSessionExpired,
			Message:  err.Error(),
			Severity: models.SeverityFatal,
		}
	case errors.Is(err, session.ErrSessionFull):
		return models.ErrorPayload{
			Code:     models.CodeRateLimitExceeded,
			Message:  err.Error(),
			Severity: models.SeverityFatal,
		}
	case errors.Is(err, protocol.ErrInvalidMessage):
		return models.ErrorPayload{
			Code:        models.CodeInvalidMessage,
			Message:     err.Error(),
			Severity:    models.SeverityError,
			Recoverable: true,
		}
	default:
		return models.ErrorPayload{
			Code:     models.CodeInternalError,
			Message:  err.Error(),
			Severity: models.SeverityError,
		}
	}
}
