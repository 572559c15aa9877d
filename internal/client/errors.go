package client

import (
	"errors"
	"fmt"

	"github.com/MKhiriev/go-schema-sync/models"
)

var (
	// ErrQueueFull is returned by Send when the bounded outbound queue has
	// no room. The caller decides whether the message is droppable.
	ErrQueueFull = errors.New("outbound queue full")

	// ErrNeedsReauthorization is returned by Run when the broker rejected
	// the session terminally.
	ErrNeedsReauthorization = errors.New("session rejected, re-pairing required")
)

// wireError carries an error payload received from the broker.
type wireError struct {
	payload models.ErrorPayload
}

func (e *wireError) Error() string {
	return fmt.Sprintf("broker error %s: %s", e.payload.Code, e.payload.Message)
}

// terminal reports whether reconnecting with the same session parameters is
// pointless.
func (e *wireError) terminal() bool {
	switch e.payload.Code {
	case models.CodeSessionNotFound,
		models.CodeSessionExpired,
		models.CodeAuthenticationFailed,
		models.CodeUnsupportedVersion:
		return true
	}
	return e.payload.Severity == models.SeverityFatal
}
