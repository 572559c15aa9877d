package http

import (
	"errors"
	"net/http"

	"github.com/MKhiriev/go-schema-sync/internal/protocol"
	"github.com/MKhiriev/go-schema-sync/internal/session"
)

// errorStatusMap translates domain sentinels into HTTP statuses.
// A deleted session and an unknown session are indistinguishable on purpose,
// while an expired-but-unswept session is reported as Gone.
var errorStatusMap = map[error]int{
	session.ErrSessionNotFound:    http.StatusNotFound,
	session.ErrSessionExpired:     http.StatusGone,
	session.ErrConnectionNotFound: http.StatusNotFound,
	session.ErrSessionFull:        http.StatusConflict,

	protocol.ErrInvalidMessage:     http.StatusBadRequest,
	protocol.ErrSchemaValidation:   http.StatusBadRequest,
	protocol.ErrUnsupportedVersion: http.StatusBadRequest,
	protocol.ErrChecksumMismatch:   http.StatusUnprocessableEntity,
}

func statusFromError(err error) int {
	for sentinel, status := range errorStatusMap {
		if errors.Is(err, sentinel) {
			return status
		}
	}
	return http.StatusInternalServerError
}
