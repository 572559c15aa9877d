package http

import (
	"net/http"

	"github.com/MKhiriev/go-schema-sync/models"
)

// buildVersion reports the broker build and the wire protocol version it
// speaks, so editors can detect mismatches before connecting.
func (h *Handler) buildVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, versionResponse{
		Version:         h.version,
		ProtocolVersion: models.ProtocolVersion,
	})
}
