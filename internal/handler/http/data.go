package http

import (
	"encoding/json"
	"net/http"

	"github.com/MKhiriev/go-schema-sync/internal/logger"
	"github.com/MKhiriev/go-schema-sync/models"
)

// pushSchemaRequest is the body of POST /api/sessions/{sessionID}/schema.
type pushSchemaRequest struct {
	Schema        *models.UIDescription `json:"schema"`
	PreserveState bool                  `json:"preserveState"`
}

// extendSessionRequest is the body of POST /api/sessions/{sessionID}/extend.
// Duration accepts Go duration strings ("30m", "2h").
type extendSessionRequest struct {
	Duration string `json:"duration"`
}

type versionResponse struct {
	Version         string `json:"version"`
	ProtocolVersion string `json:"protocolVersion"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.FromRequest(r).Err(err).Msg("error encoding response body")
	}
}

// errorResponse is the body of every failed control-API call. TraceID lets
// the caller correlate the failure with broker logs.
type errorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"traceId,omitempty"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	writeJSON(w, r, status, errorResponse{
		Error:   err.Error(),
		TraceID: traceID(r.Context()),
	})
}

func readJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		logger.FromRequest(r).Err(err).Msg("error decoding request body")
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return false
	}
	return true
}
