// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package http

import (
	"net/http"
	"time"

	"github.com/MKhiriev/go-schema-sync/internal/logger"
	"github.com/MKhiriev/go-schema-sync/internal/utils"
	"github.com/MKhiriev/go-schema-sync/models"
	"github.com/go-chi/chi/v5"
)

// createSession registers a new session and issues its bearer token.
// The token is the only credential for mutating calls against the session,
// so it is returned exactly once, here.
func (h *Handler) createSession(w http.ResponseWriter, r *http.Request) {
	log := logger.FromRequest(r)

	s, err := h.registry.CreateSession()
	if err != nil {
		log.Err(err).Msg("error creating session")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	token, err := utils.GenerateSessionToken(h.auth.TokenIssuer, s.ID, s.ExpiresAt(), h.auth.TokenSignKey)
	if err != nil {
		log.Err(err).Str("session_id", s.ID).Msg("error issuing session token")
		// A session without a token cannot be managed; roll it back.
		_ = h.registry.DeleteSession(s.ID)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, r, http.StatusCreated, models.SessionGrant{
		SessionID: s.ID,
		Token:     token.String(),
		CreatedAt: s.CreatedAt,
		ExpiresAt: s.ExpiresAt(),
	})
}

// sessionInfo reports a session's connections and sequence position.
func (h *Handler) sessionInfo(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	s, err := h.registry.GetSession(sessionID)
	if err != nil {
		logger.FromRequest(r).Err(err).Str("session_id", sessionID).Msg("error getting session")
		writeError(w, r, statusFromError(err), err)
		return
	}

	writeJSON(w, r, http.StatusOK, s.Info())
}

// sessionHealth reports per-connection liveness for one session.
func (h *Handler) sessionHealth(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	health, err := h.dispatcher.SessionHealth(sessionID)
	if err != nil {
		logger.FromRequest(r).Err(err).Str("session_id", sessionID).Msg("error getting session health")
		writeError(w, r, statusFromError(err), err)
		return
	}

	writeJSON(w, r, http.StatusOK, health)
}

// pushSchema accepts a new UI description from an editor and fans it out to
// the session's devices. The dispatcher decides full versus incremental.
func (h *Handler) pushSchema(w http.ResponseWriter, r *http.Request) {
	log := logger.FromRequest(r)

	sessionID, ok := utils.GetSessionIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req pushSchemaRequest
	if !readJSON(w, r, &req) {
		return
	}
	if req.Schema == nil {
		http.Error(w, "missing schema", http.StatusBadRequest)
		return
	}

	result, err := h.dispatcher.PushUpdate(sessionID, req.Schema, req.PreserveState)
	if err != nil {
		log.Err(err).Str("session_id", sessionID).Msg("error pushing schema")
		writeError(w, r, statusFromError(err), err)
		return
	}

	writeJSON(w, r, http.StatusOK, result)
}

// extendSession pushes the session expiry forward by the requested duration.
func (h *Handler) extendSession(w http.ResponseWriter, r *http.Request) {
	log := logger.FromRequest(r)

	sessionID, ok := utils.GetSessionIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req extendSessionRequest
	if !readJSON(w, r, &req) {
		return
	}

	extra, err := time.ParseDuration(req.Duration)
	if err != nil || extra <= 0 {
		log.Err(err).Str("duration", req.Duration).Msg("invalid extension duration")
		http.Error(w, "invalid duration", http.StatusBadRequest)
		return
	}

	if err := h.registry.ExtendSession(sessionID, extra); err != nil {
		log.Err(err).Str("session_id", sessionID).Msg("error extending session")
		writeError(w, r, statusFromError(err), err)
		return
	}

	s, err := h.registry.GetSession(sessionID)
	if err != nil {
		writeError(w, r, statusFromError(err), err)
		return
	}

	writeJSON(w, r, http.StatusOK, models.SessionExtension{
		SessionID: sessionID,
		ExpiresAt: s.ExpiresAt(),
	})
}

// deleteSession tears a session down, force-closing its connections.
func (h *Handler) deleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := utils.GetSessionIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	if err := h.registry.DeleteSession(sessionID); err != nil {
		logger.FromRequest(r).Err(err).Str("session_id", sessionID).Msg("error deleting session")
		writeError(w, r, statusFromError(err), err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
