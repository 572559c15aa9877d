package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/MKhiriev/go-schema-sync/internal/logger"
	"github.com/MKhiriev/go-schema-sync/internal/utils"
	"github.com/go-chi/chi/v5"
)

// requireSessionToken is an HTTP middleware enforcing session-token
// authentication on mutating control calls.
//
// It extracts the bearer token from the "Authorization" header, validates
// the signature, issuer and expiry, and checks that the token's subject
// matches the {sessionID} route parameter — a token for one session can
// never act on another. On success the session id is stored in the request
// context under [utils.SessionIDCtxKey].
//
// Rejections are 401 Unauthorized for absent/invalid tokens and
// 403 Forbidden for a valid token presented against a different session.
func (h *Handler) requireSessionToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromRequest(r)

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			log.Err(ErrEmptyAuthorizationHeader).Send()
			http.Error(w, ErrEmptyAuthorizationHeader.Error(), http.StatusUnauthorized)
			return
		}

		tokenString, err := getTokenFromAuthHeader(authHeader)
		if err != nil {
			log.Err(err).Send()
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}

		token, err := utils.ValidateSessionToken(tokenString, h.auth.TokenSignKey, h.auth.TokenIssuer)
		if err != nil {
			log.Err(err).Msg("error validating session token")
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		if sessionID := chi.URLParam(r, "sessionID"); sessionID != token.SessionID {
			log.Warn().
				Str("token_session", token.SessionID).
				Str("url_session", sessionID).
				Msg("session token presented against another session")
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
			return
		}

		// Store the authenticated session id so downstream handlers can
		// retrieve it without re-parsing the token.
		ctx := context.WithValue(r.Context(), utils.SessionIDCtxKey, token.SessionID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// getTokenFromAuthHeader extracts the raw token from a "Bearer <token>"
// authorization header value.
func getTokenFromAuthHeader(authHeader string) (string, error) {
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", ErrInvalidAuthorizationHeader
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", ErrEmptyToken
	}

	return token, nil
}
