package models

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// SessionToken wraps the JWT issued when a session is created. Mutating
// control-API calls (push, extend, delete) present it as a bearer token;
// it is opaque to clients.
//
// SignedString holds the compact serialized form (header.payload.signature)
// ready to be transmitted in HTTP headers.
type SessionToken struct {
	// Token is the underlying JWT used for signing and claim inspection.
	// Excluded from JSON because only the compact form leaves the broker.
	*jwt.Token `json:"-"`

	// RegisteredClaims provides the standard claim set (sub, exp, iat, iss).
	jwt.RegisteredClaims

	// SignedString is the compact JWS representation of the token.
	SignedString string `json:"-"`

	// SessionID is a cached copy of the "sub" claim.
	SessionID string `json:"-"`
}

// GetSessionID extracts the session identifier from the token's "sub" claim.
func (t *SessionToken) GetSessionID() (string, error) {
	sessionID, err := t.GetSubject()
	if err != nil {
		return "", fmt.Errorf("error extracting session id from token: %w", err)
	}
	if sessionID == "" {
		return "", fmt.Errorf("empty subject in session token")
	}
	return sessionID, nil
}

// String returns the compact JWS serialization of the token.
// It implements the [fmt.Stringer] interface.
func (t *SessionToken) String() string {
	return t.SignedString
}
