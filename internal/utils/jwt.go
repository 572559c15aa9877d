package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/MKhiriev/go-schema-sync/models"
	"github.com/golang-jwt/jwt/v5"
)

// GenerateSessionToken creates a signed HMAC-SHA256 JWT scoped to one session.
//
// The token includes the following standard claims:
//   - Issuer    (iss): identifies the broker that issued the token
//   - Subject   (sub): the session id
//   - IssuedAt  (iat): the current time
//   - ExpiresAt (exp): the session's expiry instant, so a token never
//     outlives its session
//
// All parameters are required. Returns an error if any of them are empty
// or zero.
func GenerateSessionToken(issuer, sessionID string, expiresAt time.Time, signKey string) (models.SessionToken, error) {
	if issuer == "" || sessionID == "" || expiresAt.IsZero() || signKey == "" {
		return models.SessionToken{}, errors.New("invalid params for generating session token")
	}

	now := time.Now()
	claims := &jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   sessionID,
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		IssuedAt:  jwt.NewNumericDate(now),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(signKey))
	if err != nil {
		return models.SessionToken{}, fmt.Errorf("error occurred during signing session token: %w", err)
	}

	return models.SessionToken{Token: token, SignedString: tokenString, SessionID: sessionID}, nil
}

// ValidateSessionToken validates the given token string and extracts the
// session id it was issued for.
//
// Validation includes:
//   - Signature verification using the provided sign key
//   - Issuer (iss) claim check against the provided tokenIssuer
//   - Expiration (exp) claim check
//   - Subject (sub) claim presence
func ValidateSessionToken(tokenString, tokenSignKey, tokenIssuer string) (models.SessionToken, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.SessionToken{}, func(token *jwt.Token) (any, error) {
		return []byte(tokenSignKey), nil
	}, jwt.WithIssuer(tokenIssuer))
	if err != nil {
		return models.SessionToken{}, fmt.Errorf("error occurred validating session token: %w", err)
	}

	claims, ok := token.Claims.(*models.SessionToken)
	if !ok {
		return models.SessionToken{}, errors.New("unexpected claims type in session token")
	}

	sessionID, err := claims.GetSessionID()
	if err != nil {
		return models.SessionToken{}, err
	}

	return models.SessionToken{Token: token, SignedString: tokenString, SessionID: sessionID}, nil
}
