package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testIssuer  = "go-schema-sync"
	testSignKey = "test-sign-key"
)

func TestGenerateSessionToken(t *testing.T) {
	expires := time.Now().Add(8 * time.Hour)

	token, err := GenerateSessionToken(testIssuer, "session-1", expires, testSignKey)
	require.NoError(t, err)
	assert.NotEmpty(t, token.SignedString)
	assert.Equal(t, "session-1", token.SessionID)
}

func TestGenerateSessionToken_InvalidParams(t *testing.T) {
	expires := time.Now().Add(time.Hour)

	_, err := GenerateSessionToken("", "session-1", expires, testSignKey)
	assert.Error(t, err)

	_, err = GenerateSessionToken(testIssuer, "", expires, testSignKey)
	assert.Error(t, err)

	_, err = GenerateSessionToken(testIssuer, "session-1", time.Time{}, testSignKey)
	assert.Error(t, err)

	_, err = GenerateSessionToken(testIssuer, "session-1", expires, "")
	assert.Error(t, err)
}

func TestValidateSessionToken_RoundTrip(t *testing.T) {
	expires := time.Now().Add(time.Hour)
	issued, err := GenerateSessionToken(testIssuer, "session-42", expires, testSignKey)
	require.NoError(t, err)

	parsed, err := ValidateSessionToken(issued.SignedString, testSignKey, testIssuer)
	require.NoError(t, err)
	assert.Equal(t, "session-42", parsed.SessionID)
}

func TestValidateSessionToken_Failures(t *testing.T) {
	expires := time.Now().Add(time.Hour)
	issued, err := GenerateSessionToken(testIssuer, "session-42", expires, testSignKey)
	require.NoError(t, err)

	_, err = ValidateSessionToken(issued.SignedString, "wrong-key", testIssuer)
	assert.Error(t, err, "wrong sign key must fail validation")

	_, err = ValidateSessionToken(issued.SignedString, testSignKey, "someone-else")
	assert.Error(t, err, "wrong issuer must fail validation")

	expired, err := GenerateSessionToken(testIssuer, "session-42", time.Now().Add(-time.Minute), testSignKey)
	require.NoError(t, err)
	_, err = ValidateSessionToken(expired.SignedString, testSignKey, testIssuer)
	assert.Error(t, err, "expired token must fail validation")
}
