package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSON_Success(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "config.json")

	jsonBody := `{
		"broker": {
			"http_address": "localhost:8080",
			"request_timeout": "30s",
			"ping_interval": "15s",
			"pong_timeout": "45s",
			"delta_threshold": 7
		},
		"sessions": {
			"lifetime": "8h",
			"sweep_interval": "5m",
			"max_devices": 4,
			"max_editors": 1
		},
		"auth": {
			"token_sign_key": "jwt_secret",
			"token_issuer": "test_issuer"
		}
	}`

	require.NoError(t, os.WriteFile(p, []byte(jsonBody), 0o600))

	cfg, err := parseJSON(p)

	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "localhost:8080", cfg.Broker.HTTPAddress)
	assert.Equal(t, 30*time.Second, cfg.Broker.RequestTimeout)
	assert.Equal(t, 15*time.Second, cfg.Broker.PingInterval)
	assert.Equal(t, 45*time.Second, cfg.Broker.PongTimeout)
	assert.Equal(t, 7, cfg.Broker.DeltaThreshold)

	assert.Equal(t, 8*time.Hour, cfg.Sessions.Lifetime)
	assert.Equal(t, 5*time.Minute, cfg.Sessions.SweepInterval)
	assert.Equal(t, 4, cfg.Sessions.MaxDevices)
	assert.Equal(t, 1, cfg.Sessions.MaxEditors)

	assert.Equal(t, "jwt_secret", cfg.Auth.TokenSignKey)
	assert.Equal(t, "test_issuer", cfg.Auth.TokenIssuer)
}

func TestParseJSON_NumericDurations(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "config.json")

	// raw nanosecond numbers are accepted alongside "30s" strings
	require.NoError(t, os.WriteFile(p, []byte(`{"broker": {"request_timeout": 30000000000}}`), 0o600))

	cfg, err := parseJSON(p)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.Broker.RequestTimeout)
}

func TestParseJSON_FileNotFound(t *testing.T) {
	cfg, err := parseJSON("definitely-does-not-exist.json")

	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "error reading a json file")
}

func TestParseJSON_InvalidJSON(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(p, []byte(`{ this is not json }`), 0o600))

	cfg, err := parseJSON(p)

	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "error decoding json configs")
}

func TestParseJSON_BadDuration(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "bad-duration.json")
	require.NoError(t, os.WriteFile(p, []byte(`{"broker": {"ping_interval": "soon"}}`), 0o600))

	_, err := parseJSON(p)
	assert.Error(t, err)
}
