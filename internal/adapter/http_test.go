package adapter

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MKhiriev/go-schema-sync/internal/config"
	"github.com/MKhiriev/go-schema-sync/internal/dispatch"
	httphandler "github.com/MKhiriev/go-schema-sync/internal/handler/http"
	"github.com/MKhiriev/go-schema-sync/internal/logger"
	"github.com/MKhiriev/go-schema-sync/internal/session"
	"github.com/MKhiriev/go-schema-sync/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newBrokerClient spins up a real broker control API and points a client
// at it, so the adapter is exercised against the actual wire contract.
func newBrokerClient(t *testing.T) BrokerClient {
	t.Helper()

	log := logger.Nop()
	registry := session.NewRegistry(session.Settings{
		Lifetime:      time.Hour,
		SweepInterval: time.Minute,
		MaxDevices:    5,
		MaxEditors:    2,
	}, log)
	dispatcher := dispatch.NewDispatcher(registry, dispatch.Settings{
		PingInterval:   30 * time.Second,
		PongTimeout:    60 * time.Second,
		DeltaThreshold: 10,
	}, log)

	auth := config.Auth{TokenSignKey: "adapter-test-key", TokenIssuer: "go-schema-sync-test"}
	h := httphandler.NewHandler(registry, dispatcher, auth, "test", log)

	srv := httptest.NewServer(h.Init())
	t.Cleanup(srv.Close)

	client, err := NewHTTPBrokerClient(srv.URL, 5*time.Second, log)
	require.NoError(t, err)
	return client
}

func adapterSchema() *models.UIDescription {
	return &models.UIDescription{
		Version: "1.0.0",
		Nodes: []models.DescriptionNode{
			{ID: "root", Type: "container", Children: []models.DescriptionNode{
				{ID: "label", Type: "text", Props: map[string]any{"value": "hello"}},
			}},
		},
	}
}

func TestNormalizeBaseURL(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "bare host", in: "localhost:8080", want: "http://localhost:8080"},
		{name: "full url", in: "https://broker.example.com/", want: "https://broker.example.com"},
		{name: "surrounding space", in: "  localhost:8080  ", want: "http://localhost:8080"},
		{name: "empty", in: "", wantErr: true},
		{name: "scheme only", in: "http://", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := normalizeBaseURL(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCreateSessionStoresToken(t *testing.T) {
	client := newBrokerClient(t)

	grant, err := client.CreateSession(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, grant.SessionID)
	assert.NotEmpty(t, grant.Token)
	assert.Equal(t, grant.Token, client.Token())
}

func TestPushSchemaRoundTrip(t *testing.T) {
	client := newBrokerClient(t)

	grant, err := client.CreateSession(context.Background())
	require.NoError(t, err)

	result, err := client.PushSchema(context.Background(), grant.SessionID, adapterSchema(), true)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, models.UpdateFull, result.UpdateType)
	assert.Equal(t, uint64(1), result.SequenceNumber)

	info, err := client.SessionInfo(context.Background(), grant.SessionID)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), info.Sequence)
}

func TestPushSchemaWithoutTokenUnauthorized(t *testing.T) {
	client := newBrokerClient(t)

	grant, err := client.CreateSession(context.Background())
	require.NoError(t, err)

	client.SetToken("")

	_, err = client.PushSchema(context.Background(), grant.SessionID, adapterSchema(), false)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestPushSchemaForeignSessionForbidden(t *testing.T) {
	client := newBrokerClient(t)

	first, err := client.CreateSession(context.Background())
	require.NoError(t, err)
	_, err = client.CreateSession(context.Background())
	require.NoError(t, err) // token now belongs to the second session

	_, err = client.PushSchema(context.Background(), first.SessionID, adapterSchema(), false)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestSessionInfoUnknownSession(t *testing.T) {
	client := newBrokerClient(t)

	_, err := client.SessionInfo(context.Background(), "no-such-session")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestExtendAndDeleteSession(t *testing.T) {
	client := newBrokerClient(t)

	grant, err := client.CreateSession(context.Background())
	require.NoError(t, err)

	extension, err := client.ExtendSession(context.Background(), grant.SessionID, time.Hour)
	require.NoError(t, err)
	assert.True(t, extension.ExpiresAt.After(grant.ExpiresAt))

	require.NoError(t, client.DeleteSession(context.Background(), grant.SessionID))

	_, err = client.SessionInfo(context.Background(), grant.SessionID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestStats(t *testing.T) {
	client := newBrokerClient(t)

	grant, err := client.CreateSession(context.Background())
	require.NoError(t, err)

	_, err = client.PushSchema(context.Background(), grant.SessionID, adapterSchema(), false)
	require.NoError(t, err)

	stats, err := client.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.ActiveSessions)
	assert.Equal(t, uint64(1), stats.TotalUpdates)
}
