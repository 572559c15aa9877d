package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MKhiriev/go-schema-sync/internal/config"
	"github.com/MKhiriev/go-schema-sync/internal/dispatch"
	"github.com/MKhiriev/go-schema-sync/internal/logger"
	"github.com/MKhiriev/go-schema-sync/internal/session"
	"github.com/MKhiriev/go-schema-sync/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*httptest.Server, *session.Registry, *dispatch.Dispatcher) {
	t.Helper()

	log := logger.Nop()
	registry := session.NewRegistry(session.Settings{
		Lifetime:      8 * time.Hour,
		SweepInterval: 5 * time.Minute,
		MaxDevices:    5,
		MaxEditors:    2,
	}, log)
	dispatcher := dispatch.NewDispatcher(registry, dispatch.Settings{
		PingInterval:   30 * time.Second,
		PongTimeout:    60 * time.Second,
		DeltaThreshold: 10,
	}, log)

	auth := config.Auth{TokenSignKey: "test-sign-key", TokenIssuer: "go-schema-sync-test"}
	h := NewHandler(registry, dispatcher, auth, "test", log)

	srv := httptest.NewServer(h.Init())
	t.Cleanup(srv.Close)

	return srv, registry, dispatcher
}

func createTestSession(t *testing.T, srv *httptest.Server) models.SessionGrant {
	t.Helper()

	resp, err := http.Post(srv.URL+"/api/sessions", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created models.SessionGrant
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	return created
}

func doJSON(t *testing.T, method, url, token string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func testSchema(version string) *models.UIDescription {
	return &models.UIDescription{
		Version: version,
		Metadata: models.DescriptionMeta{
			SourceKind:  "markup",
			GeneratedAt: time.Now().UnixMilli(),
		},
		Nodes: []models.DescriptionNode{
			{ID: "root", Type: "container", Children: []models.DescriptionNode{
				{ID: "title", Type: "text", Props: map[string]any{"value": "hello"}},
			}},
		},
	}
}

func TestCreateSession(t *testing.T) {
	srv, _, _ := newTestServer(t)

	created := createTestSession(t, srv)

	assert.NotEmpty(t, created.SessionID)
	assert.NotEmpty(t, created.Token)
	assert.True(t, created.ExpiresAt.After(created.CreatedAt))
}

func TestSessionInfo(t *testing.T) {
	srv, _, _ := newTestServer(t)
	created := createTestSession(t, srv)

	resp, err := http.Get(srv.URL + "/api/sessions/" + created.SessionID)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var info models.SessionInfo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&info))
	assert.Equal(t, created.SessionID, info.SessionID)
	assert.Empty(t, info.Connections)
	assert.Zero(t, info.Sequence)
}

func TestSessionInfoNotFound(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/sessions/no-such-session")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPushSchemaRequiresToken(t *testing.T) {
	srv, _, _ := newTestServer(t)
	created := createTestSession(t, srv)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/sessions/"+created.SessionID+"/schema", "",
		pushSchemaRequest{Schema: testSchema("1.0.0")})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestPushSchemaForeignTokenRejected(t *testing.T) {
	srv, _, _ := newTestServer(t)
	first := createTestSession(t, srv)
	second := createTestSession(t, srv)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/sessions/"+first.SessionID+"/schema", second.Token,
		pushSchemaRequest{Schema: testSchema("1.0.0")})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestPushSchema(t *testing.T) {
	srv, _, _ := newTestServer(t)
	created := createTestSession(t, srv)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/sessions/"+created.SessionID+"/schema", created.Token,
		pushSchemaRequest{Schema: testSchema("1.0.0"), PreserveState: true})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result models.PushResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.True(t, result.Success)
	assert.Equal(t, models.UpdateFull, result.UpdateType)
	assert.Equal(t, uint64(1), result.SequenceNumber)
	assert.Zero(t, result.DevicesUpdated)
}

func TestPushSchemaInvalidDescription(t *testing.T) {
	srv, _, _ := newTestServer(t)
	created := createTestSession(t, srv)

	broken := testSchema("1.0.0")
	broken.Nodes[0].ID = "" // node ids are mandatory

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/sessions/"+created.SessionID+"/schema", created.Token,
		pushSchemaRequest{Schema: broken})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPushSchemaMissingBody(t *testing.T) {
	srv, _, _ := newTestServer(t)
	created := createTestSession(t, srv)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/sessions/"+created.SessionID+"/schema", created.Token,
		map[string]any{"preserveState": true})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestExtendSession(t *testing.T) {
	srv, _, _ := newTestServer(t)
	created := createTestSession(t, srv)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/sessions/"+created.SessionID+"/extend", created.Token,
		extendSessionRequest{Duration: "1h"})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var extended models.SessionExtension
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&extended))
	assert.Equal(t, created.SessionID, extended.SessionID)
	assert.True(t, extended.ExpiresAt.After(created.ExpiresAt))
}

func TestExtendSessionBadDuration(t *testing.T) {
	srv, _, _ := newTestServer(t)
	created := createTestSession(t, srv)

	for _, duration := range []string{"", "yesterday", "-1h"} {
		resp := doJSON(t, http.MethodPost, srv.URL+"/api/sessions/"+created.SessionID+"/extend", created.Token,
			extendSessionRequest{Duration: duration})
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "duration %q", duration)
	}
}

func TestDeleteSession(t *testing.T) {
	srv, _, _ := newTestServer(t)
	created := createTestSession(t, srv)

	resp := doJSON(t, http.MethodDelete, srv.URL+"/api/sessions/"+created.SessionID, created.Token, nil)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	// the session is gone afterwards
	getResp, err := http.Get(srv.URL + "/api/sessions/" + created.SessionID)
	require.NoError(t, err)
	getResp.Body.Close()
	assert.Equal(t, http.StatusNotFound, getResp.StatusCode)
}

func TestSessionHealthEmpty(t *testing.T) {
	srv, _, _ := newTestServer(t)
	created := createTestSession(t, srv)

	resp, err := http.Get(srv.URL + "/api/sessions/" + created.SessionID + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var health models.SessionHealth
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, created.SessionID, health.SessionID)
	assert.Empty(t, health.Devices)
}

func TestStats(t *testing.T) {
	srv, _, _ := newTestServer(t)
	created := createTestSession(t, srv)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/sessions/"+created.SessionID+"/schema", created.Token,
		pushSchemaRequest{Schema: testSchema("1.0.0")})
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	statsResp, err := http.Get(srv.URL + "/api/stats")
	require.NoError(t, err)
	defer statsResp.Body.Close()
	require.Equal(t, http.StatusOK, statsResp.StatusCode)

	var stats models.BrokerStats
	require.NoError(t, json.NewDecoder(statsResp.Body).Decode(&stats))
	assert.Equal(t, 1, stats.ActiveSessions)
	assert.Equal(t, uint64(1), stats.TotalUpdates)
}

func TestBuildVersion(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/version")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var v versionResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	assert.Equal(t, "test", v.Version)
	assert.Equal(t, models.ProtocolVersion, v.ProtocolVersion)
}

func TestTraceIDHeaderEchoed(t *testing.T) {
	srv, _, _ := newTestServer(t)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/version", nil)
	require.NoError(t, err)
	req.Header.Set(syncTraceHeader, "trace-123")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "trace-123", resp.Header.Get(syncTraceHeader))
}

func TestErrorBodyCarriesTraceID(t *testing.T) {
	srv, _, _ := newTestServer(t)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/sessions/no-such-session", nil)
	require.NoError(t, err)
	req.Header.Set(syncTraceHeader, "trace-err-7")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	var body errorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.NotEmpty(t, body.Error)
	assert.Equal(t, "trace-err-7", body.TraceID)
}
