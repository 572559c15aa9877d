package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/MKhiriev/go-schema-sync/internal/dispatch"
	"github.com/MKhiriev/go-schema-sync/internal/handler/ws"
	"github.com/MKhiriev/go-schema-sync/internal/logger"
	"github.com/MKhiriev/go-schema-sync/internal/protocol"
	"github.com/MKhiriev/go-schema-sync/internal/session"
	"github.com/MKhiriev/go-schema-sync/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBroker(t *testing.T) (*httptest.Server, *session.Registry, *dispatch.Dispatcher) {
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
	gateway := ws.NewGateway(registry, dispatcher, ws.Settings{HandshakeTimeout: 2 * time.Second}, log)

	srv := httptest.NewServer(http.HandlerFunc(gateway.Handle))
	t.Cleanup(srv.Close)

	return srv, registry, dispatcher
}

func testProfile(srv *httptest.Server, sessionID string) DeviceProfile {
	return DeviceProfile{
		BrokerURL:     srv.URL,
		SessionID:     sessionID,
		DeviceID:      "dev-under-test",
		Platform:      "terminal",
		Role:          models.RoleDevice,
		ClientVersion: "0.1.0",
	}
}

func fastSettings() Settings {
	return Settings{
		HandshakeTimeout: 2 * time.Second,
		BackoffMin:       10 * time.Millisecond,
		BackoffMax:       50 * time.Millisecond,
	}
}

func startManager(t *testing.T, m *ConnectionManager) (context.CancelFunc, <-chan error) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- m.Run(ctx) }()
	t.Cleanup(cancel)
	return cancel, runErr
}

func waitEnvelope(t *testing.T, m *ConnectionManager, want models.MessageType) models.Envelope {
	t.Helper()

	deadline := time.After(3 * time.Second)
	for {
		select {
		case env, ok := <-m.Inbound():
			require.True(t, ok, "inbound closed while waiting for %s", want)
			if env.Type == want {
				return env
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s envelope", want)
		}
	}
}

func clientSchema() *models.UIDescription {
	return &models.UIDescription{
		Version: "1.0.0",
		Nodes: []models.DescriptionNode{
			{ID: "root", Type: "container", Children: []models.DescriptionNode{
				{ID: "label", Type: "text", Props: map[string]any{"value": "hello"}},
			}},
		},
	}
}

func TestLoadProfile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "profile.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
broker_url  = "localhost:8080"
session_id  = "session-1"
device_name = "kitchen-tablet"
`), 0o600))

	profile, err := LoadProfile(path)
	require.NoError(t, err)

	assert.Equal(t, "localhost:8080", profile.BrokerURL)
	assert.Equal(t, "session-1", profile.SessionID)
	assert.Equal(t, "kitchen-tablet", profile.DeviceName)
	assert.NotEmpty(t, profile.DeviceID, "missing device_id gets generated")
	assert.Equal(t, "terminal", profile.Platform)
	assert.Equal(t, models.RoleDevice, profile.Role)
}

func TestLoadProfileMissingSession(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "profile.toml")
	require.NoError(t, os.WriteFile(path, []byte(`broker_url = "localhost:8080"`), 0o600))

	_, err := LoadProfile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session_id")
}

func TestWebSocketURL(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "bare host", in: "localhost:8080", want: "ws://localhost:8080/ws"},
		{name: "http scheme", in: "http://broker:9000", want: "ws://broker:9000/ws"},
		{name: "https scheme", in: "https://broker.example.com", want: "wss://broker.example.com/ws"},
		{name: "ws scheme kept", in: "ws://broker:9000", want: "ws://broker:9000/ws"},
		{name: "bad scheme", in: "ftp://broker", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DeviceProfile{BrokerURL: tt.in}
			got, err := p.WebSocketURL()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConnectDeliversConnectedEnvelope(t *testing.T) {
	srv, registry, _ := newTestBroker(t)
	s, err := registry.CreateSession()
	require.NoError(t, err)

	m := NewConnectionManager(testProfile(srv, s.ID), fastSettings(), logger.Nop())
	startManager(t, m)

	env := waitEnvelope(t, m, models.MessageConnected)

	var connected models.ConnectedPayload
	require.NoError(t, protocol.DecodePayload(env, &connected))
	assert.NotEmpty(t, connected.ConnectionID)
	assert.Equal(t, connected.ConnectionID, m.ConnectionID())
	assert.Equal(t, StateConnected, m.State())
	assert.True(t, m.Capabilities().IncrementalUpdates)
}

func TestPushedUpdatesArriveInOrder(t *testing.T) {
	srv, registry, dispatcher := newTestBroker(t)
	s, err := registry.CreateSession()
	require.NoError(t, err)

	m := NewConnectionManager(testProfile(srv, s.ID), fastSettings(), logger.Nop())
	startManager(t, m)
	waitEnvelope(t, m, models.MessageConnected)

	first := clientSchema()
	second := clientSchema()
	second.Nodes[0].Children[0].Props["value"] = "changed"

	_, err = dispatcher.PushUpdate(s.ID, first, false)
	require.NoError(t, err)
	_, err = dispatcher.PushUpdate(s.ID, second, false)
	require.NoError(t, err)

	var sequences []uint64
	for len(sequences) < 2 {
		env := waitEnvelope(t, m, models.MessageUpdate)
		var payload models.UpdatePayload
		require.NoError(t, protocol.DecodePayload(env, &payload))
		sequences = append(sequences, payload.SequenceNumber)
	}

	assert.Equal(t, []uint64{1, 2}, sequences)
}

func TestSendReachesBroker(t *testing.T) {
	srv, registry, dispatcher := newTestBroker(t)
	s, err := registry.CreateSession()
	require.NoError(t, err)

	m := NewConnectionManager(testProfile(srv, s.ID), fastSettings(), logger.Nop())
	startManager(t, m)
	waitEnvelope(t, m, models.MessageConnected)

	env, err := m.NewEnvelope(models.MessageEvent, models.EventPayload{Action: "save"})
	require.NoError(t, err)
	require.NoError(t, m.Send(env))

	// no editor is connected, but the event still counts
	assert.Eventually(t, func() bool {
		return dispatcher.Stats().TotalEvents == 1
	}, 3*time.Second, 20*time.Millisecond)
}

func TestUnknownSessionIsTerminal(t *testing.T) {
	srv, _, _ := newTestBroker(t)

	m := NewConnectionManager(testProfile(srv, "no-such-session"), fastSettings(), logger.Nop())
	_, runErr := startManager(t, m)

	select {
	case err := <-runErr:
		assert.ErrorIs(t, err, ErrNeedsReauthorization)
		assert.Equal(t, StateNeedsReauthorization, m.State())
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not terminate on session rejection")
	}
}

func TestReconnectAfterSocketDrop(t *testing.T) {
	srv, registry, _ := newTestBroker(t)
	s, err := registry.CreateSession()
	require.NoError(t, err)

	m := NewConnectionManager(testProfile(srv, s.ID), fastSettings(), logger.Nop())
	startManager(t, m)
	waitEnvelope(t, m, models.MessageConnected)

	firstID := m.ConnectionID()

	// force-close the broker side of the socket
	conns := s.Connections()
	require.Len(t, conns, 1)
	require.NoError(t, conns[0].Sender.Close())

	// the manager reconnects under a fresh connection id
	env := waitEnvelope(t, m, models.MessageConnected)
	var connected models.ConnectedPayload
	require.NoError(t, protocol.DecodePayload(env, &connected))
	assert.NotEqual(t, firstID, connected.ConnectionID)
	assert.Equal(t, StateConnected, m.State())
}

func TestSendQueueBounded(t *testing.T) {
	profile := DeviceProfile{
		BrokerURL: "localhost:1", // never dialed in this test
		SessionID: "session-1",
		DeviceID:  "dev-1",
	}
	settings := fastSettings()
	settings.OutboundQueue = 2

	m := NewConnectionManager(profile, settings, logger.Nop())

	env, err := m.NewEnvelope(models.MessagePing, nil)
	require.NoError(t, err)

	require.NoError(t, m.Send(env))
	require.NoError(t, m.Send(env))
	assert.ErrorIs(t, m.Send(env), ErrQueueFull)
}

func TestStateTransitionsReported(t *testing.T) {
	srv, registry, _ := newTestBroker(t)
	s, err := registry.CreateSession()
	require.NoError(t, err)

	m := NewConnectionManager(testProfile(srv, s.ID), fastSettings(), logger.Nop())

	seen := make(chan State, 16)
	m.OnStateChange(func(st State) { seen <- st })

	startManager(t, m)
	waitEnvelope(t, m, models.MessageConnected)

	var order []State
	deadline := time.After(2 * time.Second)
	for len(order) < 3 {
		select {
		case st := <-seen:
			order = append(order, st)
		case <-deadline:
			t.Fatalf("expected 3 transitions, saw %v", order)
		}
	}

	assert.Equal(t, []State{StateConnecting, StateAwaitingHandshake, StateConnected}, order)
}
