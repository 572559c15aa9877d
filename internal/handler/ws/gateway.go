// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package ws is the broker's WebSocket gateway. It upgrades inbound
// connections, runs the connect/connected handshake, registers the peer with
// its session, and then pumps inbound envelopes to the dispatcher until the
// connection dies.
package ws

import (
	"fmt"
	"net/http"
	"time"

	"github.com/MKhiriev/go-schema-sync/internal/dispatch"
	"github.com/MKhiriev/go-schema-sync/internal/logger"
	"github.com/MKhiriev/go-schema-sync/internal/protocol"
	"github.com/MKhiriev/go-schema-sync/internal/session"
	"github.com/MKhiriev/go-schema-sync/internal/utils"
	"github.com/MKhiriev/go-schema-sync/models"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Settings carries the gateway tunables.
type Settings struct {
	// HandshakeTimeout bounds the wait for the connect message after the
	// upgrade. Sockets that never introduce themselves are dropped.
	HandshakeTimeout time.Duration

	// WriteTimeout is the per-message write deadline.
	WriteTimeout time.Duration

	// ReadLimit caps the size of one inbound message in bytes.
	ReadLimit int64
}

const (
	DefaultHandshakeTimeout = 30 * time.Second
	DefaultWriteTimeout     = 10 * time.Second
	DefaultReadLimit        = 1 << 20 // 1 MiB
)

// Gateway owns the /ws endpoint.
type Gateway struct {
	registry   *session.Registry
	dispatcher *dispatch.Dispatcher
	settings   Settings
	ids        *utils.UUIDGenerator
	upgrader   websocket.Upgrader
	logger     *logger.Logger
}

// NewGateway constructs a Gateway. Zero settings fields get defaults.
func NewGateway(registry *session.Registry, dispatcher *dispatch.Dispatcher, settings Settings, logger *logger.Logger) *Gateway {
	if settings.HandshakeTimeout == 0 {
		settings.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if settings.WriteTimeout == 0 {
		settings.WriteTimeout = DefaultWriteTimeout
	}
	if settings.ReadLimit == 0 {
		settings.ReadLimit = DefaultReadLimit
	}

	logger.Info().
		Dur("handshake_timeout", settings.HandshakeTimeout).
		Dur("write_timeout", settings.WriteTimeout).
		Int64("read_limit", settings.ReadLimit).
		Msg("websocket gateway created")

	return &Gateway{
		registry:   registry,
		dispatcher: dispatcher,
		settings:   settings,
		ids:        utils.NewUUIDGenerator(),
		upgrader: websocket.Upgrader{
			HandshakeTimeout: settings.HandshakeTimeout,
			// Origin checks are the deployment proxy's concern; sessions are
			// protected by their unguessable ids.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Handle upgrades the request and serves the connection until it closes.
// Mounted at GET /ws.
func (g *Gateway) Handle(w http.ResponseWriter, r *http.Request) {
	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error response.
		g.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	ws.SetReadLimit(g.settings.ReadLimit)

	sender := newConn(ws, g.settings.WriteTimeout)

	joined, sessionID, err := g.handshake(ws, sender)
	if err != nil {
		g.logger.Warn().Err(err).Msg("websocket handshake failed")
		g.sendError(sender, sessionID, err)
		_ = sender.Close()
		return
	}

	log := g.logger.GetChildLogger()
	log.UpdateContext(joined.logContext)
	log.Info().Msg("connection established")

	g.readLoop(ws, sender, joined, log)

	g.registry.RemoveDevice(joined.sessionID, joined.connectionID)
	_ = sender.Close()
	log.Info().Msg("connection closed")
}

// joinedConn is the outcome of a successful handshake.
type joinedConn struct {
	sessionID    string
	connectionID string
	role         models.Role
	conn         *session.Connection
}

func (j *joinedConn) logContext(c zerolog.Context) zerolog.Context {
	return c.Str("session_id", j.sessionID).
		Str("connection_id", j.connectionID).
		Str("role", string(j.role))
}

// handshake reads the connect message, grades protocol compatibility,
// registers the connection with its session, and replies connected. The
// reply carries the session's cached schema (devices render immediately on
// join) and the capability set granted for the peer's protocol version.
// The returned session id is set as soon as it is known so that handshake
// failures can still be reported against the session the peer named.
func (g *Gateway) handshake(ws *websocket.Conn, sender *conn) (*joinedConn, string, error) {
	if err := ws.SetReadDeadline(time.Now().Add(g.settings.HandshakeTimeout)); err != nil {
		return nil, "", err
	}

	_, raw, err := ws.ReadMessage()
	if err != nil {
		return nil, "", fmt.Errorf("error reading connect message: %w", err)
	}

	env, err := protocol.Deserialize(raw)
	if err != nil {
		return nil, "", err
	}
	if env.Type != models.MessageConnect {
		return nil, env.SessionID, fmt.Errorf("%w: expected connect, got %s", protocol.ErrInvalidMessage, env.Type)
	}

	compat, err := protocol.CheckProtocolVersion(env.Version)
	if err != nil {
		return nil, env.SessionID, err
	}

	var payload models.ConnectPayload
	if err := protocol.DecodePayload(env, &payload); err != nil {
		return nil, env.SessionID, err
	}

	role := payload.Role
	if role == "" {
		role = models.RoleDevice
	}

	connectionID := g.ids.Generate()
	c, err := g.registry.AddDevice(env.SessionID, models.DeviceConnection{
		ConnectionID:  connectionID,
		DeviceID:      payload.DeviceID,
		Platform:      payload.Platform,
		DeviceName:    payload.DeviceName,
		ClientVersion: payload.ClientVersion,
		Role:          role,
	}, sender)
	if err != nil {
		return nil, env.SessionID, err
	}

	joined := &joinedConn{
		sessionID:    env.SessionID,
		connectionID: connectionID,
		role:         role,
		conn:         c,
	}

	connected := models.ConnectedPayload{
		ConnectionID: connectionID,
		Capabilities: protocol.ReducedCapabilities(compat),
	}
	if role == models.RoleDevice {
		if s, err := g.registry.GetSession(env.SessionID); err == nil {
			connected.InitialSchema = s.CachedSchema()
		}
	}

	reply, err := protocol.NewEnvelope(models.MessageConnected, env.SessionID, connected)
	if err != nil {
		g.registry.RemoveDevice(joined.sessionID, joined.connectionID)
		return nil, env.SessionID, err
	}
	if err := sender.Send(reply); err != nil {
		g.registry.RemoveDevice(joined.sessionID, joined.connectionID)
		return nil, env.SessionID, fmt.Errorf("error sending connected reply: %w", err)
	}

	// Handshake done; from here on liveness is the heartbeat's job.
	if err := ws.SetReadDeadline(time.Time{}); err != nil {
		g.registry.RemoveDevice(joined.sessionID, joined.connectionID)
		return nil, env.SessionID, err
	}

	return joined, env.SessionID, nil
}

// readLoop pumps inbound envelopes until the socket dies. Malformed messages
// are answered with a recoverable error envelope; the connection survives.
func (g *Gateway) readLoop(ws *websocket.Conn, sender *conn, joined *joinedConn, log *logger.Logger) {
	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn().Err(err).Msg("connection read error")
			}
			return
		}

		env, err := protocol.Deserialize(raw)
		if err != nil {
			log.Warn().Err(err).Msg("malformed inbound message")
			g.sendError(sender, joined.sessionID, err)
			continue
		}

		if err := g.route(sender, joined, env, log); err != nil {
			log.Warn().Err(err).Str("message_type", string(env.Type)).Msg("error handling inbound message")
			g.sendError(sender, joined.sessionID, err)
		}
	}
}

// route dispatches one inbound envelope by type.
func (g *Gateway) route(sender *conn, joined *joinedConn, env models.Envelope, log *logger.Logger) error {
	switch env.Type {
	case models.MessagePing:
		joined.conn.TouchPing(time.Now())
		pong, err := protocol.NewEnvelope(models.MessagePong, joined.sessionID, models.PongPayload{
			ServerTime: time.Now().UnixMilli(),
		})
		if err != nil {
			return err
		}
		return sender.Send(pong)

	case models.MessagePong:
		// Reply to a heartbeat ping sent by the dispatcher.
		joined.conn.TouchPing(time.Now())
		return nil

	case models.MessageAck:
		var ack models.AckPayload
		if err := protocol.DecodePayload(env, &ack); err != nil {
			return err
		}
		joined.conn.TouchAck(ack.SequenceNumber)
		log.Debug().
			Uint64("sequence", ack.SequenceNumber).
			Bool("success", ack.Success).
			Int64("apply_time_ms", ack.ApplyTime).
			Str("apply_error", ack.Error).
			Msg("update acknowledged")
		return nil

	case models.MessageEvent:
		var event models.EventPayload
		if err := protocol.DecodePayload(env, &event); err != nil {
			return err
		}
		event.DeviceID = joined.conn.Info().DeviceID

		forward, err := protocol.NewEnvelope(models.MessageEvent, joined.sessionID, event)
		if err != nil {
			return err
		}
		delivered, err := g.dispatcher.ForwardEvent(joined.sessionID, joined.connectionID, forward)
		if err != nil {
			return err
		}
		log.Debug().
			Str("action", event.Action).
			Int("editors_notified", delivered).
			Msg("event forwarded")
		return nil

	case models.MessageReload:
		var reload models.ReloadPayload
		if err := protocol.DecodePayload(env, &reload); err != nil {
			return err
		}
		log.Info().
			Str("reason", string(reload.Reason)).
			Str("reload_error", reload.Error).
			Msg("reload requested")
		return g.dispatcher.PushUpdateToDevice(joined.sessionID, joined.connectionID, nil)

	default:
		return fmt.Errorf("%w: unexpected %s message from peer", protocol.ErrInvalidMessage, env.Type)
	}
}

// sendError best-effort delivers an error envelope. Failures here mean the
// socket is already gone.
func (g *Gateway) sendError(sender *conn, sessionID string, cause error) {
	if sessionID == "" {
		// The peer never named a session; the envelope still needs a
		// non-empty scope to pass serialization.
		sessionID = "unknown"
	}
	env, err := protocol.NewEnvelope(models.MessageError, sessionID, errorPayloadFor(cause))
	if err != nil {
		return
	}
	_ = sender.Send(env)
}
