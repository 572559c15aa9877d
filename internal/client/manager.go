// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package client implements the device runtime's connection layer: a
// reconnecting WebSocket connection manager with a bounded outbound queue
// and ordered inbound delivery, plus the TOML device profile it is
// configured from.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MKhiriev/go-schema-sync/internal/logger"
	"github.com/MKhiriev/go-schema-sync/internal/protocol"
	"github.com/MKhiriev/go-schema-sync/models"
	"github.com/gorilla/websocket"
)

// Settings carries the connection manager tunables. Zero fields get
// defaults.
type Settings struct {
	// HandshakeTimeout bounds the wait for the broker's connected reply.
	HandshakeTimeout time.Duration

	// WriteTimeout is the per-message write deadline.
	WriteTimeout time.Duration

	// OutboundQueue caps the number of messages buffered while the writer
	// catches up (or the connection is down).
	OutboundQueue int

	// InboundQueue caps the inbound delivery channel. Delivery is ordered;
	// a slow consumer backpressures the read loop, never reorders.
	InboundQueue int

	// BackoffMin and BackoffMax bound the exponential reconnect delay.
	BackoffMin time.Duration
	BackoffMax time.Duration
}

const (
	DefaultHandshakeTimeout = 30 * time.Second
	DefaultWriteTimeout     = 10 * time.Second
	DefaultOutboundQueue    = 64
	DefaultInboundQueue     = 64
	DefaultBackoffMin       = 500 * time.Millisecond
	DefaultBackoffMax       = 30 * time.Second
)

func (s *Settings) applyDefaults() {
	if s.HandshakeTimeout == 0 {
		s.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if s.WriteTimeout == 0 {
		s.WriteTimeout = DefaultWriteTimeout
	}
	if s.OutboundQueue == 0 {
		s.OutboundQueue = DefaultOutboundQueue
	}
	if s.InboundQueue == 0 {
		s.InboundQueue = DefaultInboundQueue
	}
	if s.BackoffMin == 0 {
		s.BackoffMin = DefaultBackoffMin
	}
	if s.BackoffMax == 0 {
		s.BackoffMax = DefaultBackoffMax
	}
}

// ConnectionManager owns the client side of the sync socket. It dials,
// handshakes, pumps traffic, and reconnects with bounded exponential backoff
// until its context is canceled or the broker rejects the session terminally.
//
// Inbound envelopes (including the connected handshake reply, which carries
// the initial schema) are delivered in arrival order on Inbound(). Broker
// heartbeat pings are answered internally and never surface.
type ConnectionManager struct {
	profile  DeviceProfile
	settings Settings
	logger   *logger.Logger

	dialer *websocket.Dialer

	state atomic.Int32

	outbound chan models.Envelope
	inbound  chan models.Envelope

	mu           sync.RWMutex
	connectionID string
	capabilities models.Capabilities
	onState      func(State)
}

// NewConnectionManager constructs a manager for the given device profile.
func NewConnectionManager(profile DeviceProfile, settings Settings, logger *logger.Logger) *ConnectionManager {
	settings.applyDefaults()

	return &ConnectionManager{
		profile:  profile,
		settings: settings,
		logger:   logger,
		dialer: &websocket.Dialer{
			HandshakeTimeout: settings.HandshakeTimeout,
		},
		outbound: make(chan models.Envelope, settings.OutboundQueue),
		inbound:  make(chan models.Envelope, settings.InboundQueue),
	}
}

// State returns the current lifecycle state.
func (m *ConnectionManager) State() State {
	return State(m.state.Load())
}

// OnStateChange registers a callback invoked on every state transition.
// Must be called before Run.
func (m *ConnectionManager) OnStateChange(fn func(State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onState = fn
}

// ConnectionID returns the id the broker assigned on the last successful
// handshake, or an empty string before the first one.
func (m *ConnectionManager) ConnectionID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connectionID
}

// Capabilities returns the capability set granted on the last handshake.
func (m *ConnectionManager) Capabilities() models.Capabilities {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.capabilities
}

// Inbound is the ordered delivery channel for broker messages. Closed when
// Run returns.
func (m *ConnectionManager) Inbound() <-chan models.Envelope {
	return m.inbound
}

// Send enqueues an envelope for delivery. It never blocks: when the bounded
// queue is full the message is rejected with ErrQueueFull. Messages queued
// while disconnected go out after the next successful handshake.
func (m *ConnectionManager) Send(env models.Envelope) error {
	select {
	case m.outbound <- env:
		return nil
	default:
		return ErrQueueFull
	}
}

// NewEnvelope assembles an envelope bound to the manager's session.
func (m *ConnectionManager) NewEnvelope(msgType models.MessageType, payload any) (models.Envelope, error) {
	return protocol.NewEnvelope(msgType, m.profile.SessionID, payload)
}

// Run drives the connection until ctx is canceled or the session is
// rejected terminally (ErrNeedsReauthorization). It blocks; callers run it
// in a goroutine and consume Inbound.
func (m *ConnectionManager) Run(ctx context.Context) error {
	defer close(m.inbound)
	defer func() {
		// the terminal state survives Run returning
		if m.State() != StateNeedsReauthorization {
			m.setState(StateDisconnected)
		}
	}()

	wsURL, err := m.profile.WebSocketURL()
	if err != nil {
		return err
	}

	backoff := m.settings.BackoffMin
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		m.setState(StateConnecting)
		ws, _, err := m.dialer.DialContext(ctx, wsURL, nil)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			m.logger.Warn().Err(err).Str("url", wsURL).Msg("dial failed")
			if !m.waitBackoff(ctx, &backoff) {
				return nil
			}
			continue
		}

		m.setState(StateAwaitingHandshake)
		connectedEnv, err := m.handshake(ws)
		if err != nil {
			_ = ws.Close()
			var we *wireError
			if errors.As(err, &we) && we.terminal() {
				m.logger.Error().Err(err).Msg("session rejected")
				m.setState(StateNeedsReauthorization)
				return fmt.Errorf("%w: %v", ErrNeedsReauthorization, err)
			}
			m.logger.Warn().Err(err).Msg("handshake failed")
			if !m.waitBackoff(ctx, &backoff) {
				return nil
			}
			continue
		}

		backoff = m.settings.BackoffMin
		m.setState(StateConnected)
		m.logger.Info().Str("connection_id", m.ConnectionID()).Msg("connected to broker")

		// The connected reply carries the initial schema; the consumer
		// treats it like any other inbound message.
		if !m.deliver(ctx, connectedEnv) {
			_ = ws.Close()
			return nil
		}

		err = m.serve(ctx, ws)
		_ = ws.Close()

		if ctx.Err() != nil {
			return nil
		}

		var we *wireError
		if errors.As(err, &we) && we.terminal() {
			m.logger.Error().Err(err).Msg("session rejected")
			m.setState(StateNeedsReauthorization)
			return fmt.Errorf("%w: %v", ErrNeedsReauthorization, err)
		}

		m.logger.Warn().Err(err).Msg("connection lost, reconnecting")
		m.setState(StateDisconnected)
		if !m.waitBackoff(ctx, &backoff) {
			return nil
		}
	}
}

// handshake sends connect and waits for the broker's reply under the
// handshake deadline.
func (m *ConnectionManager) handshake(ws *websocket.Conn) (models.Envelope, error) {
	connect, err := protocol.NewEnvelope(models.MessageConnect, m.profile.SessionID, models.ConnectPayload{
		DeviceID:      m.profile.DeviceID,
		Platform:      m.profile.Platform,
		DeviceName:    m.profile.DeviceName,
		ClientVersion: m.profile.ClientVersion,
		Role:          m.profile.Role,
	})
	if err != nil {
		return models.Envelope{}, err
	}

	if err := m.write(ws, connect); err != nil {
		return models.Envelope{}, fmt.Errorf("error sending connect: %w", err)
	}

	if err := ws.SetReadDeadline(time.Now().Add(m.settings.HandshakeTimeout)); err != nil {
		return models.Envelope{}, err
	}

	_, raw, err := ws.ReadMessage()
	if err != nil {
		return models.Envelope{}, fmt.Errorf("error reading handshake reply: %w", err)
	}

	env, err := protocol.Deserialize(raw)
	if err != nil {
		return models.Envelope{}, err
	}

	switch env.Type {
	case models.MessageError:
		var payload models.ErrorPayload
		if err := protocol.DecodePayload(env, &payload); err != nil {
			return models.Envelope{}, err
		}
		return models.Envelope{}, &wireError{payload: payload}

	case models.MessageConnected:
		var connected models.ConnectedPayload
		if err := protocol.DecodePayload(env, &connected); err != nil {
			return models.Envelope{}, err
		}

		m.mu.Lock()
		m.connectionID = connected.ConnectionID
		m.capabilities = connected.Capabilities
		m.mu.Unlock()

		if err := ws.SetReadDeadline(time.Time{}); err != nil {
			return models.Envelope{}, err
		}
		return env, nil

	default:
		return models.Envelope{}, fmt.Errorf("%w: expected connected, got %s", protocol.ErrInvalidMessage, env.Type)
	}
}

// serve pumps traffic on one live connection until it fails. The write pump
// runs in its own goroutine so a slow socket never stalls inbound handling;
// the read side runs here to keep delivery ordered.
func (m *ConnectionManager) serve(ctx context.Context, ws *websocket.Conn) error {
	writeErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)

	// Closing the socket is the only way to unblock a pending read, both on
	// cancellation and on write-pump failure.
	go func() {
		select {
		case <-ctx.Done():
			_ = ws.Close()
		case <-done:
		}
	}()

	go func() {
		for {
			select {
			case env := <-m.outbound:
				if err := m.write(ws, env); err != nil {
					writeErr <- err
					_ = ws.Close()
					return
				}
			case <-done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			select {
			case werr := <-writeErr:
				return fmt.Errorf("write pump: %w", werr)
			default:
			}
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}

		env, err := protocol.Deserialize(raw)
		if err != nil {
			m.logger.Warn().Err(err).Msg("malformed broker message dropped")
			continue
		}

		switch env.Type {
		case models.MessagePing:
			pong, err := protocol.NewEnvelope(models.MessagePong, m.profile.SessionID, models.PongPayload{
				ServerTime: env.Timestamp,
			})
			if err == nil {
				if err := m.Send(pong); err != nil {
					m.logger.Warn().Err(err).Msg("dropping pong")
				}
			}

		case models.MessageError:
			var payload models.ErrorPayload
			if err := protocol.DecodePayload(env, &payload); err != nil {
				m.logger.Warn().Err(err).Msg("malformed error payload")
				continue
			}
			we := &wireError{payload: payload}
			if we.terminal() {
				return we
			}
			m.logger.Warn().Str("code", string(payload.Code)).Str("message", payload.Message).Msg("broker error")
			if !m.deliver(ctx, env) {
				return nil
			}

		default:
			if !m.deliver(ctx, env) {
				return nil
			}
		}
	}
}

// deliver pushes env to the inbound channel, backpressuring rather than
// reordering. Returns false when ctx is canceled.
func (m *ConnectionManager) deliver(ctx context.Context, env models.Envelope) bool {
	select {
	case m.inbound <- env:
		return true
	case <-ctx.Done():
		return false
	}
}

func (m *ConnectionManager) write(ws *websocket.Conn, env models.Envelope) error {
	raw, err := protocol.Serialize(env)
	if err != nil {
		return err
	}
	if err := ws.SetWriteDeadline(time.Now().Add(m.settings.WriteTimeout)); err != nil {
		return err
	}
	return ws.WriteMessage(websocket.TextMessage, raw)
}

// waitBackoff sleeps the current backoff and doubles it up to the cap.
// Returns false when ctx is canceled.
func (m *ConnectionManager) waitBackoff(ctx context.Context, backoff *time.Duration) bool {
	m.setState(StateDisconnected)

	timer := time.NewTimer(*backoff)
	defer timer.Stop()

	*backoff *= 2
	if *backoff > m.settings.BackoffMax {
		*backoff = m.settings.BackoffMax
	}

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (m *ConnectionManager) setState(s State) {
	old := State(m.state.Swap(int32(s)))
	if old == s {
		return
	}

	m.mu.RLock()
	fn := m.onState
	m.mu.RUnlock()
	if fn != nil {
		fn(s)
	}
}

