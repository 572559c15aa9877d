// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package session implements the broker's session arena: time-boxed pairing
// contexts that bind device and editor connections to one update stream.
//
// The registry is an id-keyed map guarded by a read-write mutex; every
// mutable per-session field lives behind the session's own lock, so
// operations on different sessions never contend while join/leave/push on
// the same session are serialized.
package session

import (
	"sync"
	"time"

	"github.com/MKhiriev/go-schema-sync/models"
)

// Sender is the transport half of a connection as seen by the broker core.
// Implementations (the WebSocket gateway, test fakes) must tolerate Send
// and Close being called from multiple goroutines.
type Sender interface {
	Send(env models.Envelope) error
	Close() error
}

// sendQueueSize bounds each connection's outbound queue. A peer that falls
// this many envelopes behind is effectively dead: further deliveries fail
// fast and the heartbeat reaps the connection.
const sendQueueSize = 64

// Connection pairs a connection's metadata with its transport. Outbound
// envelopes go through a bounded queue drained by a dedicated write pump, so
// a slow peer never stalls the goroutine fanning out a broadcast.
type Connection struct {
	// Sender delivers envelopes to the peer. Never nil. Only the write pump
	// calls Send; everyone else goes through Deliver.
	Sender Sender

	mu   sync.Mutex
	info models.DeviceConnection

	out       chan models.Envelope
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// NewConnection wraps connection metadata and its transport and starts the
// connection's write pump.
func NewConnection(info models.DeviceConnection, sender Sender) *Connection {
	c := &Connection{
		Sender: sender,
		info:   info,
		out:    make(chan models.Envelope, sendQueueSize),
		done:   make(chan struct{}),
	}
	go c.writePump()
	return c
}

// Deliver hands env to the connection's write pump. It never blocks on the
// peer: a closed connection or a full queue fails immediately.
func (c *Connection) Deliver(env models.Envelope) error {
	select {
	case <-c.done:
		return ErrConnectionClosed
	default:
	}
	select {
	case c.out <- env:
		return nil
	case <-c.done:
		return ErrConnectionClosed
	default:
		return ErrSendQueueFull
	}
}

// writePump drains the outbound queue onto the transport. A write failure
// closes the connection; the read loop and the heartbeat handle the fallout.
func (c *Connection) writePump() {
	for {
		select {
		case env := <-c.out:
			if err := c.Sender.Send(env); err != nil {
				_ = c.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}

// Close stops the write pump and closes the transport. Idempotent.
func (c *Connection) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		c.closeErr = c.Sender.Close()
	})
	return c.closeErr
}

// Info returns a copy of the connection metadata.
func (c *Connection) Info() models.DeviceConnection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.info
}

// TouchPing records ping activity on the connection.
func (c *Connection) TouchPing(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.info.LastPing = t
}

// TouchAck records the highest acknowledged update sequence. Out-of-order
// acks never move the watermark backwards.
func (c *Connection) TouchAck(seq uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if seq > c.info.LastAckSequence {
		c.info.LastAckSequence = seq
	}
}

// Session is one live pairing context. Its lifetime is fixed at creation
// (extensions excepted) and all of its mutable state — membership, the
// update sequence counter, and the cached delta base — is guarded by one
// lock so same-session operations cannot interleave.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu         sync.Mutex
	expiresAt  time.Time
	conns      map[string]*Connection
	sequence   uint64
	lastSchema *models.UIDescription
}

func newSession(id string, lifetime time.Duration) *Session {
	now := time.Now()
	return &Session{
		ID:        id,
		CreatedAt: now,
		expiresAt: now.Add(lifetime),
		conns:     make(map[string]*Connection),
	}
}

// ExpiresAt returns the session's current expiry instant.
func (s *Session) ExpiresAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expiresAt
}

// Expired reports whether the session has passed its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt())
}

func (s *Session) extend(extra time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expiresAt = s.expiresAt.Add(extra)
}

// Sequence returns the last sequence number handed out on this session.
func (s *Session) Sequence() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sequence
}

// NextSequence allocates the next update sequence number. Out-of-band sends
// (single-device resends) consume a real number under the session lock so a
// concurrent Push can never hand out the same one.
func (s *Session) NextSequence() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sequence++
	return s.sequence
}

// CachedSchema returns the last successfully pushed description, the delta
// base for the next push. Nil until the first push. The returned value is
// shared and must be treated as immutable.
func (s *Session) CachedSchema() *models.UIDescription {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSchema
}

// Connections returns a point-in-time snapshot of the session's members.
func (s *Session) Connections() []*Connection {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Connection, 0, len(s.conns))
	for _, c := range s.conns {
		out = append(out, c)
	}
	return out
}

// Connection looks up one member by connection id.
func (s *Session) Connection(connectionID string) (*Connection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conns[connectionID]
	return c, ok
}

// Info assembles the control-API view of the session.
func (s *Session) Info() models.SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	conns := make([]models.DeviceConnection, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c.Info())
	}

	return models.SessionInfo{
		SessionID:   s.ID,
		CreatedAt:   s.CreatedAt,
		ExpiresAt:   s.expiresAt,
		Sequence:    s.sequence,
		Connections: conns,
	}
}

// Push runs one atomic push cycle: build receives the cached delta base and
// the next sequence number and returns the envelope to broadcast; the
// envelope is then fanned out via send to every device-role connection, and
// newSchema replaces the delta base. The session lock is held throughout,
// so concurrent pushes on the same session cannot interleave partial
// updates; send must therefore never block on the peer — the dispatcher
// passes Connection.Deliver, which only enqueues. send failures are the
// caller's to log; they never abort delivery to the remaining connections.
func (s *Session) Push(
	newSchema *models.UIDescription,
	build func(base *models.UIDescription, seq uint64) (models.Envelope, error),
	send func(c *Connection, env models.Envelope) error,
) (delivered int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	env, err := build(s.lastSchema, s.sequence+1)
	if err != nil {
		return 0, err
	}
	s.sequence++

	for _, c := range s.conns {
		if c.Info().Role != models.RoleDevice {
			continue
		}
		if send(c, env) == nil {
			delivered++
		}
	}

	s.lastSchema = newSchema
	return delivered, nil
}

// ForwardToRole fans env out to every connection of the given role except
// the originating connection. Used to route device events to editors.
func (s *Session) ForwardToRole(role models.Role, originConnID string, env models.Envelope, send func(c *Connection, env models.Envelope) error) (delivered int) {
	for _, c := range s.Connections() {
		info := c.Info()
		if info.Role != role || info.ConnectionID == originConnID {
			continue
		}
		if send(c, env) == nil {
			delivered++
		}
	}
	return delivered
}

func (s *Session) addConnection(c *Connection, maxDevices, maxEditors int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	devices, editors := 0, 0
	for _, existing := range s.conns {
		switch existing.Info().Role {
		case models.RoleEditor:
			editors++
		default:
			devices++
		}
	}

	switch c.Info().Role {
	case models.RoleEditor:
		if editors >= maxEditors {
			return ErrSessionFull
		}
	default:
		if devices >= maxDevices {
			return ErrSessionFull
		}
	}

	s.conns[c.Info().ConnectionID] = c
	return nil
}

func (s *Session) removeConnection(connectionID string) (*Connection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conns[connectionID]
	if ok {
		delete(s.conns, connectionID)
	}
	return c, ok
}

// closeAll force-closes every connection and empties the membership.
// Used on session teardown.
func (s *Session) closeAll() []*Connection {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Connection, 0, len(s.conns))
	for id, c := range s.conns {
		out = append(out, c)
		delete(s.conns, id)
	}
	return out
}
