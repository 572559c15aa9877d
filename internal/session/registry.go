// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MKhiriev/go-schema-sync/internal/logger"
	"github.com/MKhiriev/go-schema-sync/models"
	"github.com/google/uuid"
)

// Settings carries the lifecycle tunables the registry needs. Values are
// plain so the package stays independent of the config layer.
type Settings struct {
	// Lifetime is the fixed session lifetime from creation.
	Lifetime time.Duration

	// SweepInterval is how often Run sweeps for expired sessions.
	SweepInterval time.Duration

	// MaxDevices and MaxEditors cap connections per session by role.
	MaxDevices int
	MaxEditors int
}

// Registry owns every live session. All lookups go through the registry;
// nothing outside a session's own methods may touch another session's state.
type Registry struct {
	settings Settings
	logger   *logger.Logger

	mu       sync.RWMutex
	sessions map[string]*Session

	expired atomic.Uint64
}

// NewRegistry constructs a Registry ready for use.
func NewRegistry(settings Settings, logger *logger.Logger) *Registry {
	logger.Info().
		Dur("lifetime", settings.Lifetime).
		Dur("sweep_interval", settings.SweepInterval).
		Int("max_devices", settings.MaxDevices).
		Int("max_editors", settings.MaxEditors).
		Msg("session registry created")

	return &Registry{
		settings: settings,
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

// CreateSession registers a new session under a cryptographically random,
// unguessable id with the configured fixed lifetime.
func (r *Registry) CreateSession() (*Session, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("error generating session id: %w", err)
	}

	s := newSession(id.String(), r.settings.Lifetime)

	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()

	r.logger.Info().
		Str("session_id", s.ID).
		Time("expires_at", s.ExpiresAt()).
		Msg("session created")

	return s, nil
}

// GetSession looks a session up by id. Expired sessions that the sweeper
// has not collected yet fail with ErrSessionExpired, never succeed.
func (r *Registry) GetSession(sessionID string) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[sessionID]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	if s.Expired(time.Now()) {
		return nil, fmt.Errorf("%w: %s", ErrSessionExpired, sessionID)
	}
	return s, nil
}

// DeleteSession removes a session and force-closes all of its connections.
func (r *Registry) DeleteSession(sessionID string) error {
	r.mu.Lock()
	s, ok := r.sessions[sessionID]
	if ok {
		delete(r.sessions, sessionID)
	}
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	for _, c := range s.closeAll() {
		if err := c.Close(); err != nil {
			r.logger.Warn().Err(err).
				Str("session_id", sessionID).
				Str("connection_id", c.Info().ConnectionID).
				Msg("error closing connection on session delete")
		}
	}

	r.logger.Info().Str("session_id", sessionID).Msg("session deleted")
	return nil
}

// ExtendSession pushes a session's expiry forward by extra.
// Fails for unknown ids; an expired-but-unswept session cannot be revived.
func (r *Registry) ExtendSession(sessionID string, extra time.Duration) error {
	s, err := r.GetSession(sessionID)
	if err != nil {
		return err
	}

	s.extend(extra)
	r.logger.Info().
		Str("session_id", sessionID).
		Time("expires_at", s.ExpiresAt()).
		Msg("session extended")
	return nil
}

// AddDevice registers a connection with a session, enforcing the per-role
// caps. The returned Connection is the registry's live record.
func (r *Registry) AddDevice(sessionID string, info models.DeviceConnection, sender Sender) (*Connection, error) {
	s, err := r.GetSession(sessionID)
	if err != nil {
		return nil, err
	}

	if info.Role == "" {
		info.Role = models.RoleDevice
	}
	if info.ConnectedAt.IsZero() {
		info.ConnectedAt = time.Now()
	}
	info.LastPing = time.Now()

	c := NewConnection(info, sender)
	if err := s.addConnection(c, r.settings.MaxDevices, r.settings.MaxEditors); err != nil {
		return nil, fmt.Errorf("%w: session %s, role %s", err, sessionID, info.Role)
	}

	r.logger.Info().
		Str("session_id", sessionID).
		Str("connection_id", info.ConnectionID).
		Str("device_id", info.DeviceID).
		Str("role", string(info.Role)).
		Msg("connection joined session")

	return c, nil
}

// RemoveDevice drops a connection from a session. Unknown sessions or
// connections are not an error; disconnects race teardown by nature.
func (r *Registry) RemoveDevice(sessionID, connectionID string) {
	r.mu.RLock()
	s, ok := r.sessions[sessionID]
	r.mu.RUnlock()
	if !ok {
		return
	}

	if c, removed := s.removeConnection(connectionID); removed {
		// Stop the write pump; the transport is torn down by whoever owns it.
		_ = c.Close()
		r.logger.Info().
			Str("session_id", sessionID).
			Str("connection_id", connectionID).
			Msg("connection left session")
	}
}

// CleanupExpired removes every expired session, closing its connections.
// The id set is snapshotted before any removal so the sweep never iterates
// a live, mutating map. Returns the number of sessions removed.
func (r *Registry) CleanupExpired() int {
	now := time.Now()

	r.mu.RLock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	removed := 0
	for _, id := range ids {
		r.mu.Lock()
		s, ok := r.sessions[id]
		if !ok || !s.Expired(now) {
			r.mu.Unlock()
			continue
		}
		delete(r.sessions, id)
		r.mu.Unlock()

		for _, c := range s.closeAll() {
			_ = c.Close()
		}

		removed++
		r.expired.Add(1)
		r.logger.Info().
			Str("session_id", id).
			Time("expired_at", s.ExpiresAt()).
			Msg("expired session removed")
	}

	return removed
}

// Run executes the expiry sweep on the configured interval until ctx is
// canceled. Safe to run concurrently with live traffic.
func (r *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(r.settings.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.CleanupExpired()
		}
	}
}

// Sessions returns a point-in-time snapshot of all live sessions.
func (r *Registry) Sessions() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// Stats aggregates registry-level counters for the control API.
func (r *Registry) Stats() models.BrokerStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := models.BrokerStats{
		ActiveSessions:  len(r.sessions),
		ExpiredSessions: r.expired.Load(),
	}
	for _, s := range r.sessions {
		stats.ActiveConnections += len(s.Connections())
	}
	return stats
}
