// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package dispatch decides how schema updates travel: full versus
// incremental, sequencing, device-role fan-out, event forwarding to
// editors, plus the heartbeat that declares silent connections dead.
package dispatch

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/MKhiriev/go-schema-sync/internal/logger"
	"github.com/MKhiriev/go-schema-sync/internal/protocol"
	"github.com/MKhiriev/go-schema-sync/internal/session"
	"github.com/MKhiriev/go-schema-sync/models"
)

// Settings carries the dispatcher tunables.
type Settings struct {
	// PingInterval is how often the heartbeat pings every connection.
	PingInterval time.Duration

	// PongTimeout is the silence window after which a connection is
	// force-closed. Two missed pings with the defaults.
	PongTimeout time.Duration

	// DeltaThreshold is the changed-node count at which pushes fall back
	// to full updates.
	DeltaThreshold int
}

// Dispatcher owns update delivery for every session in the registry.
type Dispatcher struct {
	registry *session.Registry
	settings Settings
	logger   *logger.Logger

	totalUpdates atomic.Uint64
	totalEvents  atomic.Uint64
}

// NewDispatcher constructs a Dispatcher over the given registry.
func NewDispatcher(registry *session.Registry, settings Settings, logger *logger.Logger) *Dispatcher {
	logger.Info().
		Dur("ping_interval", settings.PingInterval).
		Dur("pong_timeout", settings.PongTimeout).
		Int("delta_threshold", settings.DeltaThreshold).
		Msg("update dispatcher created")

	return &Dispatcher{
		registry: registry,
		settings: settings,
		logger:   logger,
	}
}

// PushUpdate delivers newSchema to every device-role connection of the
// session. The first push (no cached base) and pushes whose delta reaches
// the threshold go out as full updates carrying a checksum; small diffs go
// out incrementally. On success newSchema becomes the delta base for the
// next push.
func (d *Dispatcher) PushUpdate(sessionID string, newSchema *models.UIDescription, preserveState bool) (models.PushResult, error) {
	if err := protocol.ValidateDescription(newSchema); err != nil {
		return models.PushResult{}, err
	}

	s, err := d.registry.GetSession(sessionID)
	if err != nil {
		return models.PushResult{}, err
	}

	var updateType models.UpdateKind
	var sequence uint64

	delivered, err := s.Push(newSchema,
		func(base *models.UIDescription, seq uint64) (models.Envelope, error) {
			payload, err := d.buildPayload(base, newSchema, preserveState, seq)
			if err != nil {
				return models.Envelope{}, err
			}
			updateType = payload.Type
			sequence = seq
			return protocol.NewEnvelope(models.MessageUpdate, sessionID, payload)
		},
		d.sendTo(sessionID),
	)
	if err != nil {
		return models.PushResult{}, fmt.Errorf("error pushing update to session %s: %w", sessionID, err)
	}

	d.totalUpdates.Add(1)
	d.logger.Info().
		Str("session_id", sessionID).
		Str("update_type", string(updateType)).
		Uint64("sequence", sequence).
		Int("devices_updated", delivered).
		Msg("update pushed")

	return models.PushResult{
		Success:        true,
		DevicesUpdated: delivered,
		UpdateType:     updateType,
		SequenceNumber: sequence,
	}, nil
}

// buildPayload picks full versus incremental for one push cycle.
func (d *Dispatcher) buildPayload(base, newSchema *models.UIDescription, preserveState bool, seq uint64) (models.UpdatePayload, error) {
	payload := models.UpdatePayload{
		PreserveState:  preserveState,
		SequenceNumber: seq,
	}

	if base != nil {
		delta := protocol.CalculateDelta(base, newSchema)
		if protocol.ShouldUseIncremental(delta, d.settings.DeltaThreshold) {
			payload.Type = models.UpdateIncremental
			payload.Delta = delta
			return payload, nil
		}
	}

	checksum, err := protocol.CalculateChecksum(newSchema)
	if err != nil {
		return models.UpdatePayload{}, err
	}
	payload.Type = models.UpdateFull
	payload.Schema = newSchema
	payload.Checksum = checksum
	return payload, nil
}

// PushUpdateToDevice forces a full resend to a single connection,
// independent of the delta base. Used when a device reconnects mid-session.
// A nil schema resends the session's cached description.
func (d *Dispatcher) PushUpdateToDevice(sessionID, connectionID string, schema *models.UIDescription) error {
	s, err := d.registry.GetSession(sessionID)
	if err != nil {
		return err
	}

	if schema == nil {
		schema = s.CachedSchema()
	}
	if schema == nil {
		return fmt.Errorf("session %s has no schema to resend", sessionID)
	}

	target, ok := s.Connection(connectionID)
	if !ok {
		return fmt.Errorf("%w: %s", session.ErrConnectionNotFound, connectionID)
	}

	checksum, err := protocol.CalculateChecksum(schema)
	if err != nil {
		return err
	}

	// The resend consumes a real sequence number: stamping a speculative
	// one would let the next broadcast reuse it, and the resent device
	// would drop that genuine update as stale.
	env, err := protocol.NewEnvelope(models.MessageUpdate, sessionID, models.UpdatePayload{
		Type:           models.UpdateFull,
		Schema:         schema,
		PreserveState:  true,
		SequenceNumber: s.NextSequence(),
		Checksum:       checksum,
	})
	if err != nil {
		return err
	}

	if err := target.Deliver(env); err != nil {
		return fmt.Errorf("error resending schema to connection %s: %w", connectionID, err)
	}

	d.logger.Info().
		Str("session_id", sessionID).
		Str("connection_id", connectionID).
		Msg("full schema resent to device")
	return nil
}

// ForwardEvent routes a device-originated event envelope to the session's
// editor-role connections. The originating connection never receives its
// own event back.
func (d *Dispatcher) ForwardEvent(sessionID, originConnectionID string, env models.Envelope) (int, error) {
	s, err := d.registry.GetSession(sessionID)
	if err != nil {
		return 0, err
	}

	delivered := s.ForwardToRole(models.RoleEditor, originConnectionID, env, d.sendTo(sessionID))
	d.totalEvents.Add(1)
	return delivered, nil
}

// SessionHealth reports per-connection liveness for one session.
func (d *Dispatcher) SessionHealth(sessionID string) (models.SessionHealth, error) {
	s, err := d.registry.GetSession(sessionID)
	if err != nil {
		return models.SessionHealth{}, err
	}

	now := time.Now()
	health := models.SessionHealth{SessionID: sessionID}
	for _, c := range s.Connections() {
		info := c.Info()
		sincePing := now.Sub(info.LastPing)
		health.Devices = append(health.Devices, models.DeviceHealth{
			ConnectionID:    info.ConnectionID,
			DeviceID:        info.DeviceID,
			Role:            info.Role,
			Healthy:         sincePing < d.settings.PongTimeout,
			SincePing:       sincePing.Milliseconds(),
			LastAckSequence: info.LastAckSequence,
		})
	}
	return health, nil
}

// Stats merges registry counters with the dispatcher's delivery totals.
func (d *Dispatcher) Stats() models.BrokerStats {
	stats := d.registry.Stats()
	stats.TotalUpdates = d.totalUpdates.Load()
	stats.TotalEvents = d.totalEvents.Load()
	return stats
}

// sendTo returns the per-connection send function used during fan-out. It
// enqueues onto the connection's write pump, so one slow socket never holds
// up the broadcast; a failed delivery is logged against its connection and
// swallowed so the rest proceeds.
func (d *Dispatcher) sendTo(sessionID string) func(c *session.Connection, env models.Envelope) error {
	return func(c *session.Connection, env models.Envelope) error {
		if err := c.Deliver(env); err != nil {
			d.logger.Warn().Err(err).
				Str("session_id", sessionID).
				Str("connection_id", c.Info().ConnectionID).
				Msg("error sending to connection")
			return err
		}
		return nil
	}
}
