package dispatch

import (
	"context"
	"time"

	"github.com/MKhiriev/go-schema-sync/internal/protocol"
	"github.com/MKhiriev/go-schema-sync/models"
)

// RunHeartbeat pings every connection of every session on the configured
// interval and force-closes connections silent past the pong timeout. The
// loop runs until ctx is canceled and is safe alongside live traffic; each
// sweep works over snapshots, never over the live maps.
func (d *Dispatcher) RunHeartbeat(ctx context.Context) {
	ticker := time.NewTicker(d.settings.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.heartbeatSweep(time.Now())
		}
	}
}

// heartbeatSweep runs one ping/reap pass.
func (d *Dispatcher) heartbeatSweep(now time.Time) {
	for _, s := range d.registry.Sessions() {
		env, err := protocol.NewEnvelope(models.MessagePing, s.ID, nil)
		if err != nil {
			d.logger.Error().Err(err).Str("session_id", s.ID).Msg("error building ping")
			continue
		}

		for _, c := range s.Connections() {
			info := c.Info()

			if now.Sub(info.LastPing) >= d.settings.PongTimeout {
				d.logger.Warn().
					Str("session_id", s.ID).
					Str("connection_id", info.ConnectionID).
					Dur("silent_for", now.Sub(info.LastPing)).
					Msg("connection silent past timeout, closing")

				if err := c.Close(); err != nil {
					d.logger.Warn().Err(err).
						Str("connection_id", info.ConnectionID).
						Msg("error closing dead connection")
				}
				d.registry.RemoveDevice(s.ID, info.ConnectionID)
				continue
			}

			if err := c.Deliver(env); err != nil {
				d.logger.Warn().Err(err).
					Str("session_id", s.ID).
					Str("connection_id", info.ConnectionID).
					Msg("error pinging connection")
			}
		}
	}
}
