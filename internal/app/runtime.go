// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package app wires the device runtime together: one event loop consuming
// the connection manager's inbound envelopes, driving the interpreter, and
// redrawing the terminal preview. Runtime events from rendered elements
// flow back out through the same connection.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/MKhiriev/go-schema-sync/internal/client"
	"github.com/MKhiriev/go-schema-sync/internal/interpreter"
	"github.com/MKhiriev/go-schema-sync/internal/logger"
	"github.com/MKhiriev/go-schema-sync/internal/protocol"
	"github.com/MKhiriev/go-schema-sync/internal/render"
	"github.com/MKhiriev/go-schema-sync/models"
)

// Settings controls the runtime's presentation.
type Settings struct {
	// Width is the render width in cells.
	Width int

	// ClearScreen redraws over the previous frame with an ANSI home+erase
	// prefix. Off in tests.
	ClearScreen bool
}

// Runtime is the device runtime's event loop.
type Runtime struct {
	manager  *client.ConnectionManager
	interp   *interpreter.Interpreter
	settings Settings
	logger   *logger.Logger

	mu     sync.Mutex
	out    io.Writer
	status string
	busy   bool
}

// NewRuntime wires a connection manager and an interpreter to a terminal
// writer. The interpreter's event bridge forwards upstream through the
// manager's outbound queue, and state changes trigger rebuilds.
func NewRuntime(manager *client.ConnectionManager, interp *interpreter.Interpreter, out io.Writer, settings Settings, log *logger.Logger) *Runtime {
	if settings.Width <= 0 {
		settings.Width = 80
	}

	r := &Runtime{
		manager:  manager,
		interp:   interp,
		settings: settings,
		logger:   log,
		out:      out,
		status:   "starting",
	}

	manager.OnStateChange(r.onConnectionState)
	interp.OnRebuild(func(*interpreter.Element) { r.redraw() })
	interp.State().OnChange(func() {
		interp.Rebuild()
		r.redraw()
	})
	interp.Events().Connect(r.forwardEvent)

	return r
}

// Run drives the loop until ctx is canceled or the session is rejected
// terminally.
func (r *Runtime) Run(ctx context.Context) error {
	defer r.interp.Events().Disconnect()

	runErr := make(chan error, 1)
	go func() { runErr <- r.manager.Run(ctx) }()

	for {
		select {
		case <-ctx.Done():
			return <-runErr

		case err := <-runErr:
			if errors.Is(err, client.ErrNeedsReauthorization) {
				r.setStatus("session rejected — re-pairing required")
			}
			return err

		case env, ok := <-r.manager.Inbound():
			if !ok {
				return <-runErr
			}
			r.handleEnvelope(ctx, env)
		}
	}
}

func (r *Runtime) handleEnvelope(ctx context.Context, env models.Envelope) {
	switch env.Type {
	case models.MessageConnected:
		r.handleConnected(env)

	case models.MessageUpdate:
		r.handleUpdate(ctx, env)

	case models.MessageError:
		var payload models.ErrorPayload
		if err := protocol.DecodePayload(env, &payload); err != nil {
			r.logger.Warn().Err(err).Msg("undecodable error envelope")
			return
		}
		r.logger.Warn().
			Str("code", string(payload.Code)).
			Str("severity", string(payload.Severity)).
			Msg(payload.Message)
		if payload.Severity != models.SeverityWarning {
			r.setStatus("broker error: " + payload.Message)
		}

	case models.MessageReload:
		// The broker resolves device-initiated reloads by resending the
		// schema; a reload addressed to us just means one is in flight.
		r.logger.Debug().Msg("reload acknowledged by broker")

	case models.MessagePong:
		// Keepalive bookkeeping lives in the connection manager.

	default:
		r.logger.Debug().Str("type", string(env.Type)).Msg("unhandled envelope type")
	}
}

func (r *Runtime) handleConnected(env models.Envelope) {
	var payload models.ConnectedPayload
	if err := protocol.DecodePayload(env, &payload); err != nil {
		r.logger.Warn().Err(err).Msg("undecodable connected envelope")
		return
	}

	r.logger.Info().
		Str("connection", payload.ConnectionID).
		Bool("incremental", payload.Capabilities.IncrementalUpdates).
		Msg("session joined")

	if payload.InitialSchema != nil {
		r.interp.Interpret(payload.InitialSchema)
	}
	r.setStatus("connected")
}

func (r *Runtime) handleUpdate(ctx context.Context, env models.Envelope) {
	decode := r.interp.DecodeUpdate(env)
	if r.interp.Oversized(env) {
		r.setBusy(true)
		defer r.setBusy(false)
	}

	var decoded interpreter.DecodedUpdate
	select {
	case decoded = <-decode:
	case <-ctx.Done():
		return
	}
	if decoded.Err != nil {
		r.logger.Warn().Err(decoded.Err).Msg("undecodable update payload")
		return
	}

	applied, applyTime, err := r.interp.HandleUpdate(decoded.Payload)
	switch {
	case errors.Is(err, protocol.ErrChecksumMismatch), errors.Is(err, interpreter.ErrNoBaseSchema):
		r.logger.Warn().Err(err).
			Uint64("sequence", decoded.Payload.SequenceNumber).
			Msg("requesting full reload")
		r.sendReload(err.Error())

	case err != nil:
		r.logger.Error().Err(err).Msg("update failed")
		r.sendAck(decoded.Payload.SequenceNumber, false, 0, err.Error())

	case applied:
		r.sendAck(decoded.Payload.SequenceNumber, true, applyTime, "")
	}
}

func (r *Runtime) forwardEvent(payload models.EventPayload) error {
	env, err := r.manager.NewEnvelope(models.MessageEvent, payload)
	if err != nil {
		return err
	}
	if err := r.manager.Send(env); err != nil {
		return fmt.Errorf("error forwarding event %q: %w", payload.Action, err)
	}
	return nil
}

func (r *Runtime) sendAck(sequence uint64, success bool, applyTime time.Duration, errMsg string) {
	env, err := r.manager.NewEnvelope(models.MessageAck, models.AckPayload{
		SequenceNumber: sequence,
		Success:        success,
		Error:          errMsg,
		ApplyTime:      applyTime.Milliseconds(),
	})
	if err != nil {
		r.logger.Warn().Err(err).Msg("error building ack")
		return
	}
	if err := r.manager.Send(env); err != nil {
		r.logger.Warn().Err(err).Uint64("sequence", sequence).Msg("ack not sent")
	}
}

func (r *Runtime) sendReload(reason string) {
	env, err := r.manager.NewEnvelope(models.MessageReload, models.ReloadPayload{
		Reason: models.ReloadError,
		Error:  reason,
	})
	if err != nil {
		r.logger.Warn().Err(err).Msg("error building reload request")
		return
	}
	if err := r.manager.Send(env); err != nil {
		r.logger.Warn().Err(err).Msg("reload request not sent")
	}
}

func (r *Runtime) onConnectionState(state client.State) {
	switch state {
	case client.StateConnecting:
		r.setStatus("connecting…")
	case client.StateAwaitingHandshake:
		r.setStatus("joining session…")
	case client.StateConnected:
		r.setStatus("connected")
	case client.StateDisconnected:
		r.setStatus("offline — reconnecting")
	case client.StateNeedsReauthorization:
		r.setStatus("session rejected — re-pairing required")
	}
}

func (r *Runtime) setStatus(status string) {
	r.mu.Lock()
	r.status = status
	r.mu.Unlock()
	r.redraw()
}

func (r *Runtime) setBusy(busy bool) {
	r.mu.Lock()
	r.busy = busy
	r.mu.Unlock()
	r.redraw()
}

// redraw writes the full frame: rendered tree, then the status line.
func (r *Runtime) redraw() {
	root := r.interp.Root()

	r.mu.Lock()
	defer r.mu.Unlock()

	var frame string
	if r.settings.ClearScreen {
		frame = "\033[H\033[2J"
	}
	if root != nil {
		frame += root.Render(r.settings.Width) + "\n"
	}

	status := r.status
	if r.busy {
		status += " · applying update…"
	}
	frame += render.StatusLine(status) + "\n"

	if _, err := io.WriteString(r.out, frame); err != nil {
		r.logger.Warn().Err(err).Msg("error writing frame")
	}
}
