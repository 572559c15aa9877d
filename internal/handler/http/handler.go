// Package http implements the broker's control API: session lifecycle,
// schema pushes, health and stats. Authentication, logging, and tracing
// concerns are handled by middleware at this layer before requests reach
// the session registry and update dispatcher.
package http

import (
	"github.com/MKhiriev/go-schema-sync/internal/config"
	"github.com/MKhiriev/go-schema-sync/internal/dispatch"
	"github.com/MKhiriev/go-schema-sync/internal/logger"
	"github.com/MKhiriev/go-schema-sync/internal/session"
)

type Handler struct {
	registry   *session.Registry
	dispatcher *dispatch.Dispatcher
	auth       config.Auth
	version    string

	logger *logger.Logger
}

func NewHandler(registry *session.Registry, dispatcher *dispatch.Dispatcher, auth config.Auth, version string, logger *logger.Logger) *Handler {
	logger.Info().Msg("http handler created")
	return &Handler{
		registry:   registry,
		dispatcher: dispatcher,
		auth:       auth,
		version:    version,
		logger:     logger,
	}
}
