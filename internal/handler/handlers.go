// Package handler aggregates the broker's inbound surfaces: the HTTP
// control API and the WebSocket gateway.
package handler

import (
	"time"

	"github.com/MKhiriev/go-schema-sync/internal/config"
	"github.com/MKhiriev/go-schema-sync/internal/dispatch"
	"github.com/MKhiriev/go-schema-sync/internal/handler/http"
	"github.com/MKhiriev/go-schema-sync/internal/handler/ws"
	"github.com/MKhiriev/go-schema-sync/internal/logger"
	"github.com/MKhiriev/go-schema-sync/internal/session"
)

type Handlers struct {
	HTTP *http.Handler
	WS   *ws.Gateway
}

func NewHandlers(registry *session.Registry, dispatcher *dispatch.Dispatcher, cfg *config.StructuredConfig, version string, logger *logger.Logger) *Handlers {
	logger.Info().Msg("creating handlers...")

	return &Handlers{
		HTTP: http.NewHandler(registry, dispatcher, cfg.Auth, version, logger),
		WS: ws.NewGateway(registry, dispatcher, ws.Settings{
			HandshakeTimeout: 30 * time.Second,
			WriteTimeout:     10 * time.Second,
		}, logger),
	}
}
