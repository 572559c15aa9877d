package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/MKhiriev/go-schema-sync/internal/config"
	"github.com/MKhiriev/go-schema-sync/internal/handler"
	"github.com/MKhiriev/go-schema-sync/internal/logger"
)

type httpServer struct {
	server *http.Server
	logger *logger.Logger
}

// newHTTPServer builds the single HTTP server hosting both the control API
// and the /ws upgrade endpoint. No global write timeout is set because
// WebSocket connections outlive any sane request deadline; per-message
// deadlines are the gateway's job.
func newHTTPServer(handlers *handler.Handlers, cfg config.Broker, logger *logger.Logger) *httpServer {
	router := handlers.HTTP.Init()
	router.Get("/ws", handlers.WS.Handle)

	return &httpServer{
		server: &http.Server{
			Addr:              cfg.HTTPAddress,
			Handler:           router,
			ReadHeaderTimeout: cfg.RequestTimeout,
		},
		logger: logger,
	}
}

func (h *httpServer) RunServer() {
	if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		h.logger.Error().Err(err).Msg("HTTP server ListenAndServe")
	}
}

func (h *httpServer) Shutdown() {
	if err := h.server.Shutdown(context.Background()); err != nil {
		h.logger.Error().Err(err).Msg("HTTP server Shutdown")
	}
}
