package server

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/MKhiriev/go-schema-sync/internal/config"
	"github.com/MKhiriev/go-schema-sync/internal/handler"
	"github.com/MKhiriev/go-schema-sync/internal/logger"
	"github.com/MKhiriev/go-schema-sync/internal/workers"
)

type server struct {
	httpServer *httpServer
	background *workers.Workers
	logger     *logger.Logger
}

// NewServer assembles the broker's transport server. background runners
// (session expiry sweep, heartbeat) are started alongside the listener and
// stopped by context cancellation on shutdown.
func NewServer(handlers *handler.Handlers, cfg config.Broker, logger *logger.Logger, background ...func(ctx context.Context)) (Server, error) {
	logger.Info().Msg("creating new server...")

	if cfg.HTTPAddress == "" {
		return nil, errNoListenAddress
	}

	loops := make([]workers.Worker, 0, len(background))
	for _, run := range background {
		loops = append(loops, workers.WorkerFunc(run))
	}

	return &server{
		httpServer: newHTTPServer(handlers, cfg, logger),
		background: workers.New(loops...),
		logger:     logger,
	}, nil
}

func (s *server) RunServer() {
	if err := s.run(); err != nil {
		s.logger.Info().Msgf("Error running server: %v \n", err)
	}
}

func (s *server) Shutdown() {
	if s.httpServer != nil {
		s.httpServer.Shutdown()
	}
}

func (s *server) run() error {
	idleConnectionsClosed := make(chan struct{})
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
		syscall.SIGQUIT,
	)
	defer stop()

	// listen for stop signals
	go func() {
		<-ctx.Done()

		// finish started servers
		s.Shutdown()

		close(idleConnectionsClosed)
	}()

	// launch the maintenance loops
	maintenanceDone := make(chan struct{})
	go func() {
		s.background.Run(ctx)
		close(maintenanceDone)
	}()

	s.logger.Info().Msg("Launching HTTP server")
	go s.httpServer.RunServer()

	<-idleConnectionsClosed
	<-maintenanceDone
	s.logger.Info().Msg("server Shutdown gracefully")

	return nil
}
