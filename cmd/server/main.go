package main

import (
	"fmt"

	"github.com/MKhiriev/go-schema-sync/internal/config"
	"github.com/MKhiriev/go-schema-sync/internal/dispatch"
	"github.com/MKhiriev/go-schema-sync/internal/handler"
	"github.com/MKhiriev/go-schema-sync/internal/logger"
	"github.com/MKhiriev/go-schema-sync/internal/server"
	"github.com/MKhiriev/go-schema-sync/internal/session"
)

var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

func main() {
	printBuildInfo()

	log := logger.NewLogger("schema-sync-broker")
	cfg, err := config.GetStructuredConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("error getting configs")
	}

	log.Debug().Any("config", cfg).Msg("received configs")

	registry := session.NewRegistry(session.Settings{
		Lifetime:      cfg.Sessions.Lifetime,
		SweepInterval: cfg.Sessions.SweepInterval,
		MaxDevices:    cfg.Sessions.MaxDevices,
		MaxEditors:    cfg.Sessions.MaxEditors,
	}, log)

	dispatcher := dispatch.NewDispatcher(registry, dispatch.Settings{
		PingInterval:   cfg.Broker.PingInterval,
		PongTimeout:    cfg.Broker.PongTimeout,
		DeltaThreshold: cfg.Broker.DeltaThreshold,
	}, log)

	handlers := handler.NewHandlers(registry, dispatcher, cfg, buildVersion, log)

	srv, err := server.NewServer(handlers, cfg.Broker, log, registry.Run, dispatcher.RunHeartbeat)
	if err != nil {
		log.Fatal().Err(err).Msg("error creating server")
	}

	srv.RunServer()
}

func printBuildInfo() {
	if buildVersion == "" {
		buildVersion = "N/A"
	}

	if buildDate == "" {
		buildDate = "N/A"
	}

	if buildCommit == "" {
		buildCommit = "N/A"
	}

	fmt.Printf("Build version: %s\n", buildVersion)
	fmt.Printf("Build date: %s\n", buildDate)
	fmt.Printf("Build commit: %s\n", buildCommit)
}
