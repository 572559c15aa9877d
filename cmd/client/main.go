package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/MKhiriev/go-schema-sync/internal/app"
	"github.com/MKhiriev/go-schema-sync/internal/client"
	"github.com/MKhiriev/go-schema-sync/internal/interpreter"
	"github.com/MKhiriev/go-schema-sync/internal/logger"
	"github.com/MKhiriev/go-schema-sync/internal/render"
)

var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

func main() {
	printBuildInfo()

	profilePath := flag.String("c", "profile.toml", "device profile (TOML)")
	width := flag.Int("w", 0, "render width, 0 for the 80-cell default")
	flag.Parse()

	log := logger.NewClientLogger("schema-sync-device")

	profile, err := client.LoadProfile(*profilePath)
	if err != nil {
		log.Fatal().Err(err).Msg("error loading device profile")
	}
	profile.ClientVersion = buildVersion

	registry := interpreter.NewRegistry()
	if err := render.Install(registry); err != nil {
		log.Fatal().Err(err).Msg("error installing terminal renderers")
	}
	interp := interpreter.NewInterpreter(registry, interpreter.Settings{}, log)

	manager := client.NewConnectionManager(profile, client.Settings{}, log)

	runtime := app.NewRuntime(manager, interp, os.Stdout, app.Settings{
		Width:       *width,
		ClearScreen: true,
	}, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	defer stop()

	if err := runtime.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, client.ErrNeedsReauthorization) {
			fmt.Fprintln(os.Stderr, "session rejected: create a new session and update the profile")
		}
		log.Fatal().Err(err).Msg("device runtime stopped")
	}
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
