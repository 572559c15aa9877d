// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// pushctl is the editor-side command line tool for the sync broker. It
// creates sessions and pushes UI description documents over the control API.
//
// Usage:
//
//	pushctl -a localhost:8080 create
//	pushctl -a localhost:8080 -s <session> -t <token> push -f screen.json
//	pushctl -a localhost:8080 -s <session> info
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/MKhiriev/go-schema-sync/internal/adapter"
	"github.com/MKhiriev/go-schema-sync/internal/logger"
	"github.com/MKhiriev/go-schema-sync/models"
)

var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

type options struct {
	address   string
	sessionID string
	token     string
	schema    string
	duration  time.Duration
	preserve  bool
	timeout   time.Duration
}

func main() {
	var opts options
	flag.StringVar(&opts.address, "a", "localhost:8080", "broker control API address")
	flag.StringVar(&opts.sessionID, "s", "", "session id")
	flag.StringVar(&opts.token, "t", "", "session token (issued by create)")
	flag.StringVar(&opts.schema, "f", "", "path to a UI description JSON file")
	flag.DurationVar(&opts.duration, "d", time.Hour, "extension duration for the extend command")
	flag.BoolVar(&opts.preserve, "preserve", true, "ask devices to preserve state across the update")
	flag.DurationVar(&opts.timeout, "timeout", 15*time.Second, "request timeout")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	log := logger.NewClientLogger("pushctl")

	client, err := adapter.NewHTTPBrokerClient(opts.address, opts.timeout, log)
	if err != nil {
		fail("invalid broker address: %v", err)
	}
	client.SetToken(opts.token)

	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()

	if err := run(ctx, client, flag.Arg(0), opts); err != nil {
		fail("%s: %v", flag.Arg(0), err)
	}
}

func run(ctx context.Context, client adapter.BrokerClient, command string, opts options) error {
	switch command {
	case "create":
		grant, err := client.CreateSession(ctx)
		if err != nil {
			return err
		}
		return printJSON(grant)

	case "push":
		schema, err := loadSchema(opts.schema)
		if err != nil {
			return err
		}
		result, err := client.PushSchema(ctx, requireSession(opts), schema, opts.preserve)
		if err != nil {
			return err
		}
		return printJSON(result)

	case "info":
		info, err := client.SessionInfo(ctx, requireSession(opts))
		if err != nil {
			return err
		}
		return printJSON(info)

	case "health":
		health, err := client.SessionHealth(ctx, requireSession(opts))
		if err != nil {
			return err
		}
		return printJSON(health)

	case "extend":
		extension, err := client.ExtendSession(ctx, requireSession(opts), opts.duration)
		if err != nil {
			return err
		}
		return printJSON(extension)

	case "delete":
		return client.DeleteSession(ctx, requireSession(opts))

	case "stats":
		stats, err := client.Stats(ctx)
		if err != nil {
			return err
		}
		return printJSON(stats)

	case "version":
		fmt.Printf("pushctl %s (built %s, commit %s)\n", orNA(buildVersion), orNA(buildDate), orNA(buildCommit))
		return nil

	default:
		usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

// loadSchema reads a UI description document from path and stamps its
// provenance metadata.
func loadSchema(path string) (*models.UIDescription, error) {
	if path == "" {
		return nil, fmt.Errorf("push requires -f <schema.json>")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading schema file: %w", err)
	}

	var schema models.UIDescription
	if err := json.Unmarshal(raw, &schema); err != nil {
		return nil, fmt.Errorf("error parsing schema file: %w", err)
	}

	if schema.Metadata.SourceKind == "" {
		schema.Metadata.SourceKind = "file"
	}
	if schema.Metadata.SourceRef == "" {
		schema.Metadata.SourceRef = path
	}
	schema.Metadata.GeneratedAt = time.Now().UnixMilli()

	return &schema, nil
}

func requireSession(opts options) string {
	if opts.sessionID == "" {
		fail("this command requires -s <session id>")
	}
	return opts.sessionID
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func usage() {
	fmt.Fprintf(os.Stderr, `pushctl — editor tool for the schema sync broker

Usage:
  pushctl [flags] <command>

Commands:
  create    create a session, print its id and token
  push      push a UI description (-f) to the session's devices
  info      print the session's connections and sequence position
  health    print per-connection liveness
  extend    push the session expiry forward (-d)
  delete    tear the session down
  stats     print broker-wide counters
  version   print build information

Flags:
`)
	flag.PrintDefaults()
}
