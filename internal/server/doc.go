// Package server wires and runs the broker's transport server.
//
// It provides orchestration for the HTTP server lifecycle (which also hosts
// the WebSocket upgrade endpoint), the background maintenance loops, signal
// handling, and graceful shutdown.
package server
