// Package workers provides abstractions for managing and running
// background maintenance loops in the broker.
// It defines the Worker interface and a Workers aggregate that runs
// multiple loops concurrently and waits for all of them to stop.
package workers

import "context"

// Worker is the interface that must be implemented by any background loop.
// Run is expected to block until the context is cancelled.
//
// Example implementation:
//
//	type sweeper struct{}
//
//	func (s *sweeper) Run(ctx context.Context) {
//	    // periodic work until ctx.Done()
//	}
type Worker interface {
	Run(ctx context.Context)
}

// WorkerFunc adapts a plain function to the Worker interface.
type WorkerFunc func(ctx context.Context)

// Run calls the wrapped function.
func (f WorkerFunc) Run(ctx context.Context) { f(ctx) }
