package interpreter

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/MKhiriev/go-schema-sync/internal/logger"
	"github.com/MKhiriev/go-schema-sync/models"
)

// Handler handles one named event synchronously.
type Handler func(data map[string]any) error

// AsyncHandler handles one named event and may block; TriggerEventAsync
// awaits it.
type AsyncHandler func(ctx context.Context, data map[string]any) error

// EventListener observes every triggered event, handler or not.
type EventListener func(name string, data map[string]any)

// ErrorCallback receives errors and panics caught at the bridge boundary.
type ErrorCallback func(eventID string, err error, stack string)

// EventBridge routes runtime events from rendered elements to registered
// handlers and listeners, and forwards them upstream while a connection is
// attached. A failure in any single handler or listener is contained at the
// bridge: it reaches the error callback and nothing else.
type EventBridge struct {
	mu        sync.Mutex
	handlers  map[string]Handler
	async     map[string]AsyncHandler
	listeners []EventListener
	onError   ErrorCallback
	forward   func(models.EventPayload) error
	logger    *logger.Logger
}

func NewEventBridge(log *logger.Logger) *EventBridge {
	return &EventBridge{
		handlers: make(map[string]Handler),
		async:    make(map[string]AsyncHandler),
		logger:   log,
	}
}

// RegisterHandler installs a synchronous handler for name, replacing any
// previous handler (sync or async) under that name.
func (b *EventBridge) RegisterHandler(name string, fn Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[name] = fn
	delete(b.async, name)
}

// RegisterAsyncHandler installs an async handler for name, replacing any
// previous handler (sync or async) under that name.
func (b *EventBridge) RegisterAsyncHandler(name string, fn AsyncHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.async[name] = fn
	delete(b.handlers, name)
}

// AddListener registers a listener invoked on every triggered event.
func (b *EventBridge) AddListener(fn EventListener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, fn)
}

// OnError installs the callback receiving contained handler failures.
func (b *EventBridge) OnError(fn ErrorCallback) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onError = fn
}

// Connect attaches an upstream forwarder; every subsequently triggered
// event is also sent upstream as an event envelope.
func (b *EventBridge) Connect(forward func(models.EventPayload) error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.forward = forward
}

// Disconnect stops upstream forwarding. Local dispatch is unaffected.
func (b *EventBridge) Disconnect() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.forward = nil
}

// TriggerEvent dispatches an event to its handler (if any), then to every
// listener, then upstream. An async-only registration runs under a
// background context.
func (b *EventBridge) TriggerEvent(name string, data map[string]any) {
	b.mu.Lock()
	handler := b.handlers[name]
	asyncHandler := b.async[name]
	listeners := append([]EventListener(nil), b.listeners...)
	forward := b.forward
	b.mu.Unlock()

	switch {
	case handler != nil:
		b.invoke(name, func() error { return handler(data) })
	case asyncHandler != nil:
		b.invoke(name, func() error { return asyncHandler(context.Background(), data) })
	}

	b.notify(name, data, listeners)
	b.forwardUpstream(name, data, forward)
}

// TriggerEventAsync dispatches like TriggerEvent but prefers the async
// handler and awaits it under ctx, falling back to a sync handler when only
// that is registered.
func (b *EventBridge) TriggerEventAsync(ctx context.Context, name string, data map[string]any) {
	b.mu.Lock()
	handler := b.handlers[name]
	asyncHandler := b.async[name]
	listeners := append([]EventListener(nil), b.listeners...)
	forward := b.forward
	b.mu.Unlock()

	switch {
	case asyncHandler != nil:
		b.invoke(name, func() error { return asyncHandler(ctx, data) })
	case handler != nil:
		b.invoke(name, func() error { return handler(data) })
	}

	b.notify(name, data, listeners)
	b.forwardUpstream(name, data, forward)
}

// invoke runs one handler with panic containment.
func (b *EventBridge) invoke(name string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			b.reportError(name, fmt.Errorf("handler panic: %v", r), string(debug.Stack()))
		}
	}()

	if err := fn(); err != nil {
		b.reportError(name, err, "")
	}
}

func (b *EventBridge) notify(name string, data map[string]any, listeners []EventListener) {
	for _, fn := range listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					b.reportError(name, fmt.Errorf("listener panic: %v", r), string(debug.Stack()))
				}
			}()
			fn(name, data)
		}()
	}
}

func (b *EventBridge) forwardUpstream(name string, data map[string]any, forward func(models.EventPayload) error) {
	if forward == nil {
		return
	}
	if err := forward(models.EventPayload{Action: name, Payload: data}); err != nil {
		b.logger.Warn().Err(err).Str("event", name).Msg("upstream event forwarding failed")
	}
}

func (b *EventBridge) reportError(eventID string, err error, stack string) {
	b.mu.Lock()
	onError := b.onError
	b.mu.Unlock()

	b.logger.Error().Err(err).Str("event", eventID).Msg("event handler failed")
	if onError != nil {
		onError(eventID, err, stack)
	}
}
