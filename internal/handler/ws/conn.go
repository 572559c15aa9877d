package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/MKhiriev/go-schema-sync/internal/protocol"
	"github.com/MKhiriev/go-schema-sync/models"
	"github.com/gorilla/websocket"
)

var errConnClosed = errors.New("connection closed")

// conn adapts one gorilla websocket connection to the session.Sender
// contract. Writes are serialized with a mutex because the dispatcher's
// fan-out, the heartbeat, and the read loop's replies all send concurrently,
// while gorilla allows only one writer at a time.
type conn struct {
	ws           *websocket.Conn
	writeTimeout time.Duration

	mu     sync.Mutex
	closed bool
}

func newConn(ws *websocket.Conn, writeTimeout time.Duration) *conn {
	return &conn{ws: ws, writeTimeout: writeTimeout}
}

func (c *conn) Send(env models.Envelope) error {
	raw, err := protocol.Serialize(env)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errConnClosed
	}

	if err := c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, raw)
}

// Close is idempotent; the registry sweep and the read loop's teardown may
// both reach it.
func (c *conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	return c.ws.Close()
}
