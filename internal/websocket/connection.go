package websocket

import (
	"time"

	"github.com/gorilla/websocket"
)

// Connection abstracts the underlying websocket transport so the pumps can
// be exercised in tests without a network connection.
type Connection interface {
	// WriteMessage writes a frame with the given message type and payload.
	WriteMessage(messageType int, data []byte) error

	// ReadMessage reads the next frame from the connection.
	ReadMessage() (messageType int, p []byte, err error)

	// Close closes the connection.
	Close() error

	// SetReadDeadline sets the read deadline on the connection.
	SetReadDeadline(t time.Time) error

	// SetWriteDeadline sets the write deadline on the connection.
	SetWriteDeadline(t time.Time) error

	// SetReadLimit caps the size of frames read from the peer.
	SetReadLimit(limit int64)

	// SetPongHandler sets the handler invoked on pong frames.
	SetPongHandler(h func(string) error)

	// RemoteAddr returns the remote network address.
	RemoteAddr() string
}

// ConnectionWrapper adapts a gorilla connection to the Connection interface.
type ConnectionWrapper struct {
	conn *websocket.Conn
}

// NewConnectionWrapper wraps a gorilla connection.
func NewConnectionWrapper(conn *websocket.Conn) Connection {
	return &ConnectionWrapper{conn: conn}
}

func (c *ConnectionWrapper) WriteMessage(messageType int, data []byte) error {
	return c.conn.WriteMessage(messageType, data)
}

func (c *ConnectionWrapper) ReadMessage() (messageType int, p []byte, err error) {
	return c.conn.ReadMessage()
}

func (c *ConnectionWrapper) Close() error {
	return c.conn.Close()
}

func (c *ConnectionWrapper) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

func (c *ConnectionWrapper) SetWriteDeadline(t time.Time) error {
	return c.conn.SetWriteDeadline(t)
}

func (c *ConnectionWrapper) SetReadLimit(limit int64) {
	c.conn.SetReadLimit(limit)
}

func (c *ConnectionWrapper) SetPongHandler(h func(string) error) {
	c.conn.SetPongHandler(h)
}

func (c *ConnectionWrapper) RemoteAddr() string {
	if addr := c.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}
