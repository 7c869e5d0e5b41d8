package ws

import (
	"context"

	"github.com/coder/websocket"
)

// Transport is the message-framed duplex channel a Connection owns. The
// production implementation adapts a websocket upgrade; tests substitute an
// in-memory fake. No component other than the owning Connection touches the
// transport.
type Transport interface {
	// Open completes the transport-level handshake. Must be called once,
	// before any read or write.
	Open(ctx context.Context) error

	// Read blocks until the next inbound frame arrives. A peer-initiated
	// close is the normal end-of-stream signal and is reported as io.EOF,
	// not as an error condition.
	Read(ctx context.Context) ([]byte, error)

	// Write sends one frame.
	Write(ctx context.Context, data []byte) error

	// Close tears the transport down with a status code and reason. Closing
	// a transport whose handshake never completed must be a no-op.
	Close(code websocket.StatusCode, reason string) error
}
