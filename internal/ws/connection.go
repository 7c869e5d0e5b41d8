package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/coder/websocket"
)

// State is the lifecycle state of a connection, derived from its transport.
type State int

const (
	StatePending State = iota
	StateConnected
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Connection wraps one participant's transport. The connection id equals the
// participant id: one connection slot per participant. Writes are serialized
// under the connection mutex, so delivery to a single peer is FIFO in
// Send-call order.
type Connection struct {
	id        int64
	transport Transport

	mu    sync.Mutex
	state State
}

// NewConnection builds a pending connection around a transport.
func NewConnection(id int64, transport Transport) *Connection {
	return &Connection{id: id, transport: transport, state: StatePending}
}

// ID returns the participant id this connection is registered under.
func (c *Connection) ID() int64 {
	return c.id
}

// State returns the current lifecycle state.
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Open performs the transport handshake. Calling Open on anything but a
// pending connection fails with ErrInvalidState.
func (c *Connection) Open(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StatePending {
		c.mu.Unlock()
		return fmt.Errorf("%w: open connection %d in state %s", ErrInvalidState, c.id, c.state)
	}
	c.state = StateConnected
	c.mu.Unlock()

	if err := c.transport.Open(ctx); err != nil {
		c.mu.Lock()
		c.state = StateDisconnected
		c.mu.Unlock()
		return fmt.Errorf("open transport: %w", err)
	}
	return nil
}

// Receive blocks until the next inbound frame and decodes it. A peer close
// ends the stream with io.EOF. Receiving on a connection that is not open
// fails with ErrInvalidState.
func (c *Connection) Receive(ctx context.Context) (*Inbound, error) {
	if err := c.requireConnected("receive"); err != nil {
		return nil, err
	}

	data, err := c.transport.Read(ctx)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("read frame: %w", err)
	}
	return DecodeInbound(data)
}

// Send serializes and writes one outbound message. Sending on a connection
// that is not open is a caller bug and fails with ErrInvalidState rather
// than being silently swallowed.
func (c *Connection) Send(ctx context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateConnected {
		return fmt.Errorf("%w: send on %s connection %d", ErrInvalidState, c.state, c.id)
	}
	if err := c.transport.Write(ctx, data); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// Close is idempotent: once disconnected, further calls are no-ops and
// produce no second transport-close side effect. Closing unblocks a pending
// Receive because the transport read fails once the transport is torn down.
func (c *Connection) Close(code websocket.StatusCode, reason string) {
	c.mu.Lock()
	if c.state == StateDisconnected {
		c.mu.Unlock()
		return
	}
	c.state = StateDisconnected
	c.mu.Unlock()

	_ = c.transport.Close(code, reason)
}

func (c *Connection) requireConnected(op string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateConnected {
		return fmt.Errorf("%w: %s on %s connection %d", ErrInvalidState, op, c.state, c.id)
	}
	return nil
}
