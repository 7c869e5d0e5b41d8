package ws

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"
)

// fakeTransport is an in-memory Transport. Frames pushed with push are
// returned by Read; closing the peer side ends the stream with io.EOF, while
// a forced Close makes Read fail like a torn-down socket.
type fakeTransport struct {
	mu         sync.Mutex
	opened     bool
	openErr    error
	writeErr   error
	writes     [][]byte
	closeCount int
	closeCode  websocket.StatusCode
	closeText  string

	inbound   chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		inbound: make(chan []byte, 16),
		closed:  make(chan struct{}),
	}
}

func (t *fakeTransport) Open(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.openErr != nil {
		return t.openErr
	}
	t.opened = true
	return nil
}

func (t *fakeTransport) Read(ctx context.Context) ([]byte, error) {
	select {
	case data, ok := <-t.inbound:
		if !ok {
			return nil, io.EOF
		}
		return data, nil
	case <-t.closed:
		return nil, errors.New("read on closed transport")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (t *fakeTransport) Write(_ context.Context, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.writeErr != nil {
		return t.writeErr
	}
	t.writes = append(t.writes, append([]byte(nil), data...))
	return nil
}

func (t *fakeTransport) Close(code websocket.StatusCode, reason string) error {
	t.mu.Lock()
	t.closeCount++
	if t.closeCount == 1 {
		t.closeCode = code
		t.closeText = reason
	}
	t.mu.Unlock()

	t.closeOnce.Do(func() { close(t.closed) })
	return nil
}

// push queues an inbound frame.
func (t *fakeTransport) push(tb testing.TB, v any) {
	tb.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		tb.Fatalf("marshal inbound frame: %v", err)
	}
	t.inbound <- data
}

// pushRaw queues a raw inbound frame.
func (t *fakeTransport) pushRaw(data string) {
	t.inbound <- []byte(data)
}

// peerClose simulates the peer hanging up.
func (t *fakeTransport) peerClose() {
	close(t.inbound)
}

// sent decodes everything written to the transport so far.
func (t *fakeTransport) sent(tb testing.TB) []Message {
	tb.Helper()
	t.mu.Lock()
	defer t.mu.Unlock()

	msgs := make([]Message, 0, len(t.writes))
	for _, data := range t.writes {
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			tb.Fatalf("unmarshal outbound frame %q: %v", data, err)
		}
		msgs = append(msgs, msg)
	}
	return msgs
}

func (t *fakeTransport) closes() (int, websocket.StatusCode, string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closeCount, t.closeCode, t.closeText
}

func testLogger() *zerolog.Logger {
	logger := zerolog.Nop()
	return &logger
}

// openConnection registers and opens a connection in room, failing the test
// on any error.
func openConnection(tb testing.TB, room *Room, id int64) (*Connection, *fakeTransport) {
	tb.Helper()

	transport := newFakeTransport()
	conn, err := room.CreateConnection(id, transport, false)
	if err != nil {
		tb.Fatalf("create connection %d: %v", id, err)
	}
	if err := conn.Open(context.Background()); err != nil {
		tb.Fatalf("open connection %d: %v", id, err)
	}
	return conn, transport
}
