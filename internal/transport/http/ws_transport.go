package http

import (
	"context"
	"errors"
	"io"
	stdhttp "net/http"

	"github.com/coder/websocket"

	"github.com/natuspati/jeopardy-api/internal/ws"
)

// wsTransport adapts a websocket upgrade to ws.Transport. The upgrade is
// deferred until Open so a rejected session can still answer with a plain
// HTTP status.
type wsTransport struct {
	w    stdhttp.ResponseWriter
	r    *stdhttp.Request
	conn *websocket.Conn
}

var _ ws.Transport = (*wsTransport)(nil)

func newWSTransport(w stdhttp.ResponseWriter, r *stdhttp.Request) *wsTransport {
	return &wsTransport{w: w, r: r}
}

// Open performs the websocket handshake.
func (t *wsTransport) Open(_ context.Context) error {
	conn, err := websocket.Accept(t.w, t.r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		return err
	}
	t.conn = conn
	return nil
}

// Read returns the next text frame. A close initiated by the peer surfaces
// as io.EOF.
func (t *wsTransport) Read(ctx context.Context) ([]byte, error) {
	_, data, err := t.conn.Read(ctx)
	if err != nil {
		if errors.Is(err, io.EOF) || websocket.CloseStatus(err) != -1 {
			return nil, io.EOF
		}
		return nil, err
	}
	return data, nil
}

// Write sends a text frame.
func (t *wsTransport) Write(ctx context.Context, data []byte) error {
	return t.conn.Write(ctx, websocket.MessageText, data)
}

// Close performs the closing handshake. It is a no-op before Open succeeds.
func (t *wsTransport) Close(code websocket.StatusCode, reason string) error {
	if t.conn == nil {
		return nil
	}
	return t.conn.Close(code, reason)
}
