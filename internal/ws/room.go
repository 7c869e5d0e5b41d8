package ws

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"
)

// sendTimeout bounds how long one recipient may stall a fan-out write.
const sendTimeout = 5 * time.Second

// Room tracks the live connections of one lobby and fans messages out to
// them. The room id equals the lobby id. A connection present in the map is
// always connected; the moment it leaves that state it is removed.
type Room struct {
	id  int64
	log zerolog.Logger

	mu    sync.Mutex
	conns map[int64]*Connection
}

// NewRoom builds an empty room.
func NewRoom(id int64, logger zerolog.Logger) *Room {
	return &Room{
		id:    id,
		log:   logger.With().Int64("room_id", id).Logger(),
		conns: make(map[int64]*Connection),
	}
}

// ID returns the lobby id this room serves.
func (r *Room) ID() int64 {
	return r.id
}

// Len returns the number of registered connections.
func (r *Room) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// GetConnection looks a connection up by id. With strict set, a miss fails
// with ErrConnectionNotFound instead of returning nil.
func (r *Room) GetConnection(connectionID int64, strict bool) (*Connection, error) {
	r.mu.Lock()
	conn := r.conns[connectionID]
	r.mu.Unlock()

	if conn == nil && strict {
		return nil, fmt.Errorf("%w: connection %d in room %d", ErrConnectionNotFound, connectionID, r.id)
	}
	return conn, nil
}

// CreateConnection registers a connection slot for connectionID. If the
// participant already holds a live connection, disconnectExisting decides the
// outcome: true forcibly closes the stale session with a policy-violation
// code and replaces it, false fails with ErrConnectionExists and leaves the
// original untouched. Admission is serialized under the room mutex so
// concurrent joins for the same id register exactly one connection.
func (r *Room) CreateConnection(connectionID int64, transport Transport, disconnectExisting bool) (*Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.conns[connectionID]; ok {
		if !disconnectExisting {
			return nil, fmt.Errorf("%w: connection %d in room %d", ErrConnectionExists, connectionID, r.id)
		}
		existing.Close(websocket.StatusPolicyViolation, "connection superseded by a new session")
		delete(r.conns, connectionID)
		r.log.Info().Int64("connection_id", connectionID).Msg("stale connection superseded")
	}

	conn := NewConnection(connectionID, transport)
	r.conns[connectionID] = conn
	return conn, nil
}

// Send delivers msg to the selected recipients. A nil selection, or one with
// All set, broadcasts to every connection registered at the moment of the
// call. Ids without a live connection are skipped silently: a participant
// that departed between message construction and send is not an error. One
// recipient's failure never aborts delivery to the rest.
func (r *Room) Send(ctx context.Context, msg Message, to *Recipients) {
	for _, conn := range r.selectConnections(to) {
		sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
		err := conn.Send(sendCtx, msg)
		cancel()
		if err != nil {
			r.log.Warn().Err(err).
				Int64("connection_id", conn.ID()).
				Str("message_type", string(msg.Type)).
				Msg("send to connection failed")
		}
	}
}

// Receive runs fn for every inbound frame from conn until the peer departs,
// fn fails, or ctx ends. Whatever the exit path, the connection is closed
// with a reason mapped from the terminating error and dropped from the room,
// so the lifecycle of the connection is tied to room bookkeeping. The caller
// passes the exact connection it admitted rather than an id: a session
// superseded before entering its loop must fail on its own dead connection,
// not capture the replacement registered under the same id.
func (r *Room) Receive(ctx context.Context, conn *Connection, fn func(*Inbound) error) (err error) {
	defer func() {
		code, reason := CloseStatus(err)
		r.Drop(conn, code, reason)
	}()

	for {
		frame, rerr := conn.Receive(ctx)
		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				return nil
			}
			err = rerr
			return err
		}
		if err = fn(frame); err != nil {
			return err
		}
	}
}

// Drop closes conn and unregisters it. The slot is only cleared if it still
// holds this exact connection: a superseded session must not evict its
// replacement.
func (r *Room) Drop(conn *Connection, code websocket.StatusCode, reason string) {
	conn.Close(code, reason)

	r.mu.Lock()
	if current, ok := r.conns[conn.ID()]; ok && current == conn {
		delete(r.conns, conn.ID())
	}
	r.mu.Unlock()
}

func (r *Room) selectConnections(to *Recipients) []*Connection {
	r.mu.Lock()
	defer r.mu.Unlock()

	if to == nil || to.All {
		conns := make([]*Connection, 0, len(r.conns))
		for _, conn := range r.conns {
			conns = append(conns, conn)
		}
		return conns
	}

	conns := make([]*Connection, 0, len(to.IDs))
	for _, id := range to.IDs {
		if conn, ok := r.conns[id]; ok {
			conns = append(conns, conn)
		}
	}
	return conns
}
