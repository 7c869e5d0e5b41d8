package ws

import (
	"context"
	"errors"

	"github.com/coder/websocket"
)

var (
	// ErrRoomNotFound is returned by strict room lookups that miss.
	ErrRoomNotFound = errors.New("room does not exist")
	// ErrConnectionExists is returned when a participant already has a live
	// connection and the duplicate-session policy rejects the new one.
	ErrConnectionExists = errors.New("connection already exists")
	// ErrConnectionNotFound is returned by strict connection lookups that miss.
	ErrConnectionNotFound = errors.New("connection does not exist")
	// ErrInvalidState is returned for operations on a connection that is not
	// in the required transport state. This is a caller bug, not a transient
	// condition.
	ErrInvalidState = errors.New("connection state is invalid")
	// ErrInvalidMessageType is returned for inbound frames whose discriminator
	// does not match the known variant set.
	ErrInvalidMessageType = errors.New("invalid message type")
	// ErrInvalidMessage is returned for inbound frames that do not decode into
	// the message schema.
	ErrInvalidMessage = errors.New("invalid message")
)

// CloseStatus maps a session error to the close code and reason sent to the
// peer. Every error in the taxonomy maps to exactly one code: admission and
// state errors close with a policy violation, protocol errors with
// unsupported data, context cancellation with going away, anything else with
// internal error.
func CloseStatus(err error) (websocket.StatusCode, string) {
	switch {
	case err == nil:
		return websocket.StatusNormalClosure, "session ended"
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		return websocket.StatusGoingAway, "server going away"
	case errors.Is(err, ErrInvalidMessageType) || errors.Is(err, ErrInvalidMessage):
		return websocket.StatusUnsupportedData, err.Error()
	case errors.Is(err, ErrConnectionExists) ||
		errors.Is(err, ErrConnectionNotFound) ||
		errors.Is(err, ErrRoomNotFound) ||
		errors.Is(err, ErrInvalidState):
		return websocket.StatusPolicyViolation, err.Error()
	default:
		return websocket.StatusInternalError, "internal error"
	}
}
