package ws

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// MessageType discriminates outbound websocket envelopes.
type MessageType string

const (
	MessageTypeConnect    MessageType = "connect"
	MessageTypeDisconnect MessageType = "disconnect"
	MessageTypeChat       MessageType = "message"
	MessageTypeError      MessageType = "error"
)

// ParseMessageType validates a wire discriminator against the known variants.
func ParseMessageType(s string) (MessageType, error) {
	switch mt := MessageType(s); mt {
	case MessageTypeConnect, MessageTypeDisconnect, MessageTypeChat, MessageTypeError:
		return mt, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMessageType, s)
	}
}

// Message is an immutable outbound envelope. Recipient selection is carried
// separately (Recipients), so the receivers list never reaches the wire.
type Message struct {
	Type   MessageType `json:"message_type"`
	Text   string      `json:"message"`
	Sender int64       `json:"sender,omitempty"`
}

// NewConnectMessage announces a player joining the lobby.
func NewConnectMessage(playerID int64) Message {
	return Message{
		Type: MessageTypeConnect,
		Text: fmt.Sprintf("Player %d joined the lobby.", playerID),
	}
}

// NewDisconnectMessage announces a player leaving the lobby.
func NewDisconnectMessage(playerID int64) Message {
	return Message{
		Type: MessageTypeDisconnect,
		Text: fmt.Sprintf("Player %d left the lobby.", playerID),
	}
}

// NewErrorMessage wraps an error description for the client.
func NewErrorMessage(text string) Message {
	return Message{Type: MessageTypeError, Text: text}
}

// NewChatMessage builds the relayed envelope for an inbound frame, tagging it
// with the sender's id. The frame may override the discriminator with any
// valid variant; chat is the default.
func NewChatMessage(sender int64, in *Inbound) (Message, error) {
	mt := MessageTypeChat
	if in.Type != "" {
		parsed, err := ParseMessageType(in.Type)
		if err != nil {
			return Message{}, err
		}
		mt = parsed
	}
	return Message{Type: mt, Text: in.Text, Sender: sender}, nil
}

// Recipients selects broadcast targets: every connection in the room or an
// explicit list of connection ids. The zero value selects nobody.
type Recipients struct {
	All bool
	IDs []int64
}

// Everyone broadcasts to the whole room.
var Everyone = Recipients{All: true}

// To selects an explicit set of connection ids.
func To(ids ...int64) Recipients {
	return Recipients{IDs: ids}
}

// UnmarshalJSON accepts the sentinel "all", an id list, or null (treated as
// all, matching an omitted receivers field).
func (r *Recipients) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*r = Recipients{All: true}
		return nil
	}

	var sentinel string
	if err := json.Unmarshal(data, &sentinel); err == nil {
		if sentinel != "all" {
			return fmt.Errorf("%w: receivers %q", ErrInvalidMessage, sentinel)
		}
		*r = Recipients{All: true}
		return nil
	}

	var ids []int64
	if err := json.Unmarshal(data, &ids); err != nil {
		return fmt.Errorf("%w: receivers must be \"all\" or a list of ids", ErrInvalidMessage)
	}
	*r = Recipients{IDs: ids}
	return nil
}

// Inbound is a frame received from a client. A nil Receivers field means the
// message addresses the whole room.
type Inbound struct {
	Type      string      `json:"message_type"`
	Text      string      `json:"message"`
	Receivers *Recipients `json:"receivers"`
}

// DecodeInbound strictly decodes a frame. Unknown fields and unknown
// discriminators are rejected rather than merged into the envelope.
func DecodeInbound(data []byte) (*Inbound, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var in Inbound
	if err := dec.Decode(&in); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidMessage, err)
	}
	if in.Type != "" {
		if _, err := ParseMessageType(in.Type); err != nil {
			return nil, err
		}
	}
	return &in, nil
}
