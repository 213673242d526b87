package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Errors returned while decoding or handling events. None of them is ever
// reported back to a client; the hub logs and drops the event.
var (
	ErrMalformed       = errors.New("malformed event")
	ErrUnknownEvent    = errors.New("unknown event")
	ErrNotJoined       = errors.New("connection has not joined a room")
	ErrBindingMismatch = errors.New("event does not match connection binding")
	ErrEmptyMessage    = errors.New("empty message")
	ErrUnknownConn     = errors.New("unknown or closed connection")
	ErrHubClosed       = errors.New("hub closed")
	ErrDuplicateConn   = errors.New("connection already registered")
)

// envelope is the frame layout shared by both directions.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// DecodeInbound parses one client frame into an Inbound event. Usernames and
// room names are trimmed; field validation happens in the hub.
func DecodeInbound(raw []byte) (Inbound, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(env.Data) == 0 {
		return nil, fmt.Errorf("%w: %q has no data", ErrMalformed, env.Event)
	}

	switch env.Event {
	case EventJoinRoom:
		var ev JoinRoom
		if err := decodeData(env.Data, &ev); err != nil {
			return nil, err
		}
		ev.Username, ev.Room = strings.TrimSpace(ev.Username), strings.TrimSpace(ev.Room)
		return ev, nil
	case EventSendMessage:
		var ev SendMessage
		if err := decodeData(env.Data, &ev); err != nil {
			return nil, err
		}
		ev.Username, ev.Room = strings.TrimSpace(ev.Username), strings.TrimSpace(ev.Room)
		return ev, nil
	case EventTyping:
		var ev Typing
		if err := decodeData(env.Data, &ev); err != nil {
			return nil, err
		}
		ev.Username, ev.Room = strings.TrimSpace(ev.Username), strings.TrimSpace(ev.Room)
		return ev, nil
	case EventStopTyping:
		var ev StopTyping
		if err := decodeData(env.Data, &ev); err != nil {
			return nil, err
		}
		ev.Username, ev.Room = strings.TrimSpace(ev.Username), strings.TrimSpace(ev.Room)
		return ev, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}
}

func decodeData(data json.RawMessage, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

// Encode renders an outbound event as a single frame.
func Encode(ev Outbound) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", ev.EventName(), err)
	}
	return json.Marshal(envelope{Event: ev.EventName(), Data: data})
}
