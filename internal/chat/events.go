package chat

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Event names used on the wire.
const (
	EventJoinRoom    = "join_room"
	EventSendMessage = "send_message"
	EventTyping      = "typing"
	EventStopTyping  = "stop_typing"

	EventAvailableRooms    = "available_rooms"
	EventInitialMessages   = "initial_messages"
	EventReceiveMessage    = "receive_message"
	EventNewMessageInRoom  = "new_message_in_room"
	EventOnlineUsersUpdate = "online_users_update"
	EventUserTypingUpdate  = "user_typing_update"
	EventUserJoined        = "user_joined_notification"
	EventUserLeft          = "user_left_notification"
)

// Field limits applied to inbound events.
const (
	MaxUsernameLength = 50
	MaxRoomNameLength = 100
	MaxMessageLength  = 5000
)

// Message is one chat utterance. It is immutable once appended to a room.
type Message struct {
	Username     string `json:"username"`
	Message      string `json:"message"`
	Room         string `json:"room"`
	Timestamp    string `json:"timestamp"`
	ConnectionID string `json:"connectionId"`
}

// Inbound is an event delivered by a client connection to the hub.
// The concrete types are JoinRoom, SendMessage, Typing, StopTyping and
// Disconnect.
type Inbound interface {
	EventName() string
	validate() error
}

// JoinRoom binds the connection to (Username, Room).
type JoinRoom struct {
	Username string `json:"username"`
	Room     string `json:"room"`
}

// SendMessage posts Message to Room.
type SendMessage struct {
	Username string `json:"username"`
	Message  string `json:"message"`
	Room     string `json:"room"`
}

// Typing marks Username as composing a message in Room.
type Typing struct {
	Username string `json:"username"`
	Room     string `json:"room"`
}

// StopTyping clears the typing mark for Username in Room.
type StopTyping struct {
	Username string `json:"username"`
	Room     string `json:"room"`
}

// Disconnect is produced by the transport when a connection goes away.
// It never arrives over the wire.
type Disconnect struct{}

func (JoinRoom) EventName() string    { return EventJoinRoom }
func (SendMessage) EventName() string { return EventSendMessage }
func (Typing) EventName() string      { return EventTyping }
func (StopTyping) EventName() string  { return EventStopTyping }
func (Disconnect) EventName() string  { return "disconnect" }

func (e JoinRoom) validate() error {
	return validateIdentity(e.Username, e.Room)
}

func (e SendMessage) validate() error {
	if err := validateIdentity(e.Username, e.Room); err != nil {
		return err
	}
	if len(e.Message) > MaxMessageLength {
		return fmt.Errorf("%w: message exceeds %d bytes", ErrMalformed, MaxMessageLength)
	}
	if !utf8.ValidString(e.Message) {
		return fmt.Errorf("%w: message is not valid UTF-8", ErrMalformed)
	}
	return nil
}

func (e Typing) validate() error {
	return validateIdentity(e.Username, e.Room)
}

func (e StopTyping) validate() error {
	return validateIdentity(e.Username, e.Room)
}

func (Disconnect) validate() error { return nil }

func validateIdentity(username, room string) error {
	if err := validateField("username", username, MaxUsernameLength); err != nil {
		return err
	}
	return validateField("room", room, MaxRoomNameLength)
}

func validateField(name, value string, maxLen int) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: missing %s", ErrMalformed, name)
	}
	if len(value) > maxLen {
		return fmt.Errorf("%w: %s exceeds %d bytes", ErrMalformed, name, maxLen)
	}
	if !utf8.ValidString(value) {
		return fmt.Errorf("%w: %s is not valid UTF-8", ErrMalformed, name)
	}
	return nil
}

// Outbound is an event the hub delivers to one or more connections.
type Outbound interface {
	EventName() string
}

// AvailableRooms lists every known room. Sent once to a new connection.
type AvailableRooms struct {
	Rooms []string `json:"rooms"`
}

// InitialMessages carries the full history of Room to a joining connection.
type InitialMessages struct {
	Room     string    `json:"room"`
	Messages []Message `json:"messages"`
}

// ReceiveMessage carries a newly appended message to the room.
type ReceiveMessage struct {
	Message
}

// NewMessageInRoom is the unread-counter signal. It names the room only.
type NewMessageInRoom struct {
	Room string `json:"room"`
}

// OnlineUsersUpdate is the presence list of Room.
type OnlineUsersUpdate struct {
	Room  string   `json:"room"`
	Users []string `json:"users"`
}

// UserTypingUpdate is the typing set of Room.
type UserTypingUpdate struct {
	Room  string   `json:"room"`
	Users []string `json:"users"`
}

// UserJoined announces that Username entered Room.
type UserJoined struct {
	Username string `json:"username"`
	Room     string `json:"room"`
}

// UserLeft announces that Username left Room.
type UserLeft struct {
	Username string `json:"username"`
	Room     string `json:"room"`
}

func (AvailableRooms) EventName() string    { return EventAvailableRooms }
func (InitialMessages) EventName() string   { return EventInitialMessages }
func (ReceiveMessage) EventName() string    { return EventReceiveMessage }
func (NewMessageInRoom) EventName() string  { return EventNewMessageInRoom }
func (OnlineUsersUpdate) EventName() string { return EventOnlineUsersUpdate }
func (UserTypingUpdate) EventName() string  { return EventUserTypingUpdate }
func (UserJoined) EventName() string        { return EventUserJoined }
func (UserLeft) EventName() string          { return EventUserLeft }
