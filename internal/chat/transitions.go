package chat

import (
	"fmt"
	"strings"
)

// Timestamp layout for messages (HH:MM).
const timestampLayout = "15:04"

// handle dispatches one inbound event for connID.
func (h *Hub) handle(connID string, ev Inbound) {
	h.process(func() error {
		if ev == nil {
			return fmt.Errorf("event from %s: %w: nil event", connID, ErrMalformed)
		}
		if _, ok := h.conns[connID]; !ok {
			return fmt.Errorf("%s from %s: %w", ev.EventName(), connID, ErrUnknownConn)
		}
		if err := ev.validate(); err != nil {
			return fmt.Errorf("%s from %s: %w", ev.EventName(), connID, err)
		}

		var err error
		switch e := ev.(type) {
		case JoinRoom:
			h.joinRoom(connID, e)
		case SendMessage:
			err = h.sendMessage(connID, e)
		case Typing:
			err = h.startTyping(connID, e)
		case StopTyping:
			err = h.stopTyping(connID, e)
		case Disconnect:
			h.disconnect(connID)
		default:
			err = ErrUnknownEvent
		}
		if err != nil {
			return fmt.Errorf("%s from %s: %w", ev.EventName(), connID, err)
		}
		return nil
	})
}

// connect moves a new connection into the anonymous state.
func (h *Hub) connect(conn Conn) error {
	if conn == nil {
		return fmt.Errorf("register: %w: nil connection", ErrMalformed)
	}
	id := conn.ID()
	if _, exists := h.conns[id]; exists {
		return fmt.Errorf("register %s: %w", id, ErrDuplicateConn)
	}
	h.conns[id] = conn
	h.logger.Info("client registered", "conn", id, "clients", len(h.conns))

	h.sendTo(id, AvailableRooms{Rooms: h.store.Rooms()})
	return nil
}

// joinRoom binds the connection to (username, room). Leave and join
// notifications are only sent when the room actually changes; re-joining
// the current room just refreshes history and presence.
func (h *Hub) joinRoom(connID string, ev JoinRoom) {
	h.ensureRoom(ev.Room)
	prev, hadPrev := h.presence.Bind(connID, ev.Username, ev.Room)
	changed := !hadPrev || prev.Room != ev.Room

	if hadPrev && prev.Room != ev.Room {
		purged := h.typing.Purge(prev.Room, prev.Username)
		h.broadcastRoom(prev.Room, UserLeft{Username: prev.Username, Room: prev.Room}, "")
		h.broadcastRoom(prev.Room, h.onlineUsers(prev.Room), "")
		if purged {
			h.broadcastRoom(prev.Room, h.typingUsers(prev.Room), "")
		}
	} else if hadPrev && prev.Username != ev.Username {
		if h.typing.Purge(prev.Room, prev.Username) {
			h.broadcastRoom(prev.Room, h.typingUsers(prev.Room), connID)
		}
	}

	h.sendTo(connID, InitialMessages{Room: ev.Room, Messages: h.store.History(ev.Room)})
	h.broadcastRoom(ev.Room, h.onlineUsers(ev.Room), "")
	if changed {
		h.broadcastRoom(ev.Room, UserJoined{Username: ev.Username, Room: ev.Room}, connID)
	}

	h.logger.Info("user joined room", "conn", connID, "username", ev.Username, "room", ev.Room, "switched", changed)
}

// sendMessage appends to the room log, echoes to the whole room and sends
// the unread signal to every other connection in the hub.
func (h *Hub) sendMessage(connID string, ev SendMessage) error {
	if err := h.checkBinding(connID, ev.Username, ev.Room); err != nil {
		return err
	}
	if strings.TrimSpace(ev.Message) == "" {
		return ErrEmptyMessage
	}

	msg := Message{
		Username:     ev.Username,
		Message:      ev.Message,
		Room:         ev.Room,
		Timestamp:    h.now().Format(timestampLayout),
		ConnectionID: connID,
	}
	h.store.Append(ev.Room, msg)

	h.broadcastRoom(ev.Room, ReceiveMessage{Message: msg}, "")
	h.broadcastAll(NewMessageInRoom{Room: ev.Room}, connID)
	return nil
}

func (h *Hub) startTyping(connID string, ev Typing) error {
	if err := h.checkBinding(connID, ev.Username, ev.Room); err != nil {
		return err
	}
	h.typing.StartTyping(ev.Room, ev.Username)
	h.broadcastRoom(ev.Room, h.typingUsers(ev.Room), connID)
	return nil
}

func (h *Hub) stopTyping(connID string, ev StopTyping) error {
	if err := h.checkBinding(connID, ev.Username, ev.Room); err != nil {
		return err
	}
	h.typing.StopTyping(ev.Room, ev.Username)
	h.broadcastRoom(ev.Room, h.typingUsers(ev.Room), connID)
	return nil
}

// disconnect removes the connection for good.
func (h *Hub) disconnect(connID string) {
	delete(h.conns, connID)

	b, ok := h.presence.Unbind(connID)
	if ok {
		purged := h.typing.Purge(b.Room, b.Username)
		h.broadcastRoom(b.Room, UserLeft{Username: b.Username, Room: b.Room}, "")
		h.broadcastRoom(b.Room, h.onlineUsers(b.Room), "")
		if purged {
			h.broadcastRoom(b.Room, h.typingUsers(b.Room), "")
		}
	}

	h.logger.Info("client unregistered", "conn", connID, "joined", ok, "clients", len(h.conns))
}

// checkBinding rejects events from anonymous connections and events whose
// identity does not match the connection's binding.
func (h *Hub) checkBinding(connID, username, room string) error {
	b, ok := h.presence.Lookup(connID)
	if !ok {
		return ErrNotJoined
	}
	if b.Username != username || b.Room != room {
		return fmt.Errorf("%w: bound to %s@%s", ErrBindingMismatch, b.Username, b.Room)
	}
	return nil
}

func (h *Hub) ensureRoom(room string) {
	h.store.EnsureRoom(room)
	h.typing.EnsureRoom(room)
}

func (h *Hub) onlineUsers(room string) OnlineUsersUpdate {
	return OnlineUsersUpdate{Room: room, Users: h.presence.UsersInRoom(room)}
}

func (h *Hub) typingUsers(room string) UserTypingUpdate {
	return UserTypingUpdate{Room: room, Users: h.typing.Current(room)}
}
