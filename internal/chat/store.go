package chat

// MessageStore is the append-only, per-room message log. It is owned by the
// hub goroutine and is not safe for concurrent use.
//
// Logs grow without bound; capping memory is left to the operator.
type MessageStore struct {
	logs  map[string][]Message
	order []string
}

// NewMessageStore creates a store with the given rooms already present.
func NewMessageStore(rooms ...string) *MessageStore {
	s := &MessageStore{logs: make(map[string][]Message)}
	for _, room := range rooms {
		s.EnsureRoom(room)
	}
	return s
}

// EnsureRoom creates the log for room if it does not exist yet.
func (s *MessageStore) EnsureRoom(room string) {
	if _, ok := s.logs[room]; ok {
		return
	}
	s.logs[room] = []Message{}
	s.order = append(s.order, room)
}

// Exists reports whether room has been created.
func (s *MessageStore) Exists(room string) bool {
	_, ok := s.logs[room]
	return ok
}

// Append adds msg to the end of room's log, creating the room if needed.
func (s *MessageStore) Append(room string, msg Message) {
	s.EnsureRoom(room)
	s.logs[room] = append(s.logs[room], msg)
}

// History returns a copy of room's log in arrival order. An unknown room
// yields an empty, non-nil slice.
func (s *MessageStore) History(room string) []Message {
	log := s.logs[room]
	out := make([]Message, len(log))
	copy(out, log)
	return out
}

// Count returns the number of messages in room.
func (s *MessageStore) Count(room string) int {
	return len(s.logs[room])
}

// Rooms returns every room name in creation order.
func (s *MessageStore) Rooms() []string {
	return append([]string{}, s.order...)
}
