package chat

// TypingTracker holds the set of typing usernames per room, in the order
// they started typing. It has no timers: a user stays marked until a
// stop_typing, a room switch or a disconnect purges the entry.
type TypingTracker struct {
	rooms map[string][]string
}

// NewTypingTracker returns an empty tracker.
func NewTypingTracker() *TypingTracker {
	return &TypingTracker{rooms: make(map[string][]string)}
}

// EnsureRoom creates an empty typing set for room.
func (t *TypingTracker) EnsureRoom(room string) {
	if _, ok := t.rooms[room]; !ok {
		t.rooms[room] = []string{}
	}
}

// StartTyping adds username to room's set. It reports whether the set changed.
func (t *TypingTracker) StartTyping(room, username string) bool {
	t.EnsureRoom(room)
	if indexOf(t.rooms[room], username) >= 0 {
		return false
	}
	t.rooms[room] = append(t.rooms[room], username)
	return true
}

// StopTyping removes username from room's set. It reports whether the set
// changed.
func (t *TypingTracker) StopTyping(room, username string) bool {
	users, ok := t.rooms[room]
	if !ok {
		return false
	}
	i := indexOf(users, username)
	if i < 0 {
		return false
	}
	t.rooms[room] = append(users[:i:i], users[i+1:]...)
	return true
}

// Purge force-removes username from room, used on disconnect and room switch.
func (t *TypingTracker) Purge(room, username string) bool {
	return t.StopTyping(room, username)
}

// Current returns a copy of room's typing set.
func (t *TypingTracker) Current(room string) []string {
	return append([]string{}, t.rooms[room]...)
}

func indexOf(list []string, v string) int {
	for i, s := range list {
		if s == v {
			return i
		}
	}
	return -1
}
