package chat

// Binding is the identity a connection takes on when it joins a room.
type Binding struct {
	Username string
	Room     string
}

// PresenceRegistry maps live connections to their binding and keeps, per
// room, the bound connections in bind order. Each connection counts on its
// own: one username joined twice in a room is listed twice.
//
// Like the other stores it belongs to the hub goroutine.
type PresenceRegistry struct {
	bindings map[string]Binding
	rooms    map[string][]string
}

// NewPresenceRegistry returns an empty registry.
func NewPresenceRegistry() *PresenceRegistry {
	return &PresenceRegistry{
		bindings: make(map[string]Binding),
		rooms:    make(map[string][]string),
	}
}

// Bind records or replaces the binding of connID and returns the previous
// one, if any. Re-binding into the same room keeps the connection's position
// in the presence list.
func (p *PresenceRegistry) Bind(connID, username, room string) (Binding, bool) {
	prev, had := p.bindings[connID]
	p.bindings[connID] = Binding{Username: username, Room: room}

	if had && prev.Room == room {
		return prev, true
	}
	if had {
		p.removeFromRoom(prev.Room, connID)
	}
	p.rooms[room] = append(p.rooms[room], connID)
	return prev, had
}

// Unbind removes the binding of connID. The bool is false when the
// connection never joined.
func (p *PresenceRegistry) Unbind(connID string) (Binding, bool) {
	b, ok := p.bindings[connID]
	if !ok {
		return Binding{}, false
	}
	delete(p.bindings, connID)
	p.removeFromRoom(b.Room, connID)
	return b, true
}

// Lookup returns the binding of connID.
func (p *PresenceRegistry) Lookup(connID string) (Binding, bool) {
	b, ok := p.bindings[connID]
	return b, ok
}

// UsersInRoom returns the username of every connection bound to room.
func (p *PresenceRegistry) UsersInRoom(room string) []string {
	ids := p.rooms[room]
	users := make([]string, 0, len(ids))
	for _, id := range ids {
		users = append(users, p.bindings[id].Username)
	}
	return users
}

// ConnectionsInRoom returns the ids of the connections bound to room.
func (p *PresenceRegistry) ConnectionsInRoom(room string) []string {
	return append([]string{}, p.rooms[room]...)
}

// Len returns the number of bound connections.
func (p *PresenceRegistry) Len() int {
	return len(p.bindings)
}

func (p *PresenceRegistry) removeFromRoom(room, connID string) {
	ids := p.rooms[room]
	i := indexOf(ids, connID)
	if i < 0 {
		return
	}
	ids = append(ids[:i:i], ids[i+1:]...)
	if len(ids) == 0 {
		delete(p.rooms, room)
		return
	}
	p.rooms[room] = ids
}
