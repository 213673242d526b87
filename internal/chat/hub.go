// Package chat coordinates room membership, message history, presence and
// typing state for connected clients.
//
// All state is owned by a single Hub goroutine. Registrations, inbound
// events, disconnects and snapshot queries are funnelled through channels
// and handled one at a time, including every outbound delivery they cause.
package chat

import (
	"context"
	"log/slog"
	"time"
)

// Conn is the hub's view of a live transport session.
type Conn interface {
	// ID is stable for the lifetime of the session.
	ID() string
	// Send queues a frame without blocking. An error means the frame was
	// not queued and the connection should be dropped.
	Send(data []byte) error
	Close() error
}

type inboundEvent struct {
	connID string
	event  Inbound
}

// Hub is the room coordinator. Create it with NewHub and start it with Run.
type Hub struct {
	store    *MessageStore
	typing   *TypingTracker
	presence *PresenceRegistry

	conns   map[string]Conn
	evicted []string

	register   chan Conn
	unregister chan string
	inbound    chan inboundEvent
	queries    chan func()

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Hub.
type Option func(*Hub)

// WithClock overrides the clock used to stamp messages.
func WithClock(now func() time.Time) Option {
	return func(h *Hub) { h.now = now }
}

// WithLogger sets the hub's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Hub) { h.logger = logger }
}

// NewHub creates a hub around the given stores. Every room already present
// in store is also created in typing.
func NewHub(store *MessageStore, typing *TypingTracker, presence *PresenceRegistry, opts ...Option) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		store:      store,
		typing:     typing,
		presence:   presence,
		conns:      make(map[string]Conn),
		register:   make(chan Conn),
		unregister: make(chan string),
		inbound:    make(chan inboundEvent),
		queries:    make(chan func()),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	for _, room := range store.Rooms() {
		typing.EnsureRoom(room)
	}
	return h
}

// Run processes hub traffic until Shutdown is called. It must be started
// exactly once, usually in its own goroutine.
func (h *Hub) Run() {
	defer close(h.done)
	h.logger.Info("hub started", "rooms", len(h.store.Rooms()))

	for {
		select {
		case <-h.ctx.Done():
			h.closeConnections()
			return
		case conn := <-h.register:
			h.process(func() error { return h.connect(conn) })
		case id := <-h.unregister:
			h.handle(id, Disconnect{})
		case in := <-h.inbound:
			h.handle(in.connID, in.event)
		case query := <-h.queries:
			query()
		}
	}
}

// Register adds conn as an anonymous connection. The connection receives the
// list of available rooms before any of its events are handled.
func (h *Hub) Register(conn Conn) error {
	select {
	case h.register <- conn:
		return nil
	case <-h.done:
		return ErrHubClosed
	}
}

// Unregister runs the disconnect transition for connID. Events dispatched
// for connID afterwards are dropped.
func (h *Hub) Unregister(connID string) {
	select {
	case h.unregister <- connID:
	case <-h.done:
	}
}

// Dispatch hands an inbound event to the hub. It returns once the hub has
// accepted the event, so events dispatched from one goroutine are handled in
// order.
func (h *Hub) Dispatch(connID string, ev Inbound) {
	select {
	case h.inbound <- inboundEvent{connID: connID, event: ev}:
	case <-h.done:
	}
}

// Shutdown stops Run, closing every registered connection, and waits up to
// timeout for the loop to exit.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.logger.Info("initiating hub shutdown")
	h.cancel()

	select {
	case <-h.done:
		h.logger.Info("hub shutdown completed")
		return nil
	case <-time.After(timeout):
		h.logger.Warn("hub shutdown timeout reached")
		return context.DeadlineExceeded
	}
}

// Done is closed once Run has returned.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// RoomStats summarises one room.
type RoomStats struct {
	Name     string `json:"name"`
	Members  int    `json:"members"`
	Messages int    `json:"messages"`
	Typing   int    `json:"typing"`
}

// Stats is a consistent snapshot of the hub.
type Stats struct {
	Connections int         `json:"connections"`
	Rooms       []RoomStats `json:"rooms"`
}

// Stats returns a snapshot taken inside the hub loop.
func (h *Hub) Stats(ctx context.Context) (Stats, error) {
	return query(ctx, h, h.snapshot)
}

// Rooms returns every known room in creation order.
func (h *Hub) Rooms(ctx context.Context) ([]string, error) {
	return query(ctx, h, h.store.Rooms)
}

func (h *Hub) snapshot() Stats {
	rooms := h.store.Rooms()
	stats := Stats{
		Connections: len(h.conns),
		Rooms:       make([]RoomStats, 0, len(rooms)),
	}
	for _, room := range rooms {
		stats.Rooms = append(stats.Rooms, RoomStats{
			Name:     room,
			Members:  len(h.presence.ConnectionsInRoom(room)),
			Messages: h.store.Count(room),
			Typing:   len(h.typing.Current(room)),
		})
	}
	return stats
}

func query[T any](ctx context.Context, h *Hub, fn func() T) (T, error) {
	var zero T
	result := make(chan T, 1)

	select {
	case h.queries <- func() { result <- fn() }:
	case <-h.done:
		return zero, ErrHubClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	}

	select {
	case v := <-result:
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// process runs one unit of hub work. A panic is logged and swallowed so a
// single bad event cannot stop the loop. Connections whose delivery failed
// during the work are evicted afterwards.
func (h *Hub) process(work func() error) {
	func() {
		defer func() {
			if r := recover(); r != nil {
				h.logger.Error("recovered from panic in hub", "panic", r)
			}
		}()
		if err := work(); err != nil {
			h.logger.Debug("event dropped", "error", err)
		}
	}()
	h.flushEvictions()
}

func (h *Hub) flushEvictions() {
	for len(h.evicted) > 0 {
		id := h.evicted[0]
		h.evicted = h.evicted[1:]

		conn, ok := h.conns[id]
		if !ok {
			continue
		}
		h.logger.Warn("evicting connection after failed delivery", "conn", id)
		h.disconnect(id)
		if err := conn.Close(); err != nil {
			h.logger.Debug("error closing evicted connection", "conn", id, "error", err)
		}
	}
}

func (h *Hub) closeConnections() {
	h.logger.Info("shutting down all client connections")
	for id, conn := range h.conns {
		if err := conn.Close(); err != nil {
			h.logger.Debug("error closing connection", "conn", id, "error", err)
		}
	}
	h.logger.Info("closed client connections", "count", len(h.conns))
}

// deliver queues payload for one connection and marks it for eviction when
// the transport refuses it.
func (h *Hub) deliver(id string, payload []byte) {
	conn, ok := h.conns[id]
	if !ok {
		return
	}
	if err := conn.Send(payload); err != nil {
		h.logger.Debug("delivery failed", "conn", id, "error", err)
		h.evicted = append(h.evicted, id)
	}
}

func (h *Hub) encode(ev Outbound) ([]byte, bool) {
	payload, err := Encode(ev)
	if err != nil {
		h.logger.Error("failed to encode outbound event", "event", ev.EventName(), "error", err)
		return nil, false
	}
	return payload, true
}

// sendTo delivers ev to a single connection.
func (h *Hub) sendTo(id string, ev Outbound) {
	if payload, ok := h.encode(ev); ok {
		h.deliver(id, payload)
	}
}

// broadcastRoom delivers ev to every connection bound to room except the one
// named by exclude (which may be empty).
func (h *Hub) broadcastRoom(room string, ev Outbound, exclude string) {
	payload, ok := h.encode(ev)
	if !ok {
		return
	}
	for _, id := range h.presence.ConnectionsInRoom(room) {
		if id == exclude {
			continue
		}
		h.deliver(id, payload)
	}
}

// broadcastAll delivers ev to every registered connection except exclude,
// whether or not it has joined a room.
func (h *Hub) broadcastAll(ev Outbound, exclude string) {
	payload, ok := h.encode(ev)
	if !ok {
		return
	}
	for id := range h.conns {
		if id == exclude {
			continue
		}
		h.deliver(id, payload)
	}
}
