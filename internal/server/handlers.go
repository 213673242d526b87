// Package server exposes HTTP handlers, including WebSocket upgrades, health
// checks, and read-only hub snapshots.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const snapshotTimeout = 2 * time.Second

// WebSocketHandler handles WebSocket upgrade requests and manages client connections.
// It validates that the request uses the GET method, upgrades the HTTP connection
// to WebSocket, registers a new Client with the hub, and starts the client's
// read/write pumps.
func (s *Server) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "addr", r.RemoteAddr, "error", err)
		return
	}

	client := NewClient(uuid.NewString(), conn, s.hub, r.RemoteAddr, s.cfg, s.logger)

	// Register before the pumps start so available_rooms is the first frame
	// and no event from this client can overtake its registration.
	if err := s.hub.Register(client); err != nil {
		s.logger.Warn("rejecting connection", "addr", r.RemoteAddr, "error", err)
		_ = conn.Close()
		return
	}

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		client.writePump()
	}()
	go func() {
		defer s.wg.Done()
		client.readPump()
	}()
}

// HealthHandler provides a simple health check endpoint that returns server status.
// It responds with a plain text message indicating the server is running.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "RoomChat server is running!")
}

// StatsHandler reports connection and per-room counters.
func (s *Server) StatsHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), snapshotTimeout)
	defer cancel()

	stats, err := s.hub.Stats(ctx)
	if err != nil {
		s.logger.Warn("stats unavailable", "error", err)
		http.Error(w, "hub unavailable", http.StatusServiceUnavailable)
		return
	}
	s.writeJSON(w, stats)
}

// RoomsHandler lists every known room in creation order.
func (s *Server) RoomsHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), snapshotTimeout)
	defer cancel()

	rooms, err := s.hub.Rooms(ctx)
	if err != nil {
		s.logger.Warn("room list unavailable", "error", err)
		http.Error(w, "hub unavailable", http.StatusServiceUnavailable)
		return
	}
	s.writeJSON(w, map[string][]string{"rooms": rooms})
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("error writing JSON response", "error", err)
	}
}
