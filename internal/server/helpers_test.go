package server_test

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/roomchat/internal/chat"
	"github.com/Tyrowin/roomchat/internal/server"
)

const (
	testOriginURL = "http://localhost:8080"
	readTimeout   = 2 * time.Second
)

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startTestServer runs a hub and gateway behind an httptest server. The
// customize hook may adjust the configuration before the gateway is built.
func startTestServer(t *testing.T, customize func(cfg *server.Config)) (*httptest.Server, *chat.Hub) {
	t.Helper()

	cfg := server.NewConfig()
	cfg.AllowedOrigins = []string{testOriginURL}
	cfg.Rooms = []string{"general", "random"}
	if customize != nil {
		customize(cfg)
	}

	hub := chat.NewHub(
		chat.NewMessageStore(cfg.Rooms...),
		chat.NewTypingTracker(),
		chat.NewPresenceRegistry(),
		chat.WithLogger(discardLogger()),
	)
	go hub.Run()

	gateway := server.NewServer(*cfg, hub, discardLogger())
	testServer := httptest.NewServer(gateway.Routes())

	t.Cleanup(func() {
		_ = hub.Shutdown(time.Second)
		_ = gateway.Wait(time.Second)
		testServer.Close()
	})
	return testServer, hub
}

func buildWebSocketURL(t *testing.T, baseURL string) string {
	t.Helper()
	require.True(t, strings.HasPrefix(baseURL, "http://"), "unexpected base URL %q", baseURL)
	return "ws://" + strings.TrimPrefix(baseURL, "http://") + "/ws"
}

// connectWebSocket dials the gateway with an allowed Origin header and
// consumes the available_rooms greeting.
func connectWebSocket(t *testing.T, wsURL string) (*websocket.Conn, []string) {
	t.Helper()

	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	headers := http.Header{}
	headers.Set("Origin", testOriginURL)

	conn, resp, err := dialer.Dial(wsURL, headers)
	if resp != nil {
		_ = resp.Body.Close()
	}
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	greeting := readFrame(t, conn)
	require.Equal(t, chat.EventAvailableRooms, greeting.Event)
	var rooms chat.AvailableRooms
	require.NoError(t, json.Unmarshal(greeting.Data, &rooms))
	return conn, rooms.Rooms
}

func sendEvent(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]any{"event": event, "data": data}))
}

func joinRoom(t *testing.T, conn *websocket.Conn, username, room string) {
	t.Helper()
	sendEvent(t, conn, chat.EventJoinRoom, chat.JoinRoom{Username: username, Room: room})
	readUntil(t, conn, chat.EventInitialMessages)
	readUntil(t, conn, chat.EventOnlineUsersUpdate)
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(readTimeout)))
	var f frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

// readUntil skips frames until one named event arrives and returns its data.
func readUntil(t *testing.T, conn *websocket.Conn, event string) json.RawMessage {
	t.Helper()
	for {
		f := readFrame(t, conn)
		if f.Event == event {
			return f.Data
		}
	}
}

func decode[T any](t *testing.T, data json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(data, &v))
	return v
}

// expectNoEvent fails if a frame named event arrives within timeout.
func expectNoEvent(t *testing.T, conn *websocket.Conn, event string, timeout time.Duration) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(timeout)))
	for {
		var f frame
		err := conn.ReadJSON(&f)
		if err != nil {
			if isTimeout(err) {
				return
			}
			t.Fatalf("unexpected error while waiting for absence of %s: %v", event, err)
		}
		if f.Event == event {
			t.Fatalf("expected no %s, got %s", event, string(f.Data))
		}
	}
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
