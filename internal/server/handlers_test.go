package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/roomchat/internal/chat"
	"github.com/Tyrowin/roomchat/internal/server"
)

// unavailableHub fails every snapshot, as a stopped hub does.
type unavailableHub struct{}

func (unavailableHub) Register(chat.Conn) error { return chat.ErrHubClosed }

func (unavailableHub) Dispatch(string, chat.Inbound) {}

func (unavailableHub) Unregister(string) {}

func (unavailableHub) Stats(context.Context) (chat.Stats, error) {
	return chat.Stats{}, chat.ErrHubClosed
}

func (unavailableHub) Rooms(context.Context) ([]string, error) {
	return nil, chat.ErrHubClosed
}

func TestHealthHandler(t *testing.T) {
	for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodHead} {
		t.Run(method, func(t *testing.T) {
			req := httptest.NewRequest(method, "/", http.NoBody)
			rr := httptest.NewRecorder()

			server.HealthHandler(rr, req)

			assert.Equal(t, http.StatusOK, rr.Code)
			assert.Equal(t, "text/plain", rr.Header().Get("Content-Type"))
			assert.Equal(t, "RoomChat server is running!", rr.Body.String())
		})
	}
}

func TestRoutes(t *testing.T) {
	testServer, _ := startTestServer(t, nil)

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
	}{
		{name: "root", method: http.MethodGet, path: "/", wantStatus: http.StatusOK},
		{name: "health", method: http.MethodGet, path: "/health", wantStatus: http.StatusOK},
		{name: "stats", method: http.MethodGet, path: "/stats", wantStatus: http.StatusOK},
		{name: "rooms", method: http.MethodGet, path: "/rooms", wantStatus: http.StatusOK},
		{name: "websocket without upgrade", method: http.MethodGet, path: "/ws", wantStatus: http.StatusBadRequest},
		{name: "websocket post", method: http.MethodPost, path: "/ws", wantStatus: http.StatusMethodNotAllowed},
		{name: "websocket put", method: http.MethodPut, path: "/ws", wantStatus: http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(tt.method, testServer.URL+tt.path, http.NoBody)
			require.NoError(t, err)
			req.Header.Set("Origin", testOriginURL)

			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
		})
	}
}

func TestStatsHandler(t *testing.T) {
	testServer, _ := startTestServer(t, nil)
	wsURL := buildWebSocketURL(t, testServer.URL)

	alice, _ := connectWebSocket(t, wsURL)
	joinRoom(t, alice, "alice", "random")
	sendEvent(t, alice, chat.EventTyping, chat.Typing{Username: "alice", Room: "random"})
	sendEvent(t, alice, chat.EventSendMessage, chat.SendMessage{Username: "alice", Message: "hello", Room: "random"})
	readUntil(t, alice, chat.EventReceiveMessage)

	resp, err := http.Get(testServer.URL + "/stats")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var stats chat.Stats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, 1, stats.Connections)
	assert.Equal(t, []chat.RoomStats{
		{Name: "general"},
		{Name: "random", Members: 1, Messages: 1, Typing: 1},
	}, stats.Rooms)
}

func TestRoomsHandler(t *testing.T) {
	testServer, _ := startTestServer(t, nil)
	wsURL := buildWebSocketURL(t, testServer.URL)

	alice, _ := connectWebSocket(t, wsURL)
	joinRoom(t, alice, "alice", "lounge")

	resp, err := http.Get(testServer.URL + "/rooms")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Rooms []string `json:"rooms"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, []string{"general", "random", "lounge"}, body.Rooms)
}

func TestSnapshotHandlersReportUnavailableHub(t *testing.T) {
	gateway := server.NewServer(*server.NewConfig(), unavailableHub{}, discardLogger())

	for _, path := range []string{"/stats", "/rooms"} {
		t.Run(path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, path, http.NoBody)
			rr := httptest.NewRecorder()

			gateway.Routes().ServeHTTP(rr, req)

			assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
		})
	}
}

func TestCreateServer(t *testing.T) {
	handler := http.NewServeMux()
	srv := server.CreateServer(":9090", handler)

	assert.Equal(t, ":9090", srv.Addr)
	assert.Equal(t, handler, srv.Handler)
	assert.Positive(t, srv.ReadTimeout)
	assert.Positive(t, srv.WriteTimeout)
	assert.Positive(t, srv.IdleTimeout)
}

func TestNewServerSanitizesConfig(t *testing.T) {
	gateway := server.NewServer(server.Config{Rooms: []string{" general ", "general"}}, unavailableHub{}, nil)

	cfg := gateway.Config()
	assert.Equal(t, ":8080", cfg.Port)
	assert.Equal(t, []string{"general"}, cfg.Rooms)
	assert.Equal(t, 256, cfg.SendBuffer)
}
