package chat

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var errBufferFull = errors.New("send buffer full")

// recordingConn captures every frame the hub sends to it.
type recordingConn struct {
	id       string
	mu       sync.Mutex
	frames   [][]byte
	closed   bool
	sendErr  error
	closeErr error
}

func newRecordingConn(id string) *recordingConn {
	return &recordingConn{id: id}
}

func (c *recordingConn) ID() string { return c.id }

func (c *recordingConn) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.frames = append(c.frames, data)
	return nil
}

func (c *recordingConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return c.closeErr
}

func (c *recordingConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *recordingConn) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = nil
}

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func (c *recordingConn) received(t *testing.T) []frame {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]frame, 0, len(c.frames))
	for _, raw := range c.frames {
		var f frame
		require.NoError(t, json.Unmarshal(raw, &f))
		out = append(out, f)
	}
	return out
}

func (c *recordingConn) eventNames(t *testing.T) []string {
	t.Helper()
	var names []string
	for _, f := range c.received(t) {
		names = append(names, f.Event)
	}
	return names
}

// named decodes every received frame with the given event name into T.
func named[T any](t *testing.T, c *recordingConn, event string) []T {
	t.Helper()
	var out []T
	for _, f := range c.received(t) {
		if f.Event != event {
			continue
		}
		var v T
		require.NoError(t, json.Unmarshal(f.Data, &v))
		out = append(out, v)
	}
	return out
}

var fixedNow = time.Date(2024, 3, 9, 14, 5, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestHub(rooms ...string) *Hub {
	return NewHub(
		NewMessageStore(rooms...),
		NewTypingTracker(),
		NewPresenceRegistry(),
		WithClock(func() time.Time { return fixedNow }),
		WithLogger(discardLogger()),
	)
}

// connectAll registers conns directly, bypassing the Run loop.
func connectAll(t *testing.T, h *Hub, conns ...*recordingConn) {
	t.Helper()
	for _, c := range conns {
		require.NoError(t, h.connect(c))
	}
}

func resetAll(conns ...*recordingConn) {
	for _, c := range conns {
		c.reset()
	}
}
