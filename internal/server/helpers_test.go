package server

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

	"github.com/Tyrowin/roomchat/internal/auth"
	"github.com/Tyrowin/roomchat/internal/chat"
)

const testOrigin = "http://localhost:8080"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

type testEnv struct {
	hub   *Hub
	srv   *httptest.Server
	wsURL string
}

// newTestEnv starts a running hub behind an httptest server.
func newTestEnv(t *testing.T, authn auth.Authenticator, customize func(cfg *Config)) *testEnv {
	t.Helper()

	cfg := NewConfig()
	if customize != nil {
		customize(cfg)
	}

	hub := NewHub(*cfg, testLogger())
	go hub.Run()

	srv := httptest.NewServer(SetupRoutes(hub, authn))
	t.Cleanup(func() {
		_ = hub.Shutdown(2 * time.Second)
		srv.Close()
	})

	return &testEnv{
		hub:   hub,
		srv:   srv,
		wsURL: "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws",
	}
}

func originHeader(origin string) http.Header {
	header := http.Header{}
	if origin != "" {
		header.Set("Origin", origin)
	}
	return header
}

// dial opens a connection and waits until the hub has registered it.
func (e *testEnv) dial(t *testing.T) *websocket.Conn {
	t.Helper()

	before := e.hub.ClientCount()
	conn, resp, err := websocket.DefaultDialer.Dial(e.wsURL, originHeader(testOrigin))
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })

	require.Eventually(t, func() bool { return e.hub.ClientCount() > before },
		2*time.Second, 5*time.Millisecond)
	return conn
}

func sendFrame(t *testing.T, conn *websocket.Conn, event string, ack int64, data any) {
	t.Helper()

	f := Frame{Event: event}
	if ack > 0 {
		f.Ack = &ack
	}
	if data != nil {
		raw, err := json.Marshal(data)
		require.NoError(t, err)
		f.Data = raw
	}
	require.NoError(t, conn.WriteJSON(f))
}

func readFrame(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f Frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

// readUntilAck collects frames up to and including the ack for id.
func readUntilAck(t *testing.T, conn *websocket.Conn, id int64) ([]Frame, Frame) {
	t.Helper()

	var frames []Frame
	for {
		f := readFrame(t, conn)
		if f.Event == EventAck {
			require.NotNil(t, f.Ack)
			if *f.Ack == id {
				return frames, f
			}
		}
		frames = append(frames, f)
	}
}

// readUntilText skips frames until a message event with text arrives.
func readUntilText(t *testing.T, conn *websocket.Conn, text string) []Frame {
	t.Helper()

	var frames []Frame
	for {
		f := readFrame(t, conn)
		frames = append(frames, f)
		if f.Event == chat.EventMessage && messageOf(t, f).Text == text {
			return frames
		}
	}
}

func expectNoFrame(t *testing.T, conn *websocket.Conn, timeout time.Duration) {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(timeout)))
	_, raw, err := conn.ReadMessage()
	require.Error(t, err, "expected no frame, got %s", raw)

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return
	}
	t.Fatalf("unexpected error while waiting for absence of frame: %v", err)
}

func messageOf(t *testing.T, f Frame) chat.Message {
	t.Helper()
	require.Equal(t, chat.EventMessage, f.Event)
	var m chat.Message
	require.NoError(t, json.Unmarshal(f.Data, &m))
	return m
}

func rosterOf(t *testing.T, f Frame) (string, []string) {
	t.Helper()
	require.Equal(t, chat.EventRoomData, f.Event)
	var rd struct {
		Room  string `json:"room"`
		Users []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
			Room string `json:"room"`
		} `json:"users"`
	}
	require.NoError(t, json.Unmarshal(f.Data, &rd))

	names := make([]string, 0, len(rd.Users))
	for _, u := range rd.Users {
		require.Empty(t, u.ID, "roster must not expose connection ids")
		names = append(names, u.Name)
	}
	return rd.Room, names
}

func join(t *testing.T, conn *websocket.Conn, ack int64, name, room string) []Frame {
	t.Helper()
	sendFrame(t, conn, EventJoin, ack, JoinRequest{Name: name, Room: room})
	frames, a := readUntilAck(t, conn, ack)
	require.Empty(t, a.Error)
	return frames
}
