// Package server exposes HTTP handlers, including WebSocket upgrades, health
// checks, and the built-in test page.
package server

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/roomchat/internal/auth"
)

// WebSocketHandler authenticates and upgrades requests on the real-time
// endpoint, then hands the new connection to the hub.
type WebSocketHandler struct {
	hub      *Hub
	authn    auth.Authenticator
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewWebSocketHandler creates the upgrade handler for hub. Origins are
// checked against the hub's configured allow-list.
func NewWebSocketHandler(hub *Hub, authn auth.Authenticator) *WebSocketHandler {
	if authn == nil {
		authn = auth.AllowAll{}
	}
	origins := newOriginPolicy(parseOrigins(hub.cfg.AllowedOrigins), hub.logger)

	h := &WebSocketHandler{hub: hub, authn: authn, logger: hub.logger}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if origins.allows(r) {
				return true
			}
			h.logger.Warn("blocked websocket connection from disallowed origin", "origin", r.Header.Get("Origin"))
			return false
		},
	}
	return h
}

// ServeHTTP only accepts GET. Unauthenticated requests get 401 before any
// upgrade is attempted.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	identity, err := h.authn.Authenticate(r)
	if err != nil {
		h.logger.Info("rejected unauthenticated websocket request", "addr", r.RemoteAddr, "err", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Info("websocket upgrade failed", "addr", r.RemoteAddr, "err", err)
		return
	}

	client := NewClient(conn, h.hub, r.RemoteAddr, identity)
	if !h.hub.Register(client) {
		_ = conn.Close()
	}
}

// HealthHandler provides a simple health check endpoint that returns server status.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "roomchat server is running!")
}

// TestPageHandler serves a minimal page for trying the room protocol by hand.
func TestPageHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	_, _ = fmt.Fprint(w, testPage)
}

const testPage = `<!DOCTYPE html>
<html>
<head>
    <title>roomchat</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #messages { border: 1px solid #ccc; height: 300px; padding: 10px; overflow-y: scroll; margin: 10px 0; }
        #roster { color: #555; }
        .error { color: #721c24; }
    </style>
</head>
<body>
    <h1>roomchat</h1>
    <div>
        <input id="name" placeholder="Name">
        <input id="room" placeholder="Room">
        <button onclick="join()">Join</button>
    </div>
    <div id="roster"></div>
    <div id="messages"></div>
    <div>
        <input id="text" placeholder="Type a message..." disabled>
        <button id="send" onclick="send()" disabled>Send</button>
    </div>
    <script>
        let ws = null;
        let seq = 0;
        const pending = {};
        const messages = document.getElementById('messages');

        function line(text, cls) {
            const el = document.createElement('div');
            if (cls) el.className = cls;
            el.textContent = text;
            messages.appendChild(el);
            messages.scrollTop = messages.scrollHeight;
        }

        function emit(event, data, cb) {
            const ack = ++seq;
            pending[ack] = cb || function () {};
            ws.send(JSON.stringify({ event: event, ack: ack, data: data }));
        }

        function join() {
            const name = document.getElementById('name').value;
            const room = document.getElementById('room').value;
            ws = new WebSocket((location.protocol === 'https:' ? 'wss://' : 'ws://') + location.host + '/ws');
            ws.onopen = function () {
                emit('join', { name: name, room: room }, function (error) {
                    if (error) { line(error, 'error'); ws.close(); return; }
                    document.getElementById('text').disabled = false;
                    document.getElementById('send').disabled = false;
                });
            };
            ws.onmessage = function (e) {
                const f = JSON.parse(e.data);
                if (f.event === 'ack') {
                    const cb = pending[f.ack];
                    delete pending[f.ack];
                    if (cb) cb(f.error);
                } else if (f.event === 'message') {
                    line(f.data.user + ': ' + f.data.text);
                } else if (f.event === 'roomData') {
                    document.getElementById('roster').textContent =
                        f.data.room + ': ' + f.data.users.map(function (u) { return u.name; }).join(', ');
                }
            };
            ws.onclose = function () { line('Connection closed'); };
        }

        function send() {
            const input = document.getElementById('text');
            if (!input.value.trim()) return;
            emit('sendMessage', { text: input.value });
            input.value = '';
        }
    </script>
</body>
</html>`
