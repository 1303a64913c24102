// Package server coordinates client registration, inbound chat events and
// connection cleanup for the roomchat WebSocket system via the Hub type.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Tyrowin/roomchat/internal/chat"
	"github.com/Tyrowin/roomchat/internal/presence"
)

// inbound is one frame read from a client, or the reason it was refused
// before reaching the protocol.
type inbound struct {
	client *Client
	frame  Frame
	err    error
}

// Hub owns every live client and the room session protocol. A single
// goroutine (Run) handles registrations, events and disconnects one at a time,
// so presence changes and the notifications they cause never interleave.
type Hub struct {
	cfg      Config
	logger   *slog.Logger
	protocol *chat.Protocol
	metrics  *Metrics

	clients map[string]*Client
	mutex   sync.RWMutex

	register   chan *Client
	unregister chan *Client
	inbound    chan inbound

	// stale holds clients whose send buffer overflowed during the current
	// event. Only touched by the Run goroutine.
	stale []*Client

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewHub creates a Hub whose protocol starts with no participants. Run must be
// started before clients can register.
func NewHub(cfg Config, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())

	h := &Hub{
		cfg:        sanitizeConfig(cfg),
		logger:     logger,
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan inbound),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	h.protocol = chat.NewProtocol(h, logger)
	h.metrics = NewMetrics(h.protocol)
	return h
}

// Metrics returns the hub's collectors.
func (h *Hub) Metrics() *Metrics {
	return h.metrics
}

// ClientCount returns the number of registered connections.
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// Register hands a freshly upgraded client to the hub. It returns false when
// the hub is shutting down.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.ctx.Done():
		return false
	}
}

func (h *Hub) submit(msg inbound) {
	select {
	case h.inbound <- msg:
	case <-h.ctx.Done():
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.ctx.Done():
	}
}

// Run starts the hub's main event loop. It returns after Shutdown.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			if client == nil {
				h.logger.Warn("received nil client registration; skipping")
				continue
			}
			h.addClient(client)

		case client := <-h.unregister:
			h.disconnect(client)

		case msg := <-h.inbound:
			h.handleInbound(msg)
		}

		h.dropStale()
	}
}

func (h *Hub) addClient(c *Client) {
	h.mutex.Lock()
	h.clients[c.id] = c
	count := len(h.clients)
	h.mutex.Unlock()

	h.metrics.connections.Inc()
	h.logger.Info("client registered",
		"conn_id", c.id,
		"addr", c.addr,
		"subject", c.identity.Subject,
		"clients", count)

	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		c.writePump()
	}()
	go func() {
		defer h.wg.Done()
		c.readPump()
	}()
}

// removeClient forgets c and closes its send channel. It reports false when c
// was already gone.
func (h *Hub) removeClient(c *Client) bool {
	h.mutex.Lock()
	if h.clients[c.id] != c {
		h.mutex.Unlock()
		return false
	}
	delete(h.clients, c.id)
	count := len(h.clients)
	h.mutex.Unlock()

	close(c.send)
	h.metrics.connections.Dec()
	h.logger.Info("client unregistered", "conn_id", c.id, "addr", c.addr, "clients", count)
	return true
}

func (h *Hub) isRegistered(c *Client) bool {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.clients[c.id] == c
}

func (h *Hub) disconnect(c *Client) {
	if h.removeClient(c) {
		h.protocol.Disconnect(c.id)
	}
}

// dropStale disconnects clients that could not keep up. Their departure
// notifications may overflow further buffers, so the queue is drained until
// empty.
func (h *Hub) dropStale() {
	for len(h.stale) > 0 {
		c := h.stale[0]
		h.stale = h.stale[1:]
		c.stale = false
		if h.isRegistered(c) {
			h.logger.Warn("dropping client with full send buffer", "conn_id", c.id, "addr", c.addr)
			h.disconnect(c)
		}
	}
}

func (h *Hub) handleInbound(msg inbound) {
	c := msg.client
	if !h.isRegistered(c) {
		return
	}

	if msg.err != nil {
		h.ack(c, msg.frame.Ack, msg.err)
		return
	}

	switch msg.frame.Event {
	case EventJoin:
		h.metrics.events.WithLabelValues(EventJoin).Inc()
		var req JoinRequest
		err := decodeData(msg.frame, &req)
		if err == nil {
			err = h.protocol.Join(c.id, req.Name, req.Room)
		}
		var verr *presence.ValidationError
		if errors.As(err, &verr) || errors.Is(err, chat.ErrAlreadyJoined) {
			h.metrics.joinRejected.Inc()
		}
		h.ack(c, msg.frame.Ack, err)

	case EventSendMessage:
		h.metrics.events.WithLabelValues(EventSendMessage).Inc()
		var req SendMessageRequest
		if err := decodeData(msg.frame, &req); err != nil {
			h.ack(c, msg.frame.Ack, err)
			return
		}
		h.protocol.SendMessage(c.id, req.Text)
		h.ack(c, msg.frame.Ack, nil)

	default:
		h.metrics.events.WithLabelValues("unknown").Inc()
		h.ack(c, msg.frame.Ack, fmt.Errorf("%w: %s", ErrUnknownEvent, msg.frame.Event))
	}
}

// Emit implements chat.Emitter. It never blocks: a client whose buffer is
// full loses the frame and is scheduled for removal.
func (h *Hub) Emit(connID string, ev chat.Event) {
	h.mutex.RLock()
	c := h.clients[connID]
	h.mutex.RUnlock()
	if c == nil {
		return
	}

	payload, err := encodeEvent(ev)
	if err != nil {
		h.logger.Error("encoding event", "event", ev.Name, "err", err)
		return
	}
	h.deliver(c, payload)
}

func (h *Hub) ack(c *Client, id *int64, err error) {
	if id == nil {
		return
	}
	h.deliver(c, encodeAck(*id, err))
}

func (h *Hub) deliver(c *Client, payload []byte) {
	select {
	case c.send <- payload:
	default:
		h.metrics.dropped.Inc()
		if !c.stale {
			c.stale = true
			h.stale = append(h.stale, c)
		}
	}
}

// shutdownClients closes every send channel so the write pumps say goodbye
// and close their connections. Presence is cleared without notifications.
func (h *Hub) shutdownClients() {
	h.logger.Info("shutting down all client connections")

	h.mutex.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for id, c := range h.clients {
		clients = append(clients, c)
		delete(h.clients, id)
	}
	h.mutex.Unlock()

	for _, c := range clients {
		close(c.send)
		h.protocol.Forget(c.id)
		h.metrics.connections.Dec()
	}

	h.logger.Info("closed client connections", "count", len(clients))
}

// Shutdown initiates graceful shutdown of the hub and waits for all goroutines to complete.
// It returns after all client connections are closed and goroutines have finished,
// or when the timeout is reached.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.logger.Info("initiating hub shutdown")

	h.cancel()
	<-h.done

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.logger.Info("hub shutdown completed")
		return nil
	case <-time.After(timeout):
		h.logger.Warn("hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
