// Package server manages individual WebSocket clients, handling read/write
// pumps, rate limiting, and lifecycle control for each connection.
package server

import (
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Tyrowin/roomchat/internal/auth"
)

// Client is one live WebSocket connection. Its id is the connection
// identifier the room protocol and presence registry key on.
type Client struct {
	id       string
	conn     *websocket.Conn
	send     chan []byte
	hub      *Hub
	addr     string
	identity auth.Identity
	limiter  *rateLimiter

	// stale is owned by the hub loop.
	stale bool
}

// NewClient wraps conn for hub under a new random connection id. The client's
// send channel is buffered so that slow peers do not stall the hub.
func NewClient(conn *websocket.Conn, hub *Hub, addr string, identity auth.Identity) *Client {
	if conn != nil {
		conn.SetReadLimit(hub.cfg.MaxMessageSize)
	}

	return &Client{
		id:       uuid.NewString(),
		conn:     conn,
		send:     make(chan []byte, hub.cfg.SendBuffer),
		hub:      hub,
		addr:     addr,
		identity: identity,
		limiter:  newRateLimiter(hub.cfg.RateLimitBurst, hub.cfg.RateLimitRefill),
	}
}

// ID returns the connection identifier.
func (c *Client) ID() string {
	return c.id
}

func (c *Client) extendReadDeadline() {
	if err := c.conn.SetReadDeadline(time.Now().Add(c.hub.cfg.PongWait)); err != nil {
		c.hub.logger.Debug("setting read deadline", "conn_id", c.id, "err", err)
	}
}

// setupReadConnection arms the idle timeout. Pongs and inbound frames push it back.
func (c *Client) setupReadConnection() {
	c.extendReadDeadline()
	c.conn.SetPongHandler(func(string) error {
		c.extendReadDeadline()
		return nil
	})
}

// logReadError records why the read loop ended.
func (c *Client) logReadError(err error) {
	log := c.hub.logger.With("conn_id", c.id, "addr", c.addr)

	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		log.Warn("message exceeded maximum size", "limit", c.hub.cfg.MaxMessageSize)
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure):
		log.Info("client disconnected", "reason", err)
	case errors.Is(err, io.EOF) || isExpectedCloseError(err):
		log.Info("client connection closed", "reason", err)
	default:
		log.Warn("websocket read error", "err", err)
	}
}

// parse turns a raw frame into the event handed to the hub. Every frame costs
// a token, decodable or not. Refused frames keep their ack id when one could
// be read so the sender still hears back.
func (c *Client) parse(raw []byte) inbound {
	frame, err := decodeFrame(raw)
	if !c.limiter.allow() {
		c.hub.logger.Warn("rate limit exceeded; discarding frame",
			"conn_id", c.id,
			"event", frame.Event,
			"burst", c.hub.cfg.RateLimitBurst,
			"interval", c.hub.cfg.RateLimitRefill)
		return inbound{client: c, frame: frame, err: ErrRateLimited}
	}
	if err != nil {
		c.hub.logger.Debug("invalid frame", "conn_id", c.id, "err", err)
		return inbound{client: c, frame: frame, err: err}
	}

	return inbound{client: c, frame: frame}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.leave(c)
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			c.hub.logger.Debug("closing connection in readPump", "conn_id", c.id, "err", err)
		}
	}()

	c.setupReadConnection()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.logReadError(err)
			return
		}
		c.extendReadDeadline()
		c.hub.submit(c.parse(raw))
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.hub.cfg.pingPeriod())
	defer func() {
		ticker.Stop()
		c.closeConnection()
	}()

	for c.processWriteEvent(ticker) {
	}
}

// processWriteEvent waits for the next write event and returns false when the
// pump should stop processing.
func (c *Client) processWriteEvent(ticker *time.Ticker) bool {
	select {
	case message, ok := <-c.send:
		return c.handleMessage(message, ok)
	case <-ticker.C:
		return c.handlePing()
	}
}

func (c *Client) closeConnection() {
	if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
		c.hub.logger.Debug("closing connection in writePump", "conn_id", c.id, "err", err)
	}
}

// handleMessage writes one outgoing frame and returns false if the connection should be closed.
func (c *Client) handleMessage(message []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.hub.cfg.WriteWait)); err != nil {
		c.hub.logger.Debug("setting write deadline", "conn_id", c.id, "err", err)
		return false
	}

	if !ok {
		c.writeCloseMessage()
		return false
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		if !isExpectedCloseError(err) {
			c.hub.logger.Warn("writing message", "conn_id", c.id, "err", err)
		}
		return false
	}
	return true
}

func (c *Client) writeCloseMessage() {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := c.conn.WriteMessage(websocket.CloseMessage, msg); err != nil && !isExpectedCloseError(err) {
		c.hub.logger.Debug("writing close message", "conn_id", c.id, "err", err)
	}
}

// handlePing sends a ping message to keep the connection alive
func (c *Client) handlePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.hub.cfg.WriteWait)); err != nil {
		c.hub.logger.Debug("setting write deadline for ping", "conn_id", c.id, "err", err)
		return false
	}
	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.hub.logger.Debug("writing ping", "conn_id", c.id, "err", err)
		return false
	}
	return true
}
