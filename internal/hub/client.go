package hub

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/smartsensor/gateway/internal/model"
)

// wireMessage is the envelope for both directions of the WebSocket
// protocol described in spec.md §6.
type wireMessage struct {
	Type   string       `json:"type"`
	Filter *model.Filter `json:"filter,omitempty"`
}

// Client is one subscribed WebSocket connection.
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	principal Principal

	outbox     chan []byte
	dropPolicy model.DropPolicy

	mu       sync.RWMutex
	filter   model.Filter
	dropped  uint64
	closed   bool
	closedCh chan struct{}
}

func newClient(h *Hub, conn *websocket.Conn, principal Principal, filter model.Filter, dropPolicy model.DropPolicy, capacity int) *Client {
	return &Client{
		hub:        h,
		conn:       conn,
		principal:  principal,
		outbox:     make(chan []byte, capacity),
		dropPolicy: dropPolicy,
		filter:     filter,
		closedCh:   make(chan struct{}),
	}
}

func (c *Client) matches(r model.Reading) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.filter.Matches(r)
}

// offer attempts to enqueue a pre-encoded frame without blocking. Under
// slow_drop it evicts the oldest undelivered frame to make room rather
// than ever blocking the broadcaster; under disconnect it closes the
// connection instead of making room.
func (c *Client) offer(frame []byte) {
	select {
	case c.outbox <- frame:
		return
	default:
	}

	switch c.dropPolicy {
	case model.DropPolicyDisconnect:
		c.closeWithReason(ErrSlowSubscriber)
	default: // slow_drop
		select {
		case <-c.outbox:
		default:
		}
		c.mu.Lock()
		c.dropped++
		c.mu.Unlock()
		select {
		case c.outbox <- frame:
		default:
		}
	}
}

// Dropped returns the count of frames evicted under slow_drop, for the
// subscriber_dropped_frames_total metric.
func (c *Client) Dropped() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dropped
}

func (c *Client) closeWithReason(reason error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	close(c.closedCh)
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason.Error()),
		time.Now().Add(time.Second))
	c.conn.Close() //nolint:errcheck // best effort during teardown
}

// writePump serializes writes to the connection: outbox frames and
// periodic pings. Only this goroutine ever calls conn.WriteMessage, since
// gorilla/websocket connections are not safe for concurrent writers.
func (c *Client) writePump(heartbeat, pongTimeout time.Duration) {
	ticker := time.NewTicker(heartbeat)
	defer func() {
		ticker.Stop()
		c.conn.Close() //nolint:errcheck // best effort
	}()

	for {
		select {
		case frame, ok := <-c.outbox:
			if !ok {
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(pongTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(pongTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, pingFrame()); err != nil {
				return
			}
		case <-c.closedCh:
			return
		}
	}
}

// readPump drains client messages (subscribe updates, protocol pongs) and
// enforces the pong timeout; readPump owning the read deadline is what
// actually disconnects an unresponsive client.
func (c *Client) readPump(pongTimeout time.Duration) {
	defer func() {
		c.hub.remove(c)
		c.closeWithReason(ErrSlowSubscriber)
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(pongTimeout))

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongTimeout))

		var msg wireMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		switch msg.Type {
		case "pong":
			// deadline already reset above
		case "subscribe":
			if msg.Filter == nil {
				continue
			}
			narrowed, err := authorizeFilter(c.principal, *msg.Filter)
			if err != nil {
				c.closeWithReason(ErrForbiddenScope)
				return
			}
			c.mu.Lock()
			c.filter = narrowed
			c.mu.Unlock()
			c.offer(subscribedFrame())
		}
	}
}

func pingFrame() []byte {
	b, _ := json.Marshal(wireMessage{Type: "ping"})
	return b
}

func subscribedFrame() []byte {
	b, _ := json.Marshal(wireMessage{Type: "subscribed"})
	return b
}
