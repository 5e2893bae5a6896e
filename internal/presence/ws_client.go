package presence

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// WebSocketClient implements Client over a gorilla/websocket connection.
type WebSocketClient struct {
	userID uint64
	connID string
	conn   *websocket.Conn
	hub    *Hub
	send   chan Event
	done   chan struct{}

	closeOnce sync.Once
}

// NewWebSocketClient wraps an upgraded connection. The caller registers
// it with the hub and calls Run.
func NewWebSocketClient(hub *Hub, userID uint64, connID string, conn *websocket.Conn) *WebSocketClient {
	return &WebSocketClient{
		userID: userID,
		connID: connID,
		conn:   conn,
		hub:    hub,
		send:   make(chan Event, 256),
		done:   make(chan struct{}),
	}
}

func (c *WebSocketClient) UserID() uint64            { return c.userID }
func (c *WebSocketClient) ConnID() string            { return c.connID }
func (c *WebSocketClient) SendChannel() chan<- Event { return c.send }

// Run starts the read and write pumps.
func (c *WebSocketClient) Run() {
	go c.writePump()
	go c.readPump()
}

// Close signals the write pump to shut the connection down. The send
// channel itself is never closed: the hub may still hold a reference to
// a replaced client and queue events on it.
func (c *WebSocketClient) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *WebSocketClient) readPump() {
	defer func() {
		c.hub.Unregister(context.Background(), c)
		c.Close()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.appCtx.Logger.Debug("websocket read error", "user", c.userID, "err", err)
			}
			break
		}

		var frame inboundFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			c.hub.appCtx.Logger.Debug("bad websocket frame", "user", c.userID, "err", err)
			continue
		}

		c.hub.handleInbound(c, frame)
	}
}

func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case ev := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

			// drain anything already queued
			n := len(c.send)
			for i := 0; i < n; i++ {
				extra, err := json.Marshal(<-c.send)
				if err != nil {
					continue
				}
				if err := c.conn.WriteMessage(websocket.TextMessage, extra); err != nil {
					return
				}
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
