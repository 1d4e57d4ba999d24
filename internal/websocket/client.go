package websocket

import (
	"sync"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	writeTimeout   = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = 30 * time.Second
	maxMessageSize = 4 * 1024
	sendBufferSize = 256
)

type Client struct {
	id     string
	hub    *Hub
	conn   *websocket.Conn
	send   chan interface{}
	closed bool
	mu     sync.Mutex
}

func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		id:   uuid.NewString(),
		hub:  hub,
		conn: conn,
		send: make(chan interface{}, sendBufferSize),
	}
}

func (c *Client) ID() string {
	return c.id
}

// enqueue queues msg without blocking and reports whether it was accepted.
func (c *Client) enqueue(msg interface{}) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg IncomingMessage
		err := c.conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Debug().Str("clientID", c.id).Err(err).Msg("[WS] Read error")
			} else {
				log.Debug().Str("clientID", c.id).Msg("[WS] Client disconnected")
			}
			return
		}

		c.handleMessage(&msg)
	}
}

func (c *Client) handleMessage(msg *IncomingMessage) {
	switch msg.Type {
	case MessageTypePing:
		c.enqueue(&OutgoingMessage{Type: MessageTypePong})

	default:
		log.Debug().
			Str("type", string(msg.Type)).
			Msg("[WS] Unknown message type")
		c.enqueue(&OutgoingMessage{Type: MessageTypeError, Error: "unknown message type"})
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(message); err != nil {
				log.Debug().Str("clientID", c.id).Err(err).Msg("[WS] Write error")
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug().Str("clientID", c.id).Err(err).Msg("[WS] Ping error")
				return
			}
		}
	}
}
