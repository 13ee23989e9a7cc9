package realtime

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 32
)

// client bridges one hub channel to one websocket.
type client struct {
	conn    *websocket.Conn
	channel *Channel

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

// Serve streams changes for diaryID to conn until the peer goes away. It
// blocks, so call it from the upgrading handler.
func Serve(hub *Hub, conn *websocket.Conn, diaryID uuid.UUID) {
	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	c.channel = hub.Open(Filter{DiaryID: diaryID}, Handlers{
		OnInsert: c.enqueue,
		OnUpdate: c.enqueue,
		OnDelete: c.enqueue,
	})

	go c.writePump()
	c.readPump()
}

func (c *client) enqueue(change Change) {
	data, err := json.Marshal(change)
	if err != nil {
		log.Printf("Realtime: Failed to marshal change: %v", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		// Too slow to keep up; the client reloads on reconnect.
		log.Printf("Realtime: send buffer full for diary %s, closing", change.DiaryID)
		c.closeSendLocked()
	}
}

func (c *client) closeSend() {
	c.mu.Lock()
	c.closeSendLocked()
	c.mu.Unlock()
}

func (c *client) closeSendLocked() {
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// readPump only services control frames; clients do not send data.
func (c *client) readPump() {
	defer func() {
		c.channel.Close()
		c.closeSend()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("Realtime: read error: %v", err)
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
