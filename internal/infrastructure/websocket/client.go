package websocket

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"otomart/pkg/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMsgSize = 8 * 1024
)

// Client is one live connection of one authenticated user.
type Client struct {
	ID     string
	UserID int64

	conn *websocket.Conn
	send chan Event

	// rooms and sendClosed are guarded by the hub mutex.
	rooms      map[int64]struct{}
	sendClosed bool
}

// AddClient registers a connection and starts its pumps; one lightweight
// worker per connection handles its inbound events.
func (h *Hub) AddClient(userID int64, conn *websocket.Conn) *Client {
	c := &Client{
		ID:     uuid.New().String(),
		UserID: userID,
		conn:   conn,
		send:   make(chan Event, h.sendBuffer),
		rooms:  make(map[int64]struct{}),
	}

	h.register(c)

	go c.writePump()
	go c.readPump(h)

	return c
}

func (c *Client) closeSendLocked() {
	if !c.sendClosed {
		c.sendClosed = true
		close(c.send)
	}
}

func (c *Client) readPump(h *Hub) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMsgSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("Hub: read error from user %d: %v", c.UserID, err)
			}
			return
		}

		var event Event
		if err := json.Unmarshal(raw, &event); err != nil {
			h.sendError(c, 0, "Invalid event format")
			continue
		}

		h.handleInbound(c, event)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(event); err != nil {
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

func decodeAck(data interface{}) (inboundAck, bool) {
	raw, err := json.Marshal(data)
	if err != nil {
		return inboundAck{}, false
	}
	var ack inboundAck
	if err := json.Unmarshal(raw, &ack); err != nil {
		return inboundAck{}, false
	}
	return ack, true
}
