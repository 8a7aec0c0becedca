package websocket

import (
	"context"
	"strconv"
	"sync"
	"time"

	"otomart/internal/infrastructure/ratelimit"
	"otomart/pkg/logger"
)

// EventHandler is the hub's view of the messaging core: it authorizes room
// membership and applies durable state changes for client acks. The hub
// itself never mutates durable state.
type EventHandler interface {
	CanAccess(ctx context.Context, userID, conversationID int64) bool
	MessageDelivered(ctx context.Context, userID, conversationID, messageID int64)
	MessagesRead(ctx context.Context, userID, conversationID, uptoMessageID int64)
}

type typingKey struct {
	userID         int64
	conversationID int64
}

// Hub owns the registry of live connections. A user may hold any number of
// simultaneous connections (devices, tabs); conversation rooms are in-memory
// subscriptions only, replayed from the store on reconnect.
type Hub struct {
	mu      sync.RWMutex
	clients map[int64]map[*Client]struct{} // userID -> connections
	rooms   map[int64]map[*Client]struct{} // conversationID -> subscribers

	typingMu sync.Mutex
	typing   map[typingKey]*time.Timer

	handler    EventHandler
	limiter    *ratelimit.RateLimiter
	typingTTL  time.Duration
	sendBuffer int
}

func NewHub(typingTTL time.Duration, sendBuffer int) *Hub {
	limiter := ratelimit.NewRateLimiter()
	limiter.StartCleanupRoutine()

	return &Hub{
		clients:    make(map[int64]map[*Client]struct{}),
		rooms:      make(map[int64]map[*Client]struct{}),
		typing:     make(map[typingKey]*time.Timer),
		limiter:    limiter,
		typingTTL:  typingTTL,
		sendBuffer: sendBuffer,
	}
}

// Bind attaches the messaging core after construction; the hub is created
// first so the use cases can take it as their publisher.
func (h *Hub) Bind(handler EventHandler) {
	h.handler = handler
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	if h.clients[c.UserID] == nil {
		h.clients[c.UserID] = make(map[*Client]struct{})
	}
	h.clients[c.UserID][c] = struct{}{}
	h.mu.Unlock()

	logger.Info("Hub: client %s registered for user %d", c.ID, c.UserID)
}

// unregister drops the connection and leaves every room it had joined, so a
// torn-down connection cannot leak subscriptions.
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	if set, ok := h.clients[c.UserID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.clients, c.UserID)
		}
	}
	for conversationID := range c.rooms {
		h.leaveRoomLocked(c, conversationID)
	}
	c.closeSendLocked()
	h.mu.Unlock()

	logger.Info("Hub: client %s unregistered for user %d", c.ID, c.UserID)
}

func (h *Hub) joinRoom(c *Client, conversationID int64) {
	h.mu.Lock()
	if h.rooms[conversationID] == nil {
		h.rooms[conversationID] = make(map[*Client]struct{})
	}
	h.rooms[conversationID][c] = struct{}{}
	c.rooms[conversationID] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) leaveRoom(c *Client, conversationID int64) {
	h.mu.Lock()
	h.leaveRoomLocked(c, conversationID)
	h.mu.Unlock()
}

func (h *Hub) leaveRoomLocked(c *Client, conversationID int64) {
	if set, ok := h.rooms[conversationID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.rooms, conversationID)
		}
	}
	delete(c.rooms, conversationID)
}

// PublishToUsers delivers an event to every live connection of each target
// user except the originator. Targets with no connection are skipped: the
// hub provides no store-and-forward, clients catch up from history.
func (h *Hub) PublishToUsers(userIDs []int64, originUserID int64, event Event) {
	h.mu.RLock()
	var targets []*Client
	for _, userID := range userIDs {
		if userID == originUserID {
			continue
		}
		for c := range h.clients[userID] {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		h.deliver(c, event)
	}
}

// PublishToConversation fans an event out to the conversation's subscribed
// connections, excluding every connection of the originating user.
func (h *Hub) PublishToConversation(conversationID, originUserID int64, event Event) {
	h.mu.RLock()
	var targets []*Client
	for c := range h.rooms[conversationID] {
		if c.UserID == originUserID {
			continue
		}
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		h.deliver(c, event)
	}
}

// deliver enqueues without blocking; a connection whose outbound queue is
// full is disconnected rather than allowed to stall the publisher.
func (h *Hub) deliver(c *Client, event Event) {
	h.mu.Lock()
	if c.sendClosed {
		h.mu.Unlock()
		return
	}
	select {
	case c.send <- event:
		h.mu.Unlock()
	default:
		h.mu.Unlock()
		logger.Warn("Hub: client %s outbound queue full, disconnecting", c.ID)
		h.unregister(c)
		c.conn.Close()
	}
}

// ConnectionCount reports live connections for a user.
func (h *Hub) ConnectionCount(userID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

func (h *Hub) handleInbound(c *Client, event Event) {
	switch event.Type {
	case EventPing:
		h.deliver(c, NewEvent(EventPong, 0, nil))

	case EventJoinConversation:
		if h.handler == nil || !h.handler.CanAccess(context.Background(), c.UserID, event.ConversationID) {
			h.sendError(c, event.ConversationID, "Not a participant in this conversation")
			return
		}
		h.joinRoom(c, event.ConversationID)

	case EventLeaveConversation:
		h.leaveRoom(c, event.ConversationID)
		h.stopTyping(c.UserID, event.ConversationID, false)

	case EventTypingStart:
		h.typingStart(c, event.ConversationID)

	case EventTypingStop:
		h.stopTyping(c.UserID, event.ConversationID, true)

	case EventMessageDelivered:
		ack, ok := decodeAck(event.Data)
		if !ok || ack.MessageID == 0 {
			h.sendError(c, event.ConversationID, "Missing message_id")
			return
		}
		if h.handler != nil {
			h.handler.MessageDelivered(context.Background(), c.UserID, event.ConversationID, ack.MessageID)
		}

	case EventMessageRead:
		ack, _ := decodeAck(event.Data)
		if h.handler != nil {
			h.handler.MessagesRead(context.Background(), c.UserID, event.ConversationID, ack.UptoMessageID)
		}

	default:
		logger.Warn("Hub: unknown event type %q from user %d", event.Type, c.UserID)
		h.sendError(c, event.ConversationID, "Unknown event type")
	}
}

// typingStart broadcasts the indicator and arms the auto-expiry timer; each
// repeat resets the window so a stop is inferred even if the client never
// sends one.
func (h *Hub) typingStart(c *Client, conversationID int64) {
	if allowed, _ := h.limiter.Allow(strconv.FormatInt(c.UserID, 10), "typing"); !allowed {
		return // silently drop excessive typing events
	}

	h.mu.RLock()
	_, joined := c.rooms[conversationID]
	h.mu.RUnlock()
	if !joined {
		return
	}

	key := typingKey{userID: c.UserID, conversationID: conversationID}

	h.typingMu.Lock()
	if timer, ok := h.typing[key]; ok {
		timer.Reset(h.typingTTL)
		h.typingMu.Unlock()
		return
	}
	h.typing[key] = time.AfterFunc(h.typingTTL, func() {
		h.stopTyping(key.userID, key.conversationID, true)
	})
	h.typingMu.Unlock()

	h.PublishToConversation(conversationID, c.UserID,
		NewEvent(EventUserTyping, conversationID, TypingPayload{UserID: c.UserID}))
}

func (h *Hub) stopTyping(userID, conversationID int64, broadcast bool) {
	key := typingKey{userID: userID, conversationID: conversationID}

	h.typingMu.Lock()
	timer, ok := h.typing[key]
	if ok {
		timer.Stop()
		delete(h.typing, key)
	}
	h.typingMu.Unlock()

	if ok && broadcast {
		h.PublishToConversation(conversationID, userID,
			NewEvent(EventUserStoppedTyping, conversationID, TypingPayload{UserID: userID}))
	}
}

func (h *Hub) sendError(c *Client, conversationID int64, message string) {
	h.deliver(c, NewEvent(EventError, conversationID, map[string]string{"error": message}))
}
