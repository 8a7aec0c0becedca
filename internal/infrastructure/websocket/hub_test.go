package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	gorillaws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// allowAll authorizes every join and records acks.
type allowAll struct {
	delivered []int64
	readUpto  []int64
}

func (h *allowAll) CanAccess(context.Context, int64, int64) bool { return true }
func (h *allowAll) MessageDelivered(_ context.Context, _, _, messageID int64) {
	h.delivered = append(h.delivered, messageID)
}
func (h *allowAll) MessagesRead(_ context.Context, _, _, uptoMessageID int64) {
	h.readUpto = append(h.readUpto, uptoMessageID)
}

type denyAll struct{ allowAll }

func (denyAll) CanAccess(context.Context, int64, int64) bool { return false }

// newTestConn hands back a real server-side connection so disconnect paths
// can close it.
func newTestConn(t *testing.T) *gorillaws.Conn {
	t.Helper()

	connCh := make(chan *gorillaws.Conn, 1)
	upgrader := gorillaws.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		connCh <- conn
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	clientSide, _, err := gorillaws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { clientSide.Close() })

	select {
	case conn := <-connCh:
		return conn
	case <-time.After(time.Second):
		t.Fatal("no websocket connection established")
		return nil
	}
}

// newTestClient registers a client without starting the pumps, so tests can
// inspect the outbound queue directly.
func newTestClient(t *testing.T, h *Hub, userID int64, buffer int) *Client {
	t.Helper()
	c := &Client{
		ID:     uuid.New().String(),
		UserID: userID,
		conn:   newTestConn(t),
		send:   make(chan Event, buffer),
		rooms:  make(map[int64]struct{}),
	}
	h.register(c)
	return c
}

func recvEvent(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case event := <-c.send:
		return event
	case <-time.After(time.Second):
		t.Fatal("expected an event on the outbound queue")
		return Event{}
	}
}

func assertNoEvent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case event := <-c.send:
		t.Fatalf("unexpected event %q", event.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublishToUsersSkipsOriginator(t *testing.T) {
	h := NewHub(5*time.Second, 8)
	alice := newTestClient(t, h, 1, 8)
	bobPhone := newTestClient(t, h, 2, 8)
	bobLaptop := newTestClient(t, h, 2, 8)

	h.PublishToUsers([]int64{1, 2}, 1, NewEvent(EventNewMessage, 7, nil))

	assert.Equal(t, EventNewMessage, recvEvent(t, bobPhone).Type)
	assert.Equal(t, EventNewMessage, recvEvent(t, bobLaptop).Type)
	assertNoEvent(t, alice)
}

func TestRoomFanout(t *testing.T) {
	h := NewHub(5*time.Second, 8)
	h.Bind(&allowAll{})
	alice := newTestClient(t, h, 1, 8)
	bob := newTestClient(t, h, 2, 8)
	eve := newTestClient(t, h, 3, 8)

	h.handleInbound(alice, Event{Type: EventJoinConversation, ConversationID: 7})
	h.handleInbound(bob, Event{Type: EventJoinConversation, ConversationID: 7})
	// eve never joins

	h.PublishToConversation(7, 1, NewEvent(EventNewMessage, 7, nil))

	assert.Equal(t, EventNewMessage, recvEvent(t, bob).Type)
	assertNoEvent(t, alice)
	assertNoEvent(t, eve)
}

func TestJoinDeniedForNonParticipant(t *testing.T) {
	h := NewHub(5*time.Second, 8)
	h.Bind(&denyAll{})
	eve := newTestClient(t, h, 3, 8)

	h.handleInbound(eve, Event{Type: EventJoinConversation, ConversationID: 7})

	event := recvEvent(t, eve)
	assert.Equal(t, EventError, event.Type)
	assert.Equal(t, int64(7), event.ConversationID)

	h.PublishToConversation(7, 1, NewEvent(EventNewMessage, 7, nil))
	assertNoEvent(t, eve)
}

func TestUnregisterLeavesRooms(t *testing.T) {
	h := NewHub(5*time.Second, 8)
	h.Bind(&allowAll{})
	alice := newTestClient(t, h, 1, 8)

	h.handleInbound(alice, Event{Type: EventJoinConversation, ConversationID: 7})
	require.Equal(t, 1, h.ConnectionCount(1))

	h.unregister(alice)

	assert.Zero(t, h.ConnectionCount(1))
	h.mu.RLock()
	assert.Empty(t, h.rooms)
	h.mu.RUnlock()

	// Publishing after teardown must not panic or deliver.
	h.PublishToConversation(7, 2, NewEvent(EventNewMessage, 7, nil))
}

func TestDeliverDisconnectsOnFullQueue(t *testing.T) {
	h := NewHub(5*time.Second, 1)
	slow := newTestClient(t, h, 1, 1)

	h.deliver(slow, NewEvent(EventNewMessage, 7, nil)) // fills the queue
	h.deliver(slow, NewEvent(EventNewMessage, 7, nil)) // overflows

	assert.Zero(t, h.ConnectionCount(1))

	// A stale publish against the closed client is a no-op.
	h.deliver(slow, NewEvent(EventNewMessage, 7, nil))
}

func TestPingPong(t *testing.T) {
	h := NewHub(5*time.Second, 8)
	alice := newTestClient(t, h, 1, 8)

	h.handleInbound(alice, Event{Type: EventPing})
	assert.Equal(t, EventPong, recvEvent(t, alice).Type)
}

func TestTypingBroadcastAndAutoExpiry(t *testing.T) {
	h := NewHub(50*time.Millisecond, 8)
	h.Bind(&allowAll{})
	alice := newTestClient(t, h, 1, 8)
	bob := newTestClient(t, h, 2, 8)

	h.handleInbound(alice, Event{Type: EventJoinConversation, ConversationID: 7})
	h.handleInbound(bob, Event{Type: EventJoinConversation, ConversationID: 7})

	h.handleInbound(alice, Event{Type: EventTypingStart, ConversationID: 7})

	event := recvEvent(t, bob)
	assert.Equal(t, EventUserTyping, event.Type)
	payload, ok := event.Data.(TypingPayload)
	require.True(t, ok)
	assert.Equal(t, int64(1), payload.UserID)

	// No explicit stop: the TTL timer infers one.
	deadline := time.After(time.Second)
	select {
	case event = <-bob.send:
		assert.Equal(t, EventUserStoppedTyping, event.Type)
	case <-deadline:
		t.Fatal("typing indicator never expired")
	}

	// The timer is consumed; a lone explicit stop emits nothing more.
	h.handleInbound(alice, Event{Type: EventTypingStop, ConversationID: 7})
	assertNoEvent(t, bob)
}

func TestTypingRequiresJoinedRoom(t *testing.T) {
	h := NewHub(50*time.Millisecond, 8)
	h.Bind(&allowAll{})
	alice := newTestClient(t, h, 1, 8)
	bob := newTestClient(t, h, 2, 8)

	h.handleInbound(bob, Event{Type: EventJoinConversation, ConversationID: 7})

	// alice types without joining; nothing reaches bob.
	h.handleInbound(alice, Event{Type: EventTypingStart, ConversationID: 7})
	assertNoEvent(t, bob)
}

func TestInboundAcksReachHandler(t *testing.T) {
	h := NewHub(5*time.Second, 8)
	handler := &allowAll{}
	h.Bind(handler)
	bob := newTestClient(t, h, 2, 8)

	h.handleInbound(bob, Event{
		Type:           EventMessageDelivered,
		ConversationID: 7,
		Data:           map[string]interface{}{"message_id": float64(41)},
	})
	h.handleInbound(bob, Event{
		Type:           EventMessageRead,
		ConversationID: 7,
		Data:           map[string]interface{}{"upto_message_id": float64(41)},
	})

	assert.Equal(t, []int64{41}, handler.delivered)
	assert.Equal(t, []int64{41}, handler.readUpto)
}

func TestInboundDeliveredAckRequiresMessageID(t *testing.T) {
	h := NewHub(5*time.Second, 8)
	handler := &allowAll{}
	h.Bind(handler)
	bob := newTestClient(t, h, 2, 8)

	h.handleInbound(bob, Event{Type: EventMessageDelivered, ConversationID: 7})

	assert.Empty(t, handler.delivered)
	assert.Equal(t, EventError, recvEvent(t, bob).Type)
}
