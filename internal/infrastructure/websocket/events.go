package websocket

import "time"

// Inbound event kinds (client -> hub).
const (
	EventJoinConversation  = "join_conversation"
	EventLeaveConversation = "leave_conversation"
	EventTypingStart       = "typing_start"
	EventTypingStop        = "typing_stop"
	EventMessageRead       = "message_read"
	EventMessageDelivered  = "message_delivered"
	EventPing              = "ping"
)

// Outbound event kinds (hub -> client).
const (
	EventNewMessage        = "new_message"
	EventUserTyping        = "user_typing"
	EventUserStoppedTyping = "user_stopped_typing"
	EventPong              = "pong"
	EventError             = "error"
	// message_read and message_delivered are symmetric: clients send acks,
	// the hub relays status changes under the same kind.
)

// Event is the wire envelope on the bidirectional channel. Every event
// carries the conversation identifier for client-side routing.
type Event struct {
	Type           string      `json:"type"`
	ConversationID int64       `json:"conversation_id,omitempty"`
	Data           interface{} `json:"data,omitempty"`
	Timestamp      string      `json:"timestamp"`
}

func NewEvent(kind string, conversationID int64, data interface{}) Event {
	return Event{
		Type:           kind,
		ConversationID: conversationID,
		Data:           data,
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
	}
}

// NewMessagePayload carries a freshly persisted message to recipients.
type NewMessagePayload struct {
	Message interface{} `json:"message"`
	Sender  interface{} `json:"sender,omitempty"`
}

// DeliveredPayload tells the original sender a message reached a recipient.
type DeliveredPayload struct {
	MessageID   int64 `json:"message_id"`
	DeliveredTo int64 `json:"delivered_to,omitempty"`
}

// ReadPayload batches the message ids a reader just marked.
type ReadPayload struct {
	MessageIDs []int64 `json:"message_ids"`
	ReaderID   int64   `json:"reader_id"`
}

// TypingPayload identifies who is typing in which conversation.
type TypingPayload struct {
	UserID int64 `json:"user_id"`
}

// inboundAck is the client-side body for message_read / message_delivered.
type inboundAck struct {
	MessageID     int64 `json:"message_id"`
	UptoMessageID int64 `json:"upto_message_id"`
}
