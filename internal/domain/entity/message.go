package entity

import "time"

const (
	MessageTypeText   = "text"
	MessageTypeImage  = "image"
	MessageTypeVideo  = "video"
	MessageTypeFile   = "file"
	MessageTypeSystem = "system"
)

// Delivery states, strictly forward: sent -> delivered -> read.
const (
	MessageStatusSent      = "sent"
	MessageStatusDelivered = "delivered"
	MessageStatusRead      = "read"
)

// StatusRank orders delivery states so the projection can only advance.
func StatusRank(status string) int {
	switch status {
	case MessageStatusSent:
		return 0
	case MessageStatusDelivered:
		return 1
	case MessageStatusRead:
		return 2
	}
	return -1
}

// Message is one entry of a conversation's durable history. IDs are assigned
// monotonically by the store; created_at ordering within a conversation is
// the canonical display order. Status is the most-advanced-across-recipients
// projection; read receipts stay authoritative for unread counts.
type Message struct {
	ID              int64     `json:"id"`
	ConversationID  int64     `json:"conversation_id"`
	SenderID        int64     `json:"sender_id"`
	Content         string    `json:"content"`
	Type            string    `json:"message_type"`
	FileURL         string    `json:"file_url,omitempty"`
	FileName        string    `json:"file_name,omitempty"`
	Status          string    `json:"status"`
	ParentMessageID *int64    `json:"parent_message_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// ReadReceipt tracks whether one user has seen one message. A row with
// non-null ReadAt means seen; a null ReadAt (or no row) means unread.
type ReadReceipt struct {
	ID             int64      `json:"id"`
	MessageID      int64      `json:"message_id"`
	ConversationID int64      `json:"conversation_id"`
	UserID         int64      `json:"user_id"`
	ReadAt         *time.Time `json:"read_at,omitempty"`
}
