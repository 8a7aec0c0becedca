package entity

import "time"

const (
	ConversationTypePrivate = "private"
	ConversationTypeGroup   = "group"

	ConversationStatusActive   = "active"
	ConversationStatusArchived = "archived"
	ConversationStatusDeleted  = "deleted"
)

const (
	ParticipantRoleSender    = "sender"
	ParticipantRoleRecipient = "recipient"
	ParticipantRoleAdmin     = "admin"
)

type Conversation struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name,omitempty"`
	Type          string    `json:"type"`
	Status        string    `json:"status"`
	CreatorID     int64     `json:"creator_id"`
	PairKey       string    `json:"-"` // "lo:hi" for private threads, enforces one per pair
	LastMessage   string    `json:"last_message,omitempty"`
	LastMessageAt time.Time `json:"last_message_at"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	Participants []*Participant `json:"participants,omitempty"`
}

// Participant is a user's membership record in a conversation. Role records
// the relationship at creation time, not a permission level; admin
// additionally grants archive/delete.
type Participant struct {
	ID             int64      `json:"id"`
	ConversationID int64      `json:"conversation_id"`
	UserID         int64      `json:"user_id"`
	Role           string     `json:"role"`
	IsActive       bool       `json:"is_active"`
	JoinedAt       time.Time  `json:"joined_at"`
	LeftAt         *time.Time `json:"left_at,omitempty"`
}
