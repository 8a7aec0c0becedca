package repository

import (
	"context"
	"time"

	"otomart/internal/domain/entity"
)

type ConversationRepository interface {
	// CreatePrivate inserts the conversation and both participant rows in one
	// transaction and fills in the store-assigned identifiers.
	CreatePrivate(ctx context.Context, conv *entity.Conversation, participants []*entity.Participant) error
	GetByID(ctx context.Context, id int64) (*entity.Conversation, error)
	// GetPrivateByPairKey finds the non-deleted private conversation for an
	// unordered user pair key ("lo:hi").
	GetPrivateByPairKey(ctx context.Context, pairKey string) (*entity.Conversation, error)
	// ListByUserID returns conversations with an active participant row for
	// the user, most recent message first. An empty status filter hides
	// deleted threads; a concrete status matches exactly.
	ListByUserID(ctx context.Context, userID int64, status string, limit, offset int) ([]*entity.Conversation, int64, error)
	UpdateStatus(ctx context.Context, id int64, status string) error
	UpdateLastMessage(ctx context.Context, id int64, preview string, at time.Time) error

	ListParticipants(ctx context.Context, conversationID int64) ([]*entity.Participant, error)
	// GetActiveParticipant returns the user's active membership row or NotFound.
	GetActiveParticipant(ctx context.Context, conversationID, userID int64) (*entity.Participant, error)
}

type MessageRepository interface {
	// CreateWithReceipts persists the message and a null-read_at receipt
	// placeholder for every recipient in one transaction, so a failed send
	// leaves no partial state.
	CreateWithReceipts(ctx context.Context, message *entity.Message, recipientIDs []int64) error
	GetByID(ctx context.Context, id int64) (*entity.Message, error)
	// ListByConversation returns messages newest-first by store id.
	ListByConversation(ctx context.Context, conversationID int64, limit, offset int) ([]*entity.Message, int64, error)
	// AdvanceStatus moves the delivery projection forward; it is a guarded
	// update that never regresses and reports whether a row changed.
	AdvanceStatus(ctx context.Context, messageID int64, status string) (bool, error)
}

type ReadReceiptRepository interface {
	// MarkRead stamps read_at on the user's unread receipts in the
	// conversation for message ids <= uptoMessageID (0 means all), advances
	// the affected messages' status projection to read in the same
	// transaction, and returns the newly marked message ids in id order.
	MarkRead(ctx context.Context, conversationID, userID, uptoMessageID int64, at time.Time) ([]int64, error)
	UnreadCount(ctx context.Context, userID, conversationID int64) (int64, error)
	// UnreadCounts batches per-conversation counts for list annotation.
	UnreadCounts(ctx context.Context, userID int64, conversationIDs []int64) (map[int64]int64, error)
	// UnreadTotal sums unread messages across the user's active conversations.
	UnreadTotal(ctx context.Context, userID int64) (int64, error)
}
