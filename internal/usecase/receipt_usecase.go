package usecase

import (
	"context"
	"time"

	"otomart/internal/domain/repository"
	ws "otomart/internal/infrastructure/websocket"
	"otomart/pkg/logger"
)

type ReceiptUseCase struct {
	convUC      *ConversationUseCase
	receiptRepo repository.ReadReceiptRepository
	publisher   EventPublisher
}

func NewReceiptUseCase(
	convUC *ConversationUseCase,
	receiptRepo repository.ReadReceiptRepository,
	publisher EventPublisher,
) *ReceiptUseCase {
	return &ReceiptUseCase{
		convUC:      convUC,
		receiptRepo: receiptRepo,
		publisher:   publisher,
	}
}

// MarkRead marks every unread message up to and including uptoMessageID as
// read by the actor. Idempotent: a second call over the same range marks
// nothing and emits nothing. uptoMessageID 0 means the whole conversation.
func (uc *ReceiptUseCase) MarkRead(ctx context.Context, userID, conversationID, uptoMessageID int64) (int, error) {
	if _, _, err := uc.convUC.Authorize(ctx, conversationID, userID, CapabilityRead); err != nil {
		return 0, err
	}

	markedIDs, err := uc.receiptRepo.MarkRead(ctx, conversationID, userID, uptoMessageID, time.Now())
	if err != nil {
		logger.Error("MarkRead: failed for user %d in conversation %d: %v", userID, conversationID, err)
		return 0, err
	}
	if len(markedIDs) == 0 {
		return 0, nil
	}

	// Single batched event per command, not one per message.
	uc.publisher.PublishToConversation(conversationID, userID,
		ws.NewEvent(ws.EventMessageRead, conversationID, ws.ReadPayload{
			MessageIDs: markedIDs,
			ReaderID:   userID,
		}))

	return len(markedIDs), nil
}

// UnreadCount returns the actor's unread count for one conversation.
func (uc *ReceiptUseCase) UnreadCount(ctx context.Context, userID, conversationID int64) (int64, error) {
	if _, _, err := uc.convUC.Authorize(ctx, conversationID, userID, CapabilityRead); err != nil {
		return 0, err
	}
	return uc.receiptRepo.UnreadCount(ctx, userID, conversationID)
}

// UnreadTotal returns the badge count across all of the actor's active
// conversations.
func (uc *ReceiptUseCase) UnreadTotal(ctx context.Context, userID int64) (int64, error) {
	return uc.receiptRepo.UnreadTotal(ctx, userID)
}
