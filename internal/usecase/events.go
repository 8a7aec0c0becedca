package usecase

import (
	"context"

	"otomart/internal/domain/repository"
	"otomart/pkg/logger"
)

// HubEvents bridges inbound socket frames into the use-case layer. It is
// bound to the hub after construction so the hub stays free of domain
// imports.
type HubEvents struct {
	convRepo  repository.ConversationRepository
	messageUC *MessageUseCase
	receiptUC *ReceiptUseCase
}

func NewHubEvents(
	convRepo repository.ConversationRepository,
	messageUC *MessageUseCase,
	receiptUC *ReceiptUseCase,
) *HubEvents {
	return &HubEvents{
		convRepo:  convRepo,
		messageUC: messageUC,
		receiptUC: receiptUC,
	}
}

// CanAccess gates room joins: only active participants may subscribe.
func (h *HubEvents) CanAccess(ctx context.Context, userID, conversationID int64) bool {
	_, err := h.convRepo.GetActiveParticipant(ctx, conversationID, userID)
	return err == nil
}

// MessageDelivered handles a socket-side delivery ack.
func (h *HubEvents) MessageDelivered(ctx context.Context, userID, conversationID, messageID int64) {
	if err := h.messageUC.MarkDelivered(ctx, userID, conversationID, messageID); err != nil {
		logger.Debug("delivery ack rejected: user %d message %d: %v", userID, messageID, err)
	}
}

// MessagesRead handles a socket-side read ack.
func (h *HubEvents) MessagesRead(ctx context.Context, userID, conversationID, uptoMessageID int64) {
	if _, err := h.receiptUC.MarkRead(ctx, userID, conversationID, uptoMessageID); err != nil {
		logger.Debug("read ack rejected: user %d conversation %d: %v", userID, conversationID, err)
	}
}
