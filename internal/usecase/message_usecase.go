package usecase

import (
	"context"
	"strconv"
	"strings"

	"otomart/internal/domain/entity"
	"otomart/internal/domain/repository"
	"otomart/internal/infrastructure/ratelimit"
	ws "otomart/internal/infrastructure/websocket"
	"otomart/pkg/errors"
	"otomart/pkg/logger"
)

// EventPublisher is the fan-out boundary: the pipeline hands it
// already-committed changes and never treats delivery failure as an error.
type EventPublisher interface {
	PublishToUsers(userIDs []int64, originUserID int64, event ws.Event)
	PublishToConversation(conversationID, originUserID int64, event ws.Event)
}

type MessageUseCase struct {
	convUC      *ConversationUseCase
	convRepo    repository.ConversationRepository
	messageRepo repository.MessageRepository
	userRepo    repository.UserRepository
	publisher   EventPublisher
	rateLimiter *ratelimit.RateLimiter

	// reopenOnSend lets a participant's send re-activate an archived thread
	// instead of failing with ConversationClosed.
	reopenOnSend bool
}

func NewMessageUseCase(
	convUC *ConversationUseCase,
	convRepo repository.ConversationRepository,
	messageRepo repository.MessageRepository,
	userRepo repository.UserRepository,
	publisher EventPublisher,
	rateLimiter *ratelimit.RateLimiter,
	reopenOnSend bool,
) *MessageUseCase {
	return &MessageUseCase{
		convUC:       convUC,
		convRepo:     convRepo,
		messageRepo:  messageRepo,
		userRepo:     userRepo,
		publisher:    publisher,
		rateLimiter:  rateLimiter,
		reopenOnSend: reopenOnSend,
	}
}

type SendMessageInput struct {
	ConversationID  int64
	Content         string
	Type            string
	FileURL         string
	FileName        string
	ParentMessageID *int64
	// ClientRef is the client-generated correlation token for reconciling the
	// optimistic local echo with the canonical server record.
	ClientRef string
}

type MessageResponse struct {
	*entity.Message
	Sender    *entity.User `json:"sender,omitempty"`
	ClientRef string       `json:"client_ref,omitempty"`
}

func validMessageType(t string) bool {
	switch t {
	case entity.MessageTypeText, entity.MessageTypeImage, entity.MessageTypeVideo,
		entity.MessageTypeFile, entity.MessageTypeSystem:
		return true
	}
	return false
}

// SendMessage validates, persists (message plus receipt placeholders in one
// transaction) and fans out. The canonical message is returned synchronously
// with the echoed correlation token; a failure leaves nothing persisted.
func (uc *MessageUseCase) SendMessage(ctx context.Context, senderID int64, input SendMessageInput) (*MessageResponse, error) {
	if allowed, _ := uc.rateLimiter.Allow(strconv.FormatInt(senderID, 10), "send_message"); !allowed {
		logger.Warn("SendMessage: rate limited user %d", senderID)
		return nil, errors.TooManyRequests("Rate limit exceeded. Please wait before sending another message")
	}

	conv, _, err := uc.convUC.Authorize(ctx, input.ConversationID, senderID, CapabilitySend)
	if err != nil {
		return nil, err
	}

	switch conv.Status {
	case entity.ConversationStatusDeleted:
		return nil, errors.ConversationClosed("Conversation has been deleted")
	case entity.ConversationStatusArchived:
		if !uc.reopenOnSend {
			return nil, errors.ConversationClosed("Conversation is archived")
		}
	}

	if input.Type == "" {
		input.Type = entity.MessageTypeText
	}
	if !validMessageType(input.Type) || input.Type == entity.MessageTypeSystem {
		return nil, errors.BadRequest("Invalid message type", nil)
	}
	if input.Type == entity.MessageTypeText && strings.TrimSpace(input.Content) == "" {
		return nil, errors.BadRequest("Message content must not be empty", nil)
	}

	if input.ParentMessageID != nil {
		parent, err := uc.messageRepo.GetByID(ctx, *input.ParentMessageID)
		if err != nil {
			return nil, errors.InvalidReply("Parent message not found")
		}
		if parent.ConversationID != conv.ID {
			return nil, errors.InvalidReply("Parent message belongs to a different conversation")
		}
	}

	// Re-activate an archived thread only once the send is known valid, so a
	// rejected send leaves the archive state untouched.
	if conv.Status == entity.ConversationStatusArchived {
		if err := uc.convRepo.UpdateStatus(ctx, conv.ID, entity.ConversationStatusActive); err != nil {
			return nil, err
		}
		conv.Status = entity.ConversationStatusActive
	}

	participants, err := uc.convRepo.ListParticipants(ctx, conv.ID)
	if err != nil {
		return nil, err
	}

	var recipients []int64
	for _, p := range participants {
		if p.IsActive && p.UserID != senderID {
			recipients = append(recipients, p.UserID)
		}
	}

	message := &entity.Message{
		ConversationID:  conv.ID,
		SenderID:        senderID,
		Content:         input.Content,
		Type:            input.Type,
		FileURL:         input.FileURL,
		FileName:        input.FileName,
		Status:          entity.MessageStatusSent,
		ParentMessageID: input.ParentMessageID,
	}

	if err := uc.messageRepo.CreateWithReceipts(ctx, message, recipients); err != nil {
		logger.Error("SendMessage: failed to persist message in conversation %d: %v", conv.ID, err)
		return nil, err
	}

	if err := uc.convRepo.UpdateLastMessage(ctx, conv.ID, preview(message), message.CreatedAt); err != nil {
		logger.Warn("SendMessage: failed to update preview for conversation %d: %v", conv.ID, err)
	}

	sender, err := uc.userRepo.GetByID(ctx, senderID)
	if err != nil {
		logger.Warn("SendMessage: sender %d not found: %v", senderID, err)
	}

	event := ws.NewEvent(ws.EventNewMessage, conv.ID, ws.NewMessagePayload{
		Message: message,
		Sender:  sender,
	})
	// User-targeted only: every connection of each recipient gets exactly one
	// copy, whether or not it has the conversation open. Fan-out failure is
	// recoverable by reconnect and never fails the send.
	uc.publisher.PublishToUsers(recipients, senderID, event)

	return &MessageResponse{
		Message:   message,
		Sender:    sender,
		ClientRef: input.ClientRef,
	}, nil
}

// SendSystemMessage appends a system-authored message, bypassing the
// participant check. Used when an order link is first created.
func (uc *MessageUseCase) SendSystemMessage(ctx context.Context, conversationID int64, content string) (*entity.Message, error) {
	participants, err := uc.convRepo.ListParticipants(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	var recipients []int64
	for _, p := range participants {
		if p.IsActive {
			recipients = append(recipients, p.UserID)
		}
	}

	message := &entity.Message{
		ConversationID: conversationID,
		SenderID:       0,
		Content:        content,
		Type:           entity.MessageTypeSystem,
		Status:         entity.MessageStatusDelivered,
	}

	if err := uc.messageRepo.CreateWithReceipts(ctx, message, recipients); err != nil {
		logger.Error("SendSystemMessage: failed to persist in conversation %d: %v", conversationID, err)
		return nil, err
	}

	if err := uc.convRepo.UpdateLastMessage(ctx, conversationID, preview(message), message.CreatedAt); err != nil {
		logger.Warn("SendSystemMessage: failed to update preview for conversation %d: %v", conversationID, err)
	}

	event := ws.NewEvent(ws.EventNewMessage, conversationID, ws.NewMessagePayload{Message: message})
	uc.publisher.PublishToUsers(recipients, 0, event)

	return message, nil
}

// ListMessages returns a page of history, newest first by store id.
func (uc *MessageUseCase) ListMessages(ctx context.Context, userID, conversationID int64, limit, offset int) ([]*MessageResponse, int64, error) {
	if _, _, err := uc.convUC.Authorize(ctx, conversationID, userID, CapabilityRead); err != nil {
		return nil, 0, err
	}

	messages, total, err := uc.messageRepo.ListByConversation(ctx, conversationID, limit, offset)
	if err != nil {
		logger.Error("ListMessages: failed for conversation %d: %v", conversationID, err)
		return nil, 0, err
	}

	senders := make(map[int64]*entity.User)
	responses := make([]*MessageResponse, 0, len(messages))
	for _, message := range messages {
		resp := &MessageResponse{Message: message}
		if message.SenderID != 0 {
			sender, ok := senders[message.SenderID]
			if !ok {
				sender, _ = uc.userRepo.GetByID(ctx, message.SenderID)
				senders[message.SenderID] = sender
			}
			resp.Sender = sender
		}
		responses = append(responses, resp)
	}

	return responses, total, nil
}

// MarkDelivered advances a message to delivered on the first recipient ack.
// The projection is monotonic: a message already read stays read.
func (uc *MessageUseCase) MarkDelivered(ctx context.Context, userID, conversationID, messageID int64) error {
	if _, err := uc.convRepo.GetActiveParticipant(ctx, conversationID, userID); err != nil {
		if errors.Is(err, "NOT_FOUND") {
			return errors.NotAParticipant()
		}
		return err
	}

	message, err := uc.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if message.ConversationID != conversationID {
		return errors.NotFound("Message", nil)
	}
	if message.SenderID == userID {
		return nil // own messages need no ack
	}

	advanced, err := uc.messageRepo.AdvanceStatus(ctx, messageID, entity.MessageStatusDelivered)
	if err != nil {
		return err
	}
	if !advanced {
		return nil
	}

	uc.publisher.PublishToConversation(conversationID, userID,
		ws.NewEvent(ws.EventMessageDelivered, conversationID, ws.DeliveredPayload{
			MessageID:   messageID,
			DeliveredTo: userID,
		}))
	return nil
}

func preview(message *entity.Message) string {
	if message.Type == entity.MessageTypeText || message.Type == entity.MessageTypeSystem {
		return message.Content
	}
	if message.FileName != "" {
		return message.FileName
	}
	return message.Type
}
