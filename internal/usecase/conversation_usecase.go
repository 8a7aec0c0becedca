package usecase

import (
	"context"
	"fmt"
	"strconv"

	"otomart/internal/domain/entity"
	"otomart/internal/domain/repository"
	"otomart/internal/infrastructure/ratelimit"
	"otomart/pkg/errors"
	"otomart/pkg/logger"
)

// Capability is the single authorization currency of the messaging core: every
// operation asks "does actor have capability X on conversation Y" exactly once
// at the use-case boundary instead of comparing role strings in handlers.
type Capability int

const (
	CapabilityRead Capability = iota
	CapabilitySend
	CapabilityManage // archive / delete / restore
)

type ConversationUseCase struct {
	convRepo    repository.ConversationRepository
	userRepo    repository.UserRepository
	receiptRepo repository.ReadReceiptRepository
	rateLimiter *ratelimit.RateLimiter
}

func NewConversationUseCase(
	convRepo repository.ConversationRepository,
	userRepo repository.UserRepository,
	receiptRepo repository.ReadReceiptRepository,
	rateLimiter *ratelimit.RateLimiter,
) *ConversationUseCase {
	return &ConversationUseCase{
		convRepo:    convRepo,
		userRepo:    userRepo,
		receiptRepo: receiptRepo,
		rateLimiter: rateLimiter,
	}
}

type ConversationResponse struct {
	*entity.Conversation
	OtherUser   *entity.User `json:"other_user,omitempty"`
	UnreadCount int64        `json:"unread_count"`
}

// PairKey canonicalizes an unordered user pair as "lo:hi".
func PairKey(userA, userB int64) string {
	if userA > userB {
		userA, userB = userB, userA
	}
	return fmt.Sprintf("%d:%d", userA, userB)
}

// Authorize loads the conversation, verifies the actor's active membership
// and checks the requested capability. Manage requires the creator or an
// admin-role participant.
func (uc *ConversationUseCase) Authorize(ctx context.Context, conversationID, actorID int64, capability Capability) (*entity.Conversation, *entity.Participant, error) {
	conv, err := uc.convRepo.GetByID(ctx, conversationID)
	if err != nil {
		return nil, nil, err
	}

	participant, err := uc.convRepo.GetActiveParticipant(ctx, conversationID, actorID)
	if err != nil {
		if errors.Is(err, "NOT_FOUND") {
			return nil, nil, errors.NotAParticipant()
		}
		return nil, nil, err
	}

	if capability == CapabilityManage {
		if conv.CreatorID != actorID && participant.Role != entity.ParticipantRoleAdmin {
			return nil, nil, errors.Forbidden("Only the creator or an admin may change conversation status", nil)
		}
	}

	return conv, participant, nil
}

// GetOrCreatePrivate returns the one private conversation for the unordered
// pair, creating it (with both participant rows, atomically) on first
// contact. An archived thread for the pair is re-activated, never duplicated.
func (uc *ConversationUseCase) GetOrCreatePrivate(ctx context.Context, creatorID, recipientID int64) (*ConversationResponse, error) {
	if creatorID == recipientID {
		logger.Warn("GetOrCreatePrivate: user %d attempted a conversation with themselves", creatorID)
		return nil, errors.InvalidParticipants("You cannot start a conversation with yourself")
	}

	recipient, err := uc.userRepo.GetByID(ctx, recipientID)
	if err != nil {
		logger.Warn("GetOrCreatePrivate: recipient %d not found: %v", recipientID, err)
		return nil, errors.NotFound("Recipient", err)
	}

	pairKey := PairKey(creatorID, recipientID)

	conv, err := uc.convRepo.GetPrivateByPairKey(ctx, pairKey)
	if err != nil && !errors.Is(err, "NOT_FOUND") {
		return nil, err
	}

	if conv == nil {
		if allowed, _ := uc.rateLimiter.Allow(strconv.FormatInt(creatorID, 10), "create_conversation"); !allowed {
			return nil, errors.TooManyRequests("Rate limit exceeded. Please wait before starting another conversation")
		}

		newConv := &entity.Conversation{
			Type:      entity.ConversationTypePrivate,
			Status:    entity.ConversationStatusActive,
			CreatorID: creatorID,
			PairKey:   pairKey,
		}
		participants := []*entity.Participant{
			{UserID: creatorID, Role: entity.ParticipantRoleSender},
			{UserID: recipientID, Role: entity.ParticipantRoleRecipient},
		}

		err = uc.convRepo.CreatePrivate(ctx, newConv, participants)
		if err == nil {
			newConv.Participants = participants
			conv = newConv
		} else if errors.Is(err, "CONFLICT") {
			// lost a concurrent creation race; the winner's row is ours too
			conv, err = uc.convRepo.GetPrivateByPairKey(ctx, pairKey)
			if err != nil {
				return nil, err
			}
		} else {
			logger.Error("GetOrCreatePrivate: failed to create conversation for pair %s: %v", pairKey, err)
			return nil, err
		}
	}

	if conv.Status == entity.ConversationStatusArchived {
		if err := uc.convRepo.UpdateStatus(ctx, conv.ID, entity.ConversationStatusActive); err != nil {
			return nil, err
		}
		conv.Status = entity.ConversationStatusActive
	}

	if conv.Participants == nil {
		conv.Participants, err = uc.convRepo.ListParticipants(ctx, conv.ID)
		if err != nil {
			return nil, err
		}
	}

	unread, err := uc.receiptRepo.UnreadCount(ctx, creatorID, conv.ID)
	if err != nil {
		logger.Warn("GetOrCreatePrivate: unread count for conversation %d: %v", conv.ID, err)
	}

	return &ConversationResponse{
		Conversation: conv,
		OtherUser:    recipient,
		UnreadCount:  unread,
	}, nil
}

// ListForUser returns the caller's conversations most-recent-message first,
// annotated with unread counts and the latest-message preview. Read-only.
func (uc *ConversationUseCase) ListForUser(ctx context.Context, userID int64, status string, limit, offset int) ([]*ConversationResponse, int64, error) {
	switch status {
	case "", entity.ConversationStatusActive, entity.ConversationStatusArchived:
	default:
		// Soft-deleted threads stay hidden from listings, so the filter
		// only accepts the visible states.
		return nil, 0, errors.BadRequest("Invalid status filter", nil)
	}

	conversations, total, err := uc.convRepo.ListByUserID(ctx, userID, status, limit, offset)
	if err != nil {
		logger.Error("ListForUser: failed to list conversations for user %d: %v", userID, err)
		return nil, 0, err
	}

	ids := make([]int64, len(conversations))
	for i, conv := range conversations {
		ids[i] = conv.ID
	}

	unread, err := uc.receiptRepo.UnreadCounts(ctx, userID, ids)
	if err != nil {
		return nil, 0, err
	}

	responses := make([]*ConversationResponse, 0, len(conversations))
	for _, conv := range conversations {
		resp := &ConversationResponse{
			Conversation: conv,
			UnreadCount:  unread[conv.ID],
		}

		if conv.Type == entity.ConversationTypePrivate {
			resp.OtherUser = uc.otherUser(ctx, conv, userID)
		}

		responses = append(responses, resp)
	}

	return responses, total, nil
}

func (uc *ConversationUseCase) GetByID(ctx context.Context, conversationID, userID int64) (*ConversationResponse, error) {
	conv, _, err := uc.Authorize(ctx, conversationID, userID, CapabilityRead)
	if err != nil {
		return nil, err
	}

	conv.Participants, err = uc.convRepo.ListParticipants(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	unread, err := uc.receiptRepo.UnreadCount(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}

	resp := &ConversationResponse{
		Conversation: conv,
		UnreadCount:  unread,
	}
	if conv.Type == entity.ConversationTypePrivate {
		resp.OtherUser = uc.otherUser(ctx, conv, userID)
	}

	return resp, nil
}

// SetStatus transitions a conversation between active/archived/deleted.
// Deletion is a soft marker: history is preserved, listings hide the thread.
func (uc *ConversationUseCase) SetStatus(ctx context.Context, conversationID, actorID int64, newStatus string) (*entity.Conversation, error) {
	switch newStatus {
	case entity.ConversationStatusActive, entity.ConversationStatusArchived, entity.ConversationStatusDeleted:
	default:
		return nil, errors.BadRequest("Invalid conversation status", nil)
	}

	conv, _, err := uc.Authorize(ctx, conversationID, actorID, CapabilityManage)
	if err != nil {
		return nil, err
	}

	if conv.Status == newStatus {
		return conv, nil
	}

	if err := uc.convRepo.UpdateStatus(ctx, conversationID, newStatus); err != nil {
		logger.Error("SetStatus: failed to update conversation %d: %v", conversationID, err)
		return nil, err
	}
	conv.Status = newStatus

	return conv, nil
}

func (uc *ConversationUseCase) otherUser(ctx context.Context, conv *entity.Conversation, userID int64) *entity.User {
	participants := conv.Participants
	if participants == nil {
		var err error
		participants, err = uc.convRepo.ListParticipants(ctx, conv.ID)
		if err != nil {
			return nil
		}
	}

	for _, p := range participants {
		if p.UserID != userID {
			other, err := uc.userRepo.GetByID(ctx, p.UserID)
			if err != nil {
				logger.Warn("otherUser: user %d not found for conversation %d: %v", p.UserID, conv.ID, err)
				return nil
			}
			return other
		}
	}
	return nil
}
