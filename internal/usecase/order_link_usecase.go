package usecase

import (
	"context"
	"fmt"

	"otomart/internal/domain/entity"
	"otomart/internal/domain/repository"
	"otomart/pkg/errors"
	"otomart/pkg/logger"
)

type OrderLinkUseCase struct {
	orderRepo   repository.OrderRepository
	vehicleRepo repository.VehicleRepository
	linkRepo    repository.OrderLinkRepository
	convUC      *ConversationUseCase
	messageUC   *MessageUseCase
}

func NewOrderLinkUseCase(
	orderRepo repository.OrderRepository,
	vehicleRepo repository.VehicleRepository,
	linkRepo repository.OrderLinkRepository,
	convUC *ConversationUseCase,
	messageUC *MessageUseCase,
) *OrderLinkUseCase {
	return &OrderLinkUseCase{
		orderRepo:   orderRepo,
		vehicleRepo: vehicleRepo,
		linkRepo:    linkRepo,
		convUC:      convUC,
		messageUC:   messageUC,
	}
}

type OrderLinkResponse struct {
	Link         *entity.OrderConversationLink `json:"link"`
	Conversation *ConversationResponse         `json:"conversation"`
}

// LinkOrder resolves (creating if needed) the buyer-seller conversation for an
// order and links the two. Idempotent: repeat calls return the existing link,
// and the announcement message is posted only when the link is first created.
func (uc *OrderLinkUseCase) LinkOrder(ctx context.Context, actorID, orderID int64) (*OrderLinkResponse, error) {
	order, err := uc.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if actorID != order.BuyerID && actorID != order.SellerID {
		return nil, errors.Forbidden("Only the buyer or seller can open the order conversation", nil)
	}

	if link, err := uc.linkRepo.GetByOrderID(ctx, orderID); err == nil {
		conv, convErr := uc.convUC.GetByID(ctx, link.ConversationID, actorID)
		if convErr != nil {
			return nil, convErr
		}
		return &OrderLinkResponse{Link: link, Conversation: conv}, nil
	} else if !errors.Is(err, "NOT_FOUND") {
		return nil, err
	}

	// The counterpart from the actor's point of view.
	otherID := order.SellerID
	if actorID == order.SellerID {
		otherID = order.BuyerID
	}

	conv, err := uc.convUC.GetOrCreatePrivate(ctx, actorID, otherID)
	if err != nil {
		return nil, err
	}

	link, created, err := uc.linkRepo.Create(ctx, &entity.OrderConversationLink{
		OrderID:        orderID,
		ConversationID: conv.ID,
		Status:         entity.OrderLinkStatusActive,
	})
	if err != nil {
		return nil, err
	}

	if created {
		content := fmt.Sprintf("Conversation linked to order #%d", orderID)
		if vehicle, vErr := uc.vehicleRepo.GetByID(ctx, order.VehicleID); vErr == nil {
			content = fmt.Sprintf("Conversation linked to order #%d for %s", orderID, vehicle.Title)
		}
		if _, msgErr := uc.messageUC.SendSystemMessage(ctx, conv.ID, content); msgErr != nil {
			// The link is already committed; the announcement is best effort.
			logger.Warn("LinkOrder: system message failed for order %d: %v", orderID, msgErr)
		}
	}

	return &OrderLinkResponse{Link: link, Conversation: conv}, nil
}

// GetByOrderID returns the link and conversation for an order, if any.
func (uc *OrderLinkUseCase) GetByOrderID(ctx context.Context, actorID, orderID int64) (*OrderLinkResponse, error) {
	order, err := uc.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if actorID != order.BuyerID && actorID != order.SellerID {
		return nil, errors.Forbidden("Only the buyer or seller can view the order conversation", nil)
	}

	link, err := uc.linkRepo.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	conv, err := uc.convUC.GetByID(ctx, link.ConversationID, actorID)
	if err != nil {
		return nil, err
	}
	return &OrderLinkResponse{Link: link, Conversation: conv}, nil
}
