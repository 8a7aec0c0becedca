package handler

import (
	"github.com/labstack/echo/v4"

	"otomart/internal/usecase"
	"otomart/pkg/response"
)

type OrderHandler struct {
	orderLinkUseCase *usecase.OrderLinkUseCase
}

func NewOrderHandler(orderLinkUseCase *usecase.OrderLinkUseCase) *OrderHandler {
	return &OrderHandler{orderLinkUseCase: orderLinkUseCase}
}

// OpenConversation links the order to the buyer-seller conversation,
// creating both if needed. Safe to call repeatedly.
func (h *OrderHandler) OpenConversation(c echo.Context) error {
	orderID, err := pathID(c, "id")
	if err != nil {
		return response.Error(c, err)
	}

	userID := c.Get("uid").(int64)

	link, err := h.orderLinkUseCase.LinkOrder(c.Request().Context(), userID, orderID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, link)
}

// GetConversation returns the conversation linked to an order.
func (h *OrderHandler) GetConversation(c echo.Context) error {
	orderID, err := pathID(c, "id")
	if err != nil {
		return response.Error(c, err)
	}

	userID := c.Get("uid").(int64)

	link, err := h.orderLinkUseCase.GetByOrderID(c.Request().Context(), userID, orderID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, link)
}
