package handler

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"otomart/internal/usecase"
	"otomart/pkg/errors"
	"otomart/pkg/response"
	"otomart/pkg/utils"
)

type ChatHandler struct {
	convUseCase    *usecase.ConversationUseCase
	messageUseCase *usecase.MessageUseCase
	receiptUseCase *usecase.ReceiptUseCase
	pageSize       int
}

func NewChatHandler(
	convUseCase *usecase.ConversationUseCase,
	messageUseCase *usecase.MessageUseCase,
	receiptUseCase *usecase.ReceiptUseCase,
	pageSize int,
) *ChatHandler {
	return &ChatHandler{
		convUseCase:    convUseCase,
		messageUseCase: messageUseCase,
		receiptUseCase: receiptUseCase,
		pageSize:       pageSize,
	}
}

type createConversationRequest struct {
	RecipientID int64 `json:"recipient_id" validate:"required"`
}

type sendMessageRequest struct {
	Content         string `json:"content"`
	Type            string `json:"type" validate:"omitempty,oneof=text image video file"`
	FileURL         string `json:"file_url,omitempty" validate:"omitempty,url"`
	FileName        string `json:"file_name,omitempty"`
	ParentMessageID *int64 `json:"parent_message_id,omitempty"`
	ClientRef       string `json:"client_ref,omitempty" validate:"omitempty,max=64"`
}

type setStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=active archived deleted"`
}

type markReadRequest struct {
	UptoMessageID int64 `json:"upto_message_id"`
}

func pathID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.BadRequest("Invalid "+name+" parameter", err)
	}
	return id, nil
}

// CreateConversation opens (or returns) the private conversation between the
// caller and the recipient.
func (h *ChatHandler) CreateConversation(c echo.Context) error {
	var req createConversationRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	userID := c.Get("uid").(int64)

	conv, err := h.convUseCase.GetOrCreatePrivate(c.Request().Context(), userID, req.RecipientID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, conv)
}

// ListConversations returns the caller's conversation list, newest activity
// first, with unread counts.
func (h *ChatHandler) ListConversations(c echo.Context) error {
	userID := c.Get("uid").(int64)
	params := utils.GetPaginationParams(c, h.pageSize)
	status := c.QueryParam("status")

	convs, total, err := h.convUseCase.ListForUser(c.Request().Context(), userID, status, params.PageSize, params.Offset)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Paginated(c, convs, total, params.Page, params.PageSize)
}

// GetConversation returns one conversation the caller participates in.
func (h *ChatHandler) GetConversation(c echo.Context) error {
	conversationID, err := pathID(c, "id")
	if err != nil {
		return response.Error(c, err)
	}

	userID := c.Get("uid").(int64)

	conv, err := h.convUseCase.GetByID(c.Request().Context(), conversationID, userID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, conv)
}

// SetConversationStatus archives, deletes or re-activates a conversation.
func (h *ChatHandler) SetConversationStatus(c echo.Context) error {
	conversationID, err := pathID(c, "id")
	if err != nil {
		return response.Error(c, err)
	}

	var req setStatusRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	userID := c.Get("uid").(int64)

	conv, err := h.convUseCase.SetStatus(c.Request().Context(), conversationID, userID, req.Status)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, conv)
}

// MarkRead marks messages up to upto_message_id (or everything, when omitted)
// as read by the caller.
func (h *ChatHandler) MarkRead(c echo.Context) error {
	conversationID, err := pathID(c, "id")
	if err != nil {
		return response.Error(c, err)
	}

	var req markReadRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}

	userID := c.Get("uid").(int64)

	marked, err := h.receiptUseCase.MarkRead(c.Request().Context(), userID, conversationID, req.UptoMessageID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]interface{}{
		"marked_count": marked,
	})
}

// UnreadCount returns the caller's unread badge total across conversations.
func (h *ChatHandler) UnreadCount(c echo.Context) error {
	userID := c.Get("uid").(int64)

	total, err := h.receiptUseCase.UnreadTotal(c.Request().Context(), userID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]interface{}{
		"unread_count": total,
	})
}

// ListMessages returns a page of conversation history, newest first.
func (h *ChatHandler) ListMessages(c echo.Context) error {
	conversationID, err := pathID(c, "id")
	if err != nil {
		return response.Error(c, err)
	}

	userID := c.Get("uid").(int64)
	params := utils.GetPaginationParams(c, h.pageSize)

	messages, total, err := h.messageUseCase.ListMessages(c.Request().Context(), userID, conversationID, params.PageSize, params.Offset)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Paginated(c, messages, total, params.Page, params.PageSize)
}

// SendMessage appends a message to the conversation and fans it out.
func (h *ChatHandler) SendMessage(c echo.Context) error {
	conversationID, err := pathID(c, "id")
	if err != nil {
		return response.Error(c, err)
	}

	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	userID := c.Get("uid").(int64)

	message, err := h.messageUseCase.SendMessage(c.Request().Context(), userID, usecase.SendMessageInput{
		ConversationID:  conversationID,
		Content:         req.Content,
		Type:            req.Type,
		FileURL:         req.FileURL,
		FileName:        req.FileName,
		ParentMessageID: req.ParentMessageID,
		ClientRef:       req.ClientRef,
	})
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, message)
}
