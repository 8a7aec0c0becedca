package router

import (
	"github.com/labstack/echo/v4"

	"otomart/internal/adapter/api/handler"
	"otomart/internal/adapter/api/middleware"
)

// SetupChatRouter wires all conversation routes (excluding WebSocket).
func SetupChatRouter(e *echo.Echo, chatHandler *handler.ChatHandler, authMiddleware *middleware.AuthMiddleware) {
	group := e.Group("/v1/conversations")
	group.Use(authMiddleware.Authenticate)

	group.POST("", chatHandler.CreateConversation)           // POST /v1/conversations - open a private conversation
	group.GET("", chatHandler.ListConversations)             // GET /v1/conversations - list the caller's conversations
	group.GET("/unread-count", chatHandler.UnreadCount)      // GET /v1/conversations/unread-count - badge total
	group.GET("/:id", chatHandler.GetConversation)           // GET /v1/conversations/:id
	group.PUT("/:id/status", chatHandler.SetConversationStatus) // PUT /v1/conversations/:id/status - archive/delete/reactivate
	group.PUT("/:id/read", chatHandler.MarkRead)             // PUT /v1/conversations/:id/read - mark messages read

	group.GET("/:id/messages", chatHandler.ListMessages)  // GET /v1/conversations/:id/messages
	group.POST("/:id/messages", chatHandler.SendMessage)  // POST /v1/conversations/:id/messages
}
