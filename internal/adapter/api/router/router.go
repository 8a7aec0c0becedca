package router

import (
	"github.com/labstack/echo/v4"

	"otomart/internal/adapter/api/handler"
	"otomart/internal/adapter/api/middleware"
)

type Handlers struct {
	Chat      *handler.ChatHandler
	Order     *handler.OrderHandler
	WebSocket *handler.WebSocketHandler
	Health    *handler.HealthHandler
}

func Setup(e *echo.Echo, h Handlers, authMiddleware *middleware.AuthMiddleware) {
	SetupChatRouter(e, h.Chat, authMiddleware)
	SetupOrderRouter(e, h.Order, authMiddleware)
	SetupWebSocketRouter(e, h.WebSocket, authMiddleware)
	SetupHealthRouter(e, h.Health)
}
