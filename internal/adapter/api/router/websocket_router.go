package router

import (
	"github.com/labstack/echo/v4"

	"otomart/internal/adapter/api/handler"
	"otomart/internal/adapter/api/middleware"
)

// SetupWebSocketRouter wires the realtime endpoint. Auth middleware runs
// here too; socket clients pass the token as a query parameter.
func SetupWebSocketRouter(e *echo.Echo, wsHandler *handler.WebSocketHandler, authMiddleware *middleware.AuthMiddleware) {
	e.GET("/v1/ws", wsHandler.HandleWebSocket, authMiddleware.Authenticate)
}
