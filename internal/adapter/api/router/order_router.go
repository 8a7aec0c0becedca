package router

import (
	"github.com/labstack/echo/v4"

	"otomart/internal/adapter/api/handler"
	"otomart/internal/adapter/api/middleware"
)

func SetupOrderRouter(e *echo.Echo, orderHandler *handler.OrderHandler, authMiddleware *middleware.AuthMiddleware) {
	group := e.Group("/v1/orders")
	group.Use(authMiddleware.Authenticate)

	group.POST("/:id/conversation", orderHandler.OpenConversation) // POST /v1/orders/:id/conversation - link order to thread
	group.GET("/:id/conversation", orderHandler.GetConversation)   // GET /v1/orders/:id/conversation
}
