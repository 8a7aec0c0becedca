package handler

import (
	"net/http"

	gorillaws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	ws "otomart/internal/infrastructure/websocket"
	"otomart/pkg/errors"
	"otomart/pkg/logger"
)

type WebSocketHandler struct {
	hub *ws.Hub
}

var upgrader = gorillaws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // restrict in production
	},
}

func NewWebSocketHandler(hub *ws.Hub) *WebSocketHandler {
	return &WebSocketHandler{hub: hub}
}

// HandleWebSocket upgrades the request and attaches the connection to the
// hub. Auth has already run; the socket route accepts ?token= for browsers.
func (h *WebSocketHandler) HandleWebSocket(c echo.Context) error {
	userID, ok := c.Get("uid").(int64)
	if !ok || userID == 0 {
		return errors.Unauthorized("Authentication required", nil)
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return errors.Internal("Failed to upgrade connection", err)
	}

	client := h.hub.AddClient(userID, conn)
	logger.Debug("websocket connected: user %d client %s", userID, client.ID)

	return nil
}
