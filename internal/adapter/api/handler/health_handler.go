package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"otomart/internal/adapter/repository"
)

type HealthHandler struct {
	db *repository.Database
}

func NewHealthHandler(db *repository.Database) *HealthHandler {
	return &HealthHandler{db: db}
}

func (h *HealthHandler) CheckHealth(c echo.Context) error {
	if err := h.db.Conn.PingContext(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "Database connection failed",
			"error":  err.Error(),
		})
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status": "Server is running",
		"time":   time.Now().Format(time.RFC3339),
	})
}
