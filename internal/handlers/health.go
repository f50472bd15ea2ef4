package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"example.com/finance-visualizer/backend/internal/session"
)

type HealthResponse struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
	Database bool   `json:"database"`
}

// Health возвращает обработчик статуса сервиса.
func Health(sessions *session.Store, databaseEnabled bool) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, HealthResponse{
			Status:   "ok",
			Sessions: sessions.Len(),
			Database: databaseEnabled,
		})
	}
}
