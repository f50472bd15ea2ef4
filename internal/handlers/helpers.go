package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"example.com/finance-visualizer/backend/internal/models"
	"example.com/finance-visualizer/backend/internal/session"
)

// UploadStore сохраняет аудит загрузок. nil означает, что база выключена.
type UploadStore interface {
	Create(ctx context.Context, upload models.Upload) (models.Upload, error)
	MarkReset(ctx context.Context, sessionID uuid.UUID) error
	Overview(ctx context.Context) (models.UploadOverview, error)
}

// AIRequestLogger пишет журнал обращений к модели.
type AIRequestLogger interface {
	LogRequest(ctx context.Context, log models.AIRequest) error
}

func lookupSession(c echo.Context, store *session.Store) (*session.Session, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return nil, badRequest(c, "invalid session id")
	}

	sess, ok := store.Get(id)
	if !ok {
		return nil, notFound(c, "session not found")
	}

	return sess, nil
}

func badRequest(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, map[string]string{"error": message})
}

func notFound(c echo.Context, message string) error {
	return c.JSON(http.StatusNotFound, map[string]string{"error": message})
}

func conflict(c echo.Context, message string) error {
	return c.JSON(http.StatusConflict, map[string]string{"error": message})
}

func unprocessable(c echo.Context, message string) error {
	return c.JSON(http.StatusUnprocessableEntity, map[string]string{"error": message})
}

func serviceUnavailable(c echo.Context, message string) error {
	return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": message})
}

func serverError(c echo.Context) error {
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal server error"})
}
