package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"example.com/finance-visualizer/backend/internal/notifications"
	"example.com/finance-visualizer/backend/internal/session"
)

const keepAliveInterval = 25 * time.Second

type NotificationHandler struct {
	Hub      *notifications.Hub
	Sessions *session.Store
}

// NewNotificationHandler создает SSE-обработчик событий сессии.
func NewNotificationHandler(hub *notifications.Hub, sessions *session.Store) *NotificationHandler {
	return &NotificationHandler{Hub: hub, Sessions: sessions}
}

// Stream открывает SSE-поток событий сессии.
func (h *NotificationHandler) Stream(c echo.Context) error {
	sess, err := lookupSession(c, h.Sessions)
	if sess == nil {
		return err
	}

	flusher, ok := c.Response().Writer.(http.Flusher)
	if !ok {
		return serverError(c)
	}

	c.Response().Header().Set(echo.HeaderContentType, "text/event-stream")
	c.Response().Header().Set(echo.HeaderCacheControl, "no-cache")
	c.Response().Header().Set(echo.HeaderConnection, "keep-alive")
	c.Response().WriteHeader(http.StatusOK)

	ch, unsubscribe := h.Hub.Subscribe(sess.ID)
	defer unsubscribe()

	_ = writeSSE(c, notifications.Event{
		Type:      notifications.EventConnected,
		Timestamp: time.Now().UTC(),
		Data: map[string]interface{}{
			"session_id": sess.ID.String(),
			"insights":   toInsightsResponse(sess.Insights()),
		},
	})
	flusher.Flush()

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := c.Response().Write([]byte(": keep-alive\n\n")); err != nil {
				return nil
			}
			flusher.Flush()
		case event, ok := <-ch:
			if !ok {
				return nil
			}
			if err := writeSSE(c, event); err != nil {
				return nil
			}
			flusher.Flush()
		}
	}
}

func writeSSE(c echo.Context, event notifications.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if _, err := c.Response().Write([]byte("event: " + event.Type + "\n")); err != nil {
		return err
	}
	if _, err := c.Response().Write([]byte("data: " + string(payload) + "\n\n")); err != nil {
		return err
	}

	return nil
}
