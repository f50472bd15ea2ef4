package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"example.com/finance-visualizer/backend/internal/ai"
	"example.com/finance-visualizer/backend/internal/models"
	"example.com/finance-visualizer/backend/internal/notifications"
	"example.com/finance-visualizer/backend/internal/session"
)

type AIHandler struct {
	Service  *ai.Service
	Sessions *session.Store
	Notifier *notifications.Hub
	Requests AIRequestLogger
	Provider string
	Model    string
	Timeout  time.Duration
}

// NewAIHandler создает обработчик AI-анализа и чата.
func NewAIHandler(service *ai.Service, sessions *session.Store, notifier *notifications.Hub, requests AIRequestLogger, provider, model string, timeout time.Duration) *AIHandler {
	return &AIHandler{
		Service:  service,
		Sessions: sessions,
		Notifier: notifier,
		Requests: requests,
		Provider: provider,
		Model:    model,
		Timeout:  timeout,
	}
}

// GetInsights возвращает текущее состояние AI-анализа сессии.
func (h *AIHandler) GetInsights(c echo.Context) error {
	sess, err := lookupSession(c, h.Sessions)
	if sess == nil {
		return err
	}

	return c.JSON(http.StatusOK, toInsightsResponse(sess.Insights()))
}

// RegenerateInsights синхронно перезапрашивает AI-анализ.
func (h *AIHandler) RegenerateInsights(c echo.Context) error {
	sess, err := lookupSession(c, h.Sessions)
	if sess == nil {
		return err
	}

	if !sess.BeginInsights() {
		return conflict(c, "insights generation already in progress")
	}

	h.runInsights(c.Request().Context(), sess)
	return c.JSON(http.StatusOK, toInsightsResponse(sess.Insights()))
}

// StartInsights запускает генерацию в фоне. Возвращает false, если она уже идет.
func (h *AIHandler) StartInsights(sess *session.Session) bool {
	if !sess.BeginInsights() {
		return false
	}

	go h.runInsights(context.Background(), sess)
	return true
}

func (h *AIHandler) runInsights(ctx context.Context, sess *session.Session) {
	if h.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.Timeout)
		defer cancel()
	}

	text, prompt, raw, err := h.Service.Insights(ctx, sess.Transactions)
	h.logAIRequest(context.WithoutCancel(ctx), sess, models.AIRequestInsights, prompt, nil, text, raw, err)

	if err != nil {
		slog.Warn("ai insights fallback used", slog.String("session_id", sess.ID.String()), slog.String("error", err.Error()))
		sess.CompleteInsights(ai.FallbackInsights(sess.Analysis), true)
		h.publish(sess, notifications.EventInsightsFailed)
		return
	}

	slog.Info("ai insights generated", slog.String("session_id", sess.ID.String()))
	sess.CompleteInsights(text, false)
	h.publish(sess, notifications.EventInsightsReady)
}

func (h *AIHandler) publish(sess *session.Session, eventType string) {
	if h.Notifier == nil {
		return
	}

	h.Notifier.Publish(sess.ID, notifications.Event{
		Type: eventType,
		Data: toInsightsResponse(sess.Insights()),
	})
}

func (h *AIHandler) logAIRequest(ctx context.Context, sess *session.Session, requestType models.AIRequestType, prompt string, requestPayload []byte, response string, raw []byte, err error) {
	if h.Requests == nil {
		return
	}

	log := models.AIRequest{
		SessionID:      sess.ID,
		RequestType:    requestType,
		Provider:       h.Provider,
		Model:          h.Model,
		Prompt:         prompt,
		RequestPayload: requestPayload,
		ResponseText:   response,
		RawResponse:    string(raw),
		Success:        err == nil,
	}
	if err != nil {
		errMsg := err.Error()
		log.ErrorMessage = &errMsg
	}

	if logErr := h.Requests.LogRequest(ctx, log); logErr != nil {
		slog.Warn("failed to log ai request", slog.String("session_id", sess.ID.String()), slog.String("error", logErr.Error()))
	}
}

func marshalPayload(value interface{}) []byte {
	payload, err := json.Marshal(value)
	if err != nil {
		return nil
	}
	return payload
}
