package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"example.com/finance-visualizer/backend/internal/ai"
	"example.com/finance-visualizer/backend/internal/models"
)

type ChatRequest struct {
	Message string `json:"message" validate:"required,max=2000"`
}

type ChatResponse struct {
	Reply    string `json:"reply"`
	Fallback bool   `json:"fallback"`
}

// Chat отвечает на вопрос пользователя по данным сессии.
func (h *AIHandler) Chat(c echo.Context) error {
	sess, err := lookupSession(c, h.Sessions)
	if sess == nil {
		return err
	}

	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid payload")
	}
	req.Message = strings.TrimSpace(req.Message)
	if err := c.Validate(&req); err != nil {
		return badRequest(c, "validation failed")
	}

	ctx := c.Request().Context()
	reply, prompt, raw, err := h.Service.Chat(ctx, sess.Transactions, sess.History(), req.Message)
	h.logAIRequest(ctx, sess, models.AIRequestChat, prompt, marshalPayload(req), reply, raw, err)

	if err != nil {
		slog.Warn("ai chat fallback used", slog.String("session_id", sess.ID.String()), slog.String("error", err.Error()))
		return c.JSON(http.StatusOK, ChatResponse{Reply: ai.FallbackChatReply, Fallback: true})
	}

	sess.AppendExchange(req.Message, reply)
	return c.JSON(http.StatusOK, ChatResponse{Reply: reply})
}

// History возвращает приветствие и историю чата сессии.
func (h *AIHandler) History(c echo.Context) error {
	sess, err := lookupSession(c, h.Sessions)
	if sess == nil {
		return err
	}

	return c.JSON(http.StatusOK, ChatHistoryResponse{
		Greeting: ai.ChatGreeting,
		Messages: toChatMessages(sess.History()),
	})
}
