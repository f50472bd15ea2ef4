package ai

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"example.com/finance-visualizer/backend/internal/config"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"

	ProviderGemini = "gemini"
	ProviderGroq   = "groq"
	// ProviderGenAI оставлен как синоним gemini для старых .env.
	ProviderGenAI = "genai"

	defaultMaxTokens   = 4096
	defaultTemperature = 0.2
)

// APIError описывает ответ провайдера с кодом ошибки.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s api error: %s", e.Provider, e.Message)
}

// Temporary сообщает, имеет ли смысл повторить запрос.
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Client interface {
	Chat(ctx context.Context, messages []Message) (string, []byte, error)
}

// NewClient выбирает реализацию клиента по AI_PROVIDER.
func NewClient(ctx context.Context, cfg config.AIConfig) (Client, error) {
	switch strings.ToLower(cfg.Provider) {
	case ProviderGemini, ProviderGenAI:
		return NewGenAIClient(ctx, cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.Timeout, cfg.MaxOutputTokens)
	case ProviderGroq:
		return NewGroqClient(cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.Timeout, cfg.MaxOutputTokens), nil
	default:
		return nil, fmt.Errorf("unknown ai provider %q", cfg.Provider)
	}
}

func resolveMaxTokens(value int) int {
	if value > 0 {
		return value
	}

	return defaultMaxTokens
}

type unavailableClient struct {
	err error
}

// Unavailable возвращает клиент, который всегда отвечает ошибкой err.
// Используется, когда провайдер не удалось настроить при старте.
func Unavailable(err error) Client {
	return unavailableClient{err: err}
}

func (c unavailableClient) Chat(context.Context, []Message) (string, []byte, error) {
	return "", nil, c.err
}
