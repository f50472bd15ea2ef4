package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	groqMaxAttempts  = 2
	groqRetryDelay   = 500 * time.Millisecond
	groqFinishLength = "length"
)

// GroqClient вызывает OpenAI-совместимый chat completions API Groq.
// Временные ошибки (429, 5xx) повторяются один раз.
type GroqClient struct {
	apiKey     string
	baseURL    string
	model      string
	maxTokens  int
	retryDelay time.Duration
	httpClient *http.Client
}

type groqMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type groqChatRequest struct {
	Model       string        `json:"model"`
	Messages    []groqMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type groqChatResponse struct {
	Choices []struct {
		Message      groqMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewGroqClient создает клиент Groq с заданными параметрами.
func NewGroqClient(apiKey, baseURL, model string, timeout time.Duration, maxTokens int) *GroqClient {
	return &GroqClient{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		maxTokens:  maxTokens,
		retryDelay: groqRetryDelay,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Chat отправляет диалог в Groq и возвращает текст ответа и сырой ответ API.
func (c *GroqClient) Chat(ctx context.Context, messages []Message) (string, []byte, error) {
	if strings.TrimSpace(c.apiKey) == "" {
		return "", nil, errors.New("groq api key is missing")
	}

	converted := groqMessages(messages)
	if len(converted) == 0 || converted[len(converted)-1].Role == RoleSystem {
		return "", nil, errors.New("groq request has no user content")
	}

	payload, err := json.Marshal(groqChatRequest{
		Model:       c.model,
		Messages:    converted,
		Temperature: defaultTemperature,
		MaxTokens:   resolveMaxTokens(c.maxTokens),
	})
	if err != nil {
		return "", nil, err
	}

	var body []byte
	for attempt := 1; ; attempt++ {
		body, err = c.post(ctx, payload)

		var apiErr *APIError
		if err == nil || !errors.As(err, &apiErr) || !apiErr.Temporary() || attempt >= groqMaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return "", body, ctx.Err()
		case <-time.After(c.retryDelay):
		}
	}
	if err != nil {
		return "", body, err
	}

	var parsed groqChatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", body, err
	}
	if len(parsed.Choices) == 0 {
		return "", body, errors.New("groq response missing choices")
	}

	choice := parsed.Choices[0]
	text := strings.TrimSpace(choice.Message.Content)
	if text == "" {
		if choice.FinishReason == groqFinishLength {
			return "", body, errors.New("groq response was cut by max_tokens before any text")
		}
		return "", body, errors.New("groq response is empty")
	}

	return text, body, nil
}

func (c *GroqClient) post(ctx context.Context, payload []byte) ([]byte, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	request.Header.Set("Authorization", "Bearer "+c.apiKey)
	request.Header.Set("Content-Type", "application/json")

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, err
	}

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		message := strings.TrimSpace(string(body))
		var apiErr groqChatResponse
		if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != nil {
			message = apiErr.Error.Message
		}
		return body, &APIError{Provider: ProviderGroq, StatusCode: response.StatusCode, Message: message}
	}

	return body, nil
}

// groqMessages собирает все системные сообщения в одно первое сообщение
// и приводит роль model к assistant. Пустые сообщения пропускаются.
func groqMessages(messages []Message) []groqMessage {
	system := make([]string, 0)
	out := make([]groqMessage, 0, len(messages)+1)

	for _, message := range messages {
		text := strings.TrimSpace(message.Content)
		if text == "" {
			continue
		}

		switch strings.ToLower(strings.TrimSpace(message.Role)) {
		case RoleSystem:
			system = append(system, text)
		case RoleAssistant, "model":
			out = append(out, groqMessage{Role: RoleAssistant, Content: text})
		default:
			out = append(out, groqMessage{Role: RoleUser, Content: text})
		}
	}

	if len(system) > 0 {
		out = append([]groqMessage{{Role: RoleSystem, Content: strings.Join(system, "\n\n")}}, out...)
	}
	return out
}
