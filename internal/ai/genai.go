package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"
)

// GenAIClient обращается к Gemini через SDK google.golang.org/genai.
// Поддерживает многоходовый диалог: история чата уходит как contents с ролями user/model.
type GenAIClient struct {
	client    *genai.Client
	model     string
	timeout   time.Duration
	maxTokens int
}

// NewGenAIClient создает клиент SDK для Gemini Developer API.
// Пустой baseURL означает адрес SDK по умолчанию.
func NewGenAIClient(ctx context.Context, apiKey, baseURL, model string, timeout time.Duration, maxTokens int) (*GenAIClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("gemini api key is missing")
	}

	clientConfig := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if trimmed := strings.TrimSpace(baseURL); trimmed != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: strings.TrimRight(trimmed, "/") + "/"}
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &GenAIClient{
		client:    client,
		model:     model,
		timeout:   timeout,
		maxTokens: maxTokens,
	}, nil
}

// Chat отправляет диалог в модель и возвращает текст ответа и сериализованный ответ SDK.
func (c *GenAIClient) Chat(ctx context.Context, messages []Message) (string, []byte, error) {
	var system []*genai.Part
	contents := make([]*genai.Content, 0, len(messages))

	for _, message := range messages {
		text := strings.TrimSpace(message.Content)
		if text == "" {
			continue
		}

		switch strings.ToLower(strings.TrimSpace(message.Role)) {
		case RoleSystem:
			system = append(system, &genai.Part{Text: text})
		case RoleAssistant, "model":
			contents = append(contents, genai.NewContentFromText(text, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(text, genai.RoleUser))
		}
	}

	if len(contents) == 0 {
		return "", nil, errors.New("gemini request has no user content")
	}

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr[float32](defaultTemperature),
		MaxOutputTokens: int32(resolveMaxTokens(c.maxTokens)),
	}
	if len(system) > 0 {
		config.SystemInstruction = &genai.Content{Parts: system}
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		return "", nil, wrapGenAIError(err)
	}

	raw, err := json.Marshal(resp)
	if err != nil {
		raw = nil
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", raw, errors.New("gemini response is empty")
	}

	return text, raw, nil
}

func wrapGenAIError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &APIError{Provider: ProviderGemini, StatusCode: apiErr.Code, Message: apiErr.Message}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return &APIError{Provider: ProviderGemini, StatusCode: apiErrPtr.Code, Message: apiErrPtr.Message}
	}
	return fmt.Errorf("gemini generate content: %w", err)
}
