package ai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"example.com/finance-visualizer/backend/internal/config"
)

// TestNewClientProviders проверяет выбор реализации по провайдеру.
func TestNewClientProviders(t *testing.T) {
	for _, provider := range []string{"Gemini", ProviderGenAI} {
		client, err := NewClient(context.Background(), config.AIConfig{Provider: provider, APIKey: "key", Model: "gemini-2.5-flash"})
		if err != nil {
			t.Fatalf("%s: expected no error, got %v", provider, err)
		}
		if _, ok := client.(*GenAIClient); !ok {
			t.Fatalf("%s: expected *GenAIClient, got %T", provider, client)
		}
	}

	if _, err := NewClient(context.Background(), config.AIConfig{Provider: ProviderGemini}); err == nil {
		t.Fatal("expected error for missing gemini api key")
	}

	client, err := NewClient(context.Background(), config.AIConfig{Provider: ProviderGroq})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if _, ok := client.(*GroqClient); !ok {
		t.Fatalf("expected *GroqClient, got %T", client)
	}

	if _, err := NewClient(context.Background(), config.AIConfig{Provider: "openai"}); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

type capturedGeminiRequest struct {
	Contents []struct {
		Role  string `json:"role"`
		Parts []struct {
			Text string `json:"text"`
		} `json:"parts"`
	} `json:"contents"`
	SystemInstruction *struct {
		Parts []struct {
			Text string `json:"text"`
		} `json:"parts"`
	} `json:"systemInstruction"`
	GenerationConfig *struct {
		MaxOutputTokens int `json:"maxOutputTokens"`
	} `json:"generationConfig"`
}

// TestGenAIClientChat проверяет многоходовый диалог через SDK и разбор ответа.
func TestGenAIClientChat(t *testing.T) {
	var captured capturedGeminiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "models/test-model:generateContent") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &captured)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"Hola "},{"text":"mundo"}]}}]}`))
	}))
	defer srv.Close()

	client, err := NewGenAIClient(context.Background(), "key", srv.URL, "test-model", time.Second, 0)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	text, raw, err := client.Chat(context.Background(), []Message{
		{Role: RoleSystem, Content: "sistema"},
		{Role: RoleUser, Content: "pregunta"},
		{Role: RoleAssistant, Content: "respuesta"},
		{Role: RoleUser, Content: "otra"},
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if text != "Hola mundo" || len(raw) == 0 {
		t.Fatalf("unexpected result %q", text)
	}

	if captured.SystemInstruction == nil || captured.SystemInstruction.Parts[0].Text != "sistema" {
		t.Fatalf("expected system instruction, got %+v", captured.SystemInstruction)
	}
	if len(captured.Contents) != 3 || captured.Contents[1].Role != "model" {
		t.Fatalf("unexpected contents %+v", captured.Contents)
	}
	if captured.GenerationConfig == nil || captured.GenerationConfig.MaxOutputTokens != defaultMaxTokens {
		t.Fatalf("expected default max tokens, got %+v", captured.GenerationConfig)
	}
}

// TestGroqClientError проверяет разбор ошибки API.
func TestGroqClientError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer key" {
			t.Errorf("unexpected auth header %q", r.Header.Get("Authorization"))
		}
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad model"}}`))
	}))
	defer srv.Close()

	client := NewGroqClient("key", srv.URL, "model", time.Second, 100)
	_, raw, err := client.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hola"}})
	if err == nil || err.Error() != "groq api error: bad model" {
		t.Fatalf("expected api error, got %v", err)
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadRequest || apiErr.Temporary() {
		t.Fatalf("expected permanent *APIError, got %#v", err)
	}
	if len(raw) == 0 {
		t.Fatal("expected raw body on error")
	}
}

// TestGroqClientRetry проверяет повтор после временной ошибки и сборку сообщений.
func TestGroqClientRetry(t *testing.T) {
	var calls int32
	var captured groqChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"message":"rate limited"}}`))
			return
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &captured)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":" listo "},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	client := NewGroqClient("key", srv.URL, "model", time.Second, 0)
	client.retryDelay = 0

	text, _, err := client.Chat(context.Background(), []Message{
		{Role: RoleUser, Content: "hola"},
		{Role: RoleSystem, Content: "uno"},
		{Role: "model", Content: "respuesta"},
		{Role: RoleSystem, Content: "dos"},
		{Role: RoleUser, Content: "  "},
		{Role: RoleUser, Content: "otra"},
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if text != "listo" || atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected retry and trimmed text, got %q after %d calls", text, calls)
	}

	if len(captured.Messages) != 4 {
		t.Fatalf("expected 4 messages, got %+v", captured.Messages)
	}
	if captured.Messages[0].Role != RoleSystem || captured.Messages[0].Content != "uno\n\ndos" {
		t.Fatalf("expected merged system message first, got %+v", captured.Messages[0])
	}
	if captured.Messages[2].Role != RoleAssistant {
		t.Fatalf("expected model role mapped to assistant, got %+v", captured.Messages[2])
	}
	if captured.MaxTokens != defaultMaxTokens {
		t.Fatalf("expected default max tokens, got %d", captured.MaxTokens)
	}
}

// TestGroqClientTruncated проверяет ответ, обрезанный лимитом токенов.
func TestGroqClientTruncated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":""},"finish_reason":"length"}]}`))
	}))
	defer srv.Close()

	client := NewGroqClient("key", srv.URL, "model", time.Second, 10)
	if _, _, err := client.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hola"}}); err == nil || !strings.Contains(err.Error(), "max_tokens") {
		t.Fatalf("expected truncation error, got %v", err)
	}
}
