package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"example.com/finance-visualizer/backend/internal/ai"
	"example.com/finance-visualizer/backend/internal/analysis"
	"example.com/finance-visualizer/backend/internal/transactions"
)

type InsightsStatus string

const (
	InsightsIdle    InsightsStatus = "idle"
	InsightsPending InsightsStatus = "pending"
	InsightsReady   InsightsStatus = "ready"
	InsightsFailed  InsightsStatus = "failed"
)

type Insights struct {
	Status    InsightsStatus
	Text      string
	Fallback  bool
	UpdatedAt time.Time
}

// Session хранит результат одной загрузки и состояние чата по ней.
// Операции, анализ и отчет не меняются после создания.
type Session struct {
	ID           uuid.UUID
	FileName     string
	Transactions []transactions.Transaction
	Analysis     analysis.Result
	Report       transactions.Report
	CreatedAt    time.Time

	mu           sync.RWMutex
	historyLimit int
	history      []ai.Message
	insights     Insights
}

// History возвращает копию истории чата.
func (s *Session) History() []ai.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ai.Message, len(s.history))
	copy(out, s.history)
	return out
}

// AppendExchange добавляет вопрос и ответ в историю, отбрасывая самые старые пары сверх лимита.
func (s *Session) AppendExchange(question, reply string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append(s.history,
		ai.Message{Role: ai.RoleUser, Content: question},
		ai.Message{Role: ai.RoleAssistant, Content: reply},
	)

	if s.historyLimit > 0 && len(s.history) > s.historyLimit*2 {
		s.history = append([]ai.Message(nil), s.history[len(s.history)-s.historyLimit*2:]...)
	}
}

// Insights возвращает текущее состояние AI-анализа.
func (s *Session) Insights() Insights {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.insights
}

// BeginInsights переводит анализ в состояние pending. Возвращает false, если генерация уже идет.
func (s *Session) BeginInsights() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.insights.Status == InsightsPending {
		return false
	}
	s.insights = Insights{Status: InsightsPending, UpdatedAt: time.Now().UTC()}
	return true
}

// CompleteInsights сохраняет текст анализа. fallback отмечает шаблонный ответ.
func (s *Session) CompleteInsights(text string, fallback bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := InsightsReady
	if fallback {
		status = InsightsFailed
	}
	s.insights = Insights{Status: status, Text: text, Fallback: fallback, UpdatedAt: time.Now().UTC()}
}
