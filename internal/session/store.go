package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"example.com/finance-visualizer/backend/internal/analysis"
	"example.com/finance-visualizer/backend/internal/cache"
	"example.com/finance-visualizer/backend/internal/transactions"
)

// CloseReason объясняет, почему сессия ушла из хранилища без явного сброса.
type CloseReason string

const (
	ReasonEvicted CloseReason = "evicted"
	ReasonExpired CloseReason = "expired"
)

// CloseFunc вызывается для сессий, вытесненных по SESSION_MAX или истекших по SESSION_TTL.
type CloseFunc func(id uuid.UUID, reason CloseReason)

// Store держит активные сессии в памяти процесса.
type Store struct {
	sessions     *cache.LRU[*Session]
	historyLimit int

	mu      sync.RWMutex
	onClose CloseFunc
}

// NewStore создает хранилище сессий с ограничением по числу и сроку жизни.
func NewStore(maxSessions int, ttl time.Duration, historyLimit int) *Store {
	return &Store{
		sessions:     cache.NewLRU[*Session](maxSessions, ttl),
		historyLimit: historyLimit,
	}
}

// Create регистрирует новую сессию для успешно разобранного файла.
func (s *Store) Create(fileName string, txs []transactions.Transaction, result analysis.Result, report transactions.Report) *Session {
	sess := &Session{
		ID:           uuid.New(),
		FileName:     fileName,
		Transactions: txs,
		Analysis:     result,
		Report:       report,
		CreatedAt:    time.Now().UTC(),
		historyLimit: s.historyLimit,
		insights:     Insights{Status: InsightsIdle},
	}

	if evicted, ok := s.sessions.Set(sess.ID.String(), sess); ok {
		if id, err := uuid.Parse(evicted); err == nil {
			s.notifyClosed(id, ReasonEvicted)
		}
	}
	return sess
}

// OnClose задает обработчик вытесненных и истекших сессий.
func (s *Store) OnClose(fn CloseFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onClose = fn
}

func (s *Store) notifyClosed(id uuid.UUID, reason CloseReason) {
	s.mu.RLock()
	fn := s.onClose
	s.mu.RUnlock()

	if fn != nil {
		fn(id, reason)
	}
}

// Get возвращает сессию по идентификатору.
func (s *Store) Get(id uuid.UUID) (*Session, bool) {
	return s.sessions.Get(id.String())
}

// Delete завершает сессию.
func (s *Store) Delete(id uuid.UUID) bool {
	return s.sessions.Delete(id.String())
}

// Len возвращает число сессий в памяти.
func (s *Store) Len() int {
	return s.sessions.Len()
}

// CleanExpired удаляет просроченные сессии, вызывает для них обработчик OnClose
// и возвращает их идентификаторы.
func (s *Store) CleanExpired() []uuid.UUID {
	keys := s.sessions.CleanExpired()
	ids := make([]uuid.UUID, 0, len(keys))
	for _, key := range keys {
		id, err := uuid.Parse(key)
		if err != nil {
			continue
		}
		ids = append(ids, id)
		s.notifyClosed(id, ReasonExpired)
	}
	return ids
}

// RunJanitor периодически чистит просроченные сессии до отмены контекста.
func (s *Store) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.CleanExpired()
		}
	}
}
