package notifications

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	EventConnected      = "connected"
	EventInsightsReady  = "insights_ready"
	EventInsightsFailed = "insights_failed"
	EventSessionClosed  = "session_closed"
)

type Event struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

type Hub struct {
	mu          sync.RWMutex
	subscribers map[uuid.UUID]map[chan Event]struct{}
}

// NewHub создает хаб для SSE-подписок на события сессий.
func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[uuid.UUID]map[chan Event]struct{}),
	}
}

// Subscribe подписывает клиента на события сессии и возвращает канал и функцию отписки.
func (h *Hub) Subscribe(sessionID uuid.UUID) (<-chan Event, func()) {
	ch := make(chan Event, 10)

	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.subscribers[sessionID]
	if !ok {
		subs = make(map[chan Event]struct{})
		h.subscribers[sessionID] = subs
	}
	subs[ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()

			if subs, exists := h.subscribers[sessionID]; exists {
				if _, ok := subs[ch]; ok {
					delete(subs, ch)
					close(ch)
				}
				if len(subs) == 0 {
					delete(h.subscribers, sessionID)
				}
			}
		})
	}
}

// Publish отправляет событие всем подписчикам сессии. Медленные подписчики пропускают событие.
func (h *Hub) Publish(sessionID uuid.UUID, event Event) {
	event.Timestamp = time.Now().UTC()

	h.mu.RLock()
	defer h.mu.RUnlock()

	subs, ok := h.subscribers[sessionID]
	if !ok {
		return
	}

	for ch := range subs {
		select {
		case ch <- event:
		default:
		}
	}
}

// Close отправляет session_closed и закрывает все подписки сессии.
func (h *Hub) Close(sessionID uuid.UUID) {
	event := Event{Type: EventSessionClosed, Timestamp: time.Now().UTC()}

	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subscribers[sessionID] {
		select {
		case ch <- event:
		default:
		}
		close(ch)
	}
	delete(h.subscribers, sessionID)
}

// Subscribers возвращает число подписчиков сессии.
func (h *Hub) Subscribers(sessionID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[sessionID])
}
