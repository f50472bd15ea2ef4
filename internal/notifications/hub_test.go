package notifications

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

// TestHubPublishSubscribe проверяет доставку событий подписчику сессии.
func TestHubPublishSubscribe(t *testing.T) {
	hub := NewHub()
	sessionID := uuid.New()

	ch, unsubscribe := hub.Subscribe(sessionID)
	defer unsubscribe()

	hub.Publish(uuid.New(), Event{Type: "other"})
	hub.Publish(sessionID, Event{Type: EventInsightsReady})

	select {
	case event := <-ch:
		if event.Type != EventInsightsReady {
			t.Fatalf("expected event type %s, got %s", EventInsightsReady, event.Type)
		}
		if event.Timestamp.IsZero() {
			t.Fatal("expected timestamp to be set")
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected event to be delivered")
	}
}

// TestHubUnsubscribe проверяет закрытие канала после отписки.
func TestHubUnsubscribe(t *testing.T) {
	hub := NewHub()
	sessionID := uuid.New()

	ch, unsubscribe := hub.Subscribe(sessionID)
	unsubscribe()
	unsubscribe()

	if _, ok := <-ch; ok {
		t.Fatal("expected channel to be closed")
	}
	if hub.Subscribers(sessionID) != 0 {
		t.Fatal("expected no subscribers")
	}
}

// TestHubClose проверяет закрытие всех подписок сессии.
func TestHubClose(t *testing.T) {
	hub := NewHub()
	sessionID := uuid.New()

	ch, unsubscribe := hub.Subscribe(sessionID)
	hub.Close(sessionID)

	event, ok := <-ch
	if !ok || event.Type != EventSessionClosed {
		t.Fatalf("expected session_closed event, got %+v (ok=%v)", event, ok)
	}
	if _, ok := <-ch; ok {
		t.Fatal("expected channel to be closed")
	}

	unsubscribe()
}
