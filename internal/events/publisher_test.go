package events

import (
	"sync"
	"testing"

	"github.com/quartzchat/feedline/internal/models"
)

func newTimelineEvent(roomID, id string, eventType models.EventType) *models.Event {
	return &models.Event{
		ID:     id,
		RoomID: roomID,
		Sender: "@alice:example.org",
		Type:   eventType,
	}
}

func TestPublishDeliversToMatchingSubscribers(t *testing.T) {
	p := NewInMemoryPublisher()

	var mu sync.Mutex
	var received []string

	err := p.Subscribe("sub-1", Filter{RoomIDs: []string{"!abc:example.org"}}, func(event *models.Event) {
		mu.Lock()
		received = append(received, event.ID)
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	p.Publish(newTimelineEvent("!abc:example.org", "$1", models.EventTypeMessage))
	p.Publish(newTimelineEvent("!other:example.org", "$2", models.EventTypeMessage))

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 1 || received[0] != "$1" {
		t.Fatalf("unexpected deliveries: %v", received)
	}
}

func TestFilterMatchesEventTypes(t *testing.T) {
	filter := Filter{EventTypes: []models.EventType{models.EventTypeMessage}}

	if !filter.Matches(newTimelineEvent("!abc:example.org", "$1", models.EventTypeMessage)) {
		t.Fatal("expected message event to match")
	}
	if filter.Matches(newTimelineEvent("!abc:example.org", "$2", models.EventTypeMember)) {
		t.Fatal("expected member event not to match")
	}
	if filter.Matches(nil) {
		t.Fatal("expected nil event not to match")
	}
}

func TestSubscribeValidation(t *testing.T) {
	p := NewInMemoryPublisher()

	if err := p.Subscribe("", Filter{}, func(*models.Event) {}); err != ErrInvalidSubscriptionID {
		t.Fatalf("expected ErrInvalidSubscriptionID, got %v", err)
	}
	if err := p.Subscribe("sub-1", Filter{}, nil); err != ErrNilHandler {
		t.Fatalf("expected ErrNilHandler, got %v", err)
	}

	if err := p.Subscribe("sub-1", Filter{}, func(*models.Event) {}); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if err := p.Subscribe("sub-1", Filter{}, func(*models.Event) {}); err != ErrSubscriptionExists {
		t.Fatalf("expected ErrSubscriptionExists, got %v", err)
	}
}

func TestUnsubscribe(t *testing.T) {
	p := NewInMemoryPublisher()

	if err := p.Unsubscribe("missing"); err != ErrSubscriptionNotFound {
		t.Fatalf("expected ErrSubscriptionNotFound, got %v", err)
	}

	_ = p.Subscribe("sub-1", Filter{}, func(*models.Event) {})
	if p.SubscriberCount() != 1 {
		t.Fatalf("expected 1 subscriber, got %d", p.SubscriberCount())
	}

	if err := p.Unsubscribe("sub-1"); err != nil {
		t.Fatalf("Unsubscribe: %v", err)
	}
	if p.SubscriberCount() != 0 {
		t.Fatalf("expected 0 subscribers, got %d", p.SubscriberCount())
	}
}

func TestCloseRejectsNewSubscriptions(t *testing.T) {
	p := NewInMemoryPublisher()
	_ = p.Subscribe("sub-1", Filter{}, func(*models.Event) {})

	p.Close()
	if p.SubscriberCount() != 0 {
		t.Fatalf("expected 0 subscribers after close, got %d", p.SubscriberCount())
	}
	if err := p.Subscribe("sub-2", Filter{}, func(*models.Event) {}); err != ErrPublisherClosed {
		t.Fatalf("expected ErrPublisherClosed, got %v", err)
	}
}
