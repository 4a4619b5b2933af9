// Package events provides in-process publishing of timeline appends to
// view-layer subscribers.
package events

import (
	"errors"
	"sync"

	"github.com/quartzchat/feedline/internal/models"
)

var (
	ErrInvalidSubscriptionID = errors.New("subscription ID is required")
	ErrNilHandler            = errors.New("handler cannot be nil")
	ErrSubscriptionExists    = errors.New("subscription ID already in use")
	ErrSubscriptionNotFound  = errors.New("subscription not found")
	ErrPublisherClosed       = errors.New("publisher is closed")
)

// EventHandler receives events matching a subscription.
type EventHandler func(event *models.Event)

// Filter narrows which published events a subscription receives. Zero-value
// fields match everything.
type Filter struct {
	// RoomIDs limits delivery to the listed rooms.
	RoomIDs []string

	// EventTypes limits delivery to the listed event types.
	EventTypes []models.EventType

	// Sender limits delivery to one sender.
	Sender string
}

// Matches reports whether the event passes the filter.
func (f *Filter) Matches(event *models.Event) bool {
	if event == nil {
		return false
	}
	if len(f.RoomIDs) > 0 && !containsString(f.RoomIDs, event.RoomID) {
		return false
	}
	if len(f.EventTypes) > 0 && !containsType(f.EventTypes, event.Type) {
		return false
	}
	if f.Sender != "" && event.Sender != f.Sender {
		return false
	}
	return true
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

func containsType(haystack []models.EventType, needle models.EventType) bool {
	for _, t := range haystack {
		if t == needle {
			return true
		}
	}
	return false
}

// Publisher fans timeline appends out to subscribers.
type Publisher interface {
	// Publish delivers an event to every subscription whose filter matches.
	Publish(event *models.Event)

	// Subscribe registers a handler under the given ID.
	Subscribe(id string, filter Filter, handler EventHandler) error

	// Unsubscribe removes a subscription by ID.
	Unsubscribe(id string) error
}

type subscription struct {
	filter  Filter
	handler EventHandler
}

// InMemoryPublisher is a Publisher for a single process. Handlers run on the
// publishing goroutine, outside the registry lock, so a handler may call back
// into the publisher.
type InMemoryPublisher struct {
	mu     sync.RWMutex
	subs   map[string]*subscription
	closed bool
}

func NewInMemoryPublisher() *InMemoryPublisher {
	return &InMemoryPublisher{subs: make(map[string]*subscription)}
}

// Publish delivers the event to every matching subscription.
func (p *InMemoryPublisher) Publish(event *models.Event) {
	if event == nil {
		return
	}

	p.mu.RLock()
	var matched []EventHandler
	for _, sub := range p.subs {
		if sub.filter.Matches(event) {
			matched = append(matched, sub.handler)
		}
	}
	p.mu.RUnlock()

	for _, handler := range matched {
		handler(event)
	}
}

// Subscribe registers a handler under the given ID. IDs must be unique among
// live subscriptions.
func (p *InMemoryPublisher) Subscribe(id string, filter Filter, handler EventHandler) error {
	if id == "" {
		return ErrInvalidSubscriptionID
	}
	if handler == nil {
		return ErrNilHandler
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPublisherClosed
	}
	if _, exists := p.subs[id]; exists {
		return ErrSubscriptionExists
	}

	p.subs[id] = &subscription{filter: filter, handler: handler}
	return nil
}

// Unsubscribe removes a subscription by ID.
func (p *InMemoryPublisher) Unsubscribe(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.subs[id]; !exists {
		return ErrSubscriptionNotFound
	}
	delete(p.subs, id)
	return nil
}

// SubscriberCount returns the number of live subscriptions.
func (p *InMemoryPublisher) SubscriberCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.subs)
}

// Close drops all subscriptions and rejects new ones.
func (p *InMemoryPublisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.subs = make(map[string]*subscription)
}
