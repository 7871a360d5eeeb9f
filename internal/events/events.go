// Package events carries authentication state changes from their sources
// (client notifications, the Supabase realtime feed) to the components that
// react to them.
package events

import "sync"

// Kind identifies an auth event.
type Kind string

const (
	SignedIn       Kind = "signed_in"
	TokenRefreshed Kind = "token_refreshed"
	SignedOut      Kind = "signed_out"
)

// AuthEvent is one authentication state change. UserID and Email are empty
// for SignedOut.
type AuthEvent struct {
	Kind   Kind
	UserID string
	Email  string
}

// Hub fans auth events out to subscribers. Subscriptions are scoped: the
// cancel func returned by Subscribe must be called on teardown so handlers do
// not accumulate across repeated mounts.
type Hub struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan AuthEvent
	closed bool
}

// NewHub creates an event hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[int]chan AuthEvent)}
}

// Subscribe registers a subscriber and returns its channel plus a cancel
// func releasing the subscription.
func (h *Hub) Subscribe() (<-chan AuthEvent, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	ch := make(chan AuthEvent, 16)
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	h.subs[id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if sub, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Publish delivers an event to every subscriber. Slow subscribers drop
// events rather than block the publisher. The sends happen under the hub
// lock: they can never block, and cancel/Close close channels under the
// same lock, so a send can never hit a closed channel.
func (h *Hub) Publish(event AuthEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ch := range h.subs {
		select {
		case ch <- event:
		default:
		}
	}
}

// SubscriberCount reports the number of live subscriptions.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close shuts the hub down, closing all subscriber channels.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}
