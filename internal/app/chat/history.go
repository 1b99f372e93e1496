/*
Package chat contains the server side of the chatroom: the users' lifecycle, the event
broker fanning events out to stream subscribers, the typing indicator and the event history.

This file defines the HistoryStore contract and its in-memory ring implementation.
*/
package chat

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"chatroom/internal/app/event"
)

// HistoryStore persists published events so late joiners can page in what they missed.
type HistoryStore interface {
	// Append stores env. Implementations may assume Storable(env) holds.
	Append(ctx context.Context, env event.Envelope) error

	// List returns at most limit events published strictly before until, newest first.
	// A zero until means "now".
	List(ctx context.Context, until time.Time, limit int) ([]event.Envelope, error)
}

// Storable reports whether env belongs in history. Typing indications are ephemeral
// and direct (receiver-targeted) events are private to their participants.
func Storable(env event.Envelope) bool {
	if env.Event.Value == nil || env.Event.Case == event.KindUserTyping {
		return false
	}
	return event.Receiver(env.Event.Value) == uuid.Nil
}

// MemoryHistory is a fixed-size ring of the most recent events.
type MemoryHistory struct {
	mu     sync.RWMutex
	events []event.Envelope
	next   int
	full   bool
}

// NewMemoryHistory returns a ring holding at most size events.
func NewMemoryHistory(size int) *MemoryHistory {
	if size <= 0 {
		size = 32
	}
	return &MemoryHistory{events: make([]event.Envelope, size)}
}

// Append stores env, overwriting the oldest event once the ring is full.
func (h *MemoryHistory) Append(_ context.Context, env event.Envelope) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.events[h.next] = env
	h.next = (h.next + 1) % len(h.events)
	if h.next == 0 {
		h.full = true
	}
	return nil
}

// List walks the ring backwards from the newest event.
func (h *MemoryHistory) List(_ context.Context, until time.Time, limit int) ([]event.Envelope, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	count := h.next
	if h.full {
		count = len(h.events)
	}
	if limit <= 0 || limit > count {
		limit = count
	}

	out := make([]event.Envelope, 0, limit)
	for i := 1; i <= count && len(out) < limit; i++ {
		idx := (h.next - i + len(h.events)) % len(h.events)
		env := h.events[idx]
		if !until.IsZero() && !env.Time.Before(until) {
			continue
		}
		out = append(out, env)
	}
	return out, nil
}
