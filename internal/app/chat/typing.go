package chat

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"chatroom/internal/app/user"
)

// TypingNotifier is called whenever the typing state of a user changes.
type TypingNotifier func(uid user.ID, receiver uuid.UUID, typing bool)

// pendingTyping is the running timeout of a user typing to receiver.
type pendingTyping struct {
	receiver uuid.UUID
	timer    *time.Timer
}

// TypingIndicator turns "started typing" indications into a pair of true/false
// notifications: false follows automatically once timeout passes without a refresh.
// A user types to one receiver at a time; moving to another receiver stops the
// previous one first.
type TypingIndicator struct {
	mu      sync.Mutex
	timeout time.Duration
	pending map[user.ID]*pendingTyping
	notify  TypingNotifier
}

// NewTypingIndicator returns an indicator calling notify on every change.
func NewTypingIndicator(timeout time.Duration, notify TypingNotifier) *TypingIndicator {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &TypingIndicator{
		timeout: timeout,
		pending: make(map[user.ID]*pendingTyping, 8),
		notify:  notify,
	}
}

// Indicate records that uid started (typing=true) or stopped typing to receiver.
func (t *TypingIndicator) Indicate(uid user.ID, receiver uuid.UUID, typing bool) {
	t.mu.Lock()
	prev, hadPrev := t.stopLocked(uid)

	if typing {
		p := &pendingTyping{receiver: receiver}
		p.timer = time.AfterFunc(t.timeout, func() {
			t.mu.Lock()
			if t.pending[uid] != p {
				t.mu.Unlock()
				return
			}
			delete(t.pending, uid)
			t.mu.Unlock()

			t.notify(uid, receiver, false)
		})
		t.pending[uid] = p
	}
	t.mu.Unlock()

	if hadPrev && prev != receiver {
		t.notify(uid, prev, false)
	}
	t.notify(uid, receiver, typing)
}

// Sent cancels the pending timeout of uid after a chat to receiver. Receivers of the
// chat clear the typing flag themselves; a different pending receiver is told false.
func (t *TypingIndicator) Sent(uid user.ID, receiver uuid.UUID) {
	t.mu.Lock()
	prev, hadPrev := t.stopLocked(uid)
	t.mu.Unlock()

	if hadPrev && prev != receiver {
		t.notify(uid, prev, false)
	}
}

// Forget cancels a pending timeout for uid without notifying, e.g. when the user leaves.
func (t *TypingIndicator) Forget(uid user.ID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopLocked(uid)
}

// Typing reports whether uid currently has a pending typing timeout.
func (t *TypingIndicator) Typing(uid user.ID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, ok := t.pending[uid]
	return ok
}

// stopLocked cancels the pending timeout of uid and returns its receiver.
func (t *TypingIndicator) stopLocked(uid user.ID) (uuid.UUID, bool) {
	p, ok := t.pending[uid]
	if !ok {
		return uuid.Nil, false
	}
	p.timer.Stop()
	delete(t.pending, uid)
	return p.receiver, true
}
