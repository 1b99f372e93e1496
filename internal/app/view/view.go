/*
Package view holds the client's rendered conversations and the reducer that fills them.

A ConversationView is the ordered log of one conversation: the global room or a direct
conversation with one peer. The Router routes every live or historical event envelope to
the views it belongs in and keeps the user registry in step.
*/
package view

import (
	"errors"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"chatroom/internal/app/event"
	"chatroom/internal/app/user"
)

// Key identifies a conversation: the peer's user id, or GlobalKey for the room.
type Key = uuid.UUID

// GlobalKey is the key of the conversation everyone takes part in.
var GlobalKey = Key(uuid.Nil)

// Kind is the kind of a rendered event.
type Kind string

const (
	KindUserJoin     Kind = "userJoin"
	KindUserLeave    Kind = "userLeave"
	KindUserUpdate   Kind = "userUpdate"
	KindUserStatus   Kind = "userStatus"
	KindReceivedChat Kind = "receivedChat"
	KindSentChat     Kind = "sentChat"
)

// Event is one rendered entry of a conversation log.
type Event struct {
	Kind Kind

	// Time is the server time converted to the local zone.
	Time time.Time

	// UserID and User identify the acting user as they were at event time.
	UserID uuid.UUID
	User   user.Details

	// Set for chats.
	ChatID     string
	Text       string
	ReceiverID uuid.UUID

	// ShowAvatar is set on received chats that start a run of messages by one sender.
	ShowAvatar bool

	// Before holds the previous details of a userUpdate.
	Before user.Details

	// Reason is set on userLeave.
	Reason event.LeaveReason
}

// IsChat reports whether e is a sent or received chat.
func (e Event) IsChat() bool {
	return e.Kind == KindReceivedChat || e.Kind == KindSentChat
}

// ErrTypingDetails is returned when a user is marked typing without their details.
var ErrTypingDetails = errors.New("view: typing user requires details")

// ConversationView is the event log and typing set of one conversation.
// It is safe for concurrent use.
type ConversationView struct {
	key Key

	mu     sync.RWMutex
	events []Event
	typing map[uuid.UUID]user.Details
}

// NewConversationView returns an empty view for key.
func NewConversationView(key Key) *ConversationView {
	return &ConversationView{
		key:    key,
		typing: make(map[uuid.UUID]user.Details),
	}
}

// Key returns the conversation key of the view.
func (v *ConversationView) Key() Key { return v.key }

// AppendEvent adds e at the tail of the log.
func (v *ConversationView) AppendEvent(e Event) {
	v.mu.Lock()
	v.events = append(v.events, e)
	v.mu.Unlock()
}

// PrependEvent adds e at the head of the log.
func (v *ConversationView) PrependEvent(e Event) {
	v.mu.Lock()
	v.events = slices.Insert(v.events, 0, e)
	v.mu.Unlock()
}

// SetTyping marks uid as typing, or clears the mark when active is false.
// Marking requires details; clearing ignores them.
func (v *ConversationView) SetTyping(active bool, uid uuid.UUID, details *user.Details) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !active {
		delete(v.typing, uid)
		return nil
	}
	if details == nil {
		return ErrTypingDetails
	}
	v.typing[uid] = *details
	return nil
}

// Events returns a copy of the log, head first.
func (v *ConversationView) Events() []Event {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return slices.Clone(v.events)
}

// Len returns the number of events in the log.
func (v *ConversationView) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.events)
}

// TypingUsers returns a copy of the users currently typing.
func (v *ConversationView) TypingUsers() map[uuid.UUID]user.Details {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return maps.Clone(v.typing)
}

// Last returns the event at the tail of the log.
func (v *ConversationView) Last() (Event, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if len(v.events) == 0 {
		return Event{}, false
	}
	return v.events[len(v.events)-1], true
}

// First returns the event at the head of the log.
func (v *ConversationView) First() (Event, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if len(v.events) == 0 {
		return Event{}, false
	}
	return v.events[0], true
}
