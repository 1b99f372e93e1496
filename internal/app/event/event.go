/*
Package event defines the wire form of chatroom events.

Every event travels inside an Envelope: a server timestamp plus a tagged union
{case, value}. The same envelopes are delivered over the live event stream and
inside history pages.
*/
package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"chatroom/internal/app/user"
)

// Kind is the tag of an event.
type Kind string

const (
	KindUserJoin   Kind = "userJoin"
	KindUserLeave  Kind = "userLeave"
	KindUserUpdate Kind = "userUpdate"
	KindUserStatus Kind = "userStatus"
	KindUserTyping Kind = "userTyping"
	KindChatSent   Kind = "chatSent"
)

// LeaveReason tells why a user left.
type LeaveReason string

const (
	LeaveUserAction   LeaveReason = "userAction"
	LeaveDisconnected LeaveReason = "disconnected"
)

// EventUser is the acting user of an event with a snapshot of their details.
type EventUser struct {
	ID      user.ID      `json:"id"`
	Details user.Details `json:"details"`
}

// UserJoin is published when a user joins the chatroom.
type UserJoin struct {
	User  EventUser `json:"user"`
	Flags user.Flag `json:"flags"`
}

// UserLeave is published when a user leaves, or is removed after disconnecting.
type UserLeave struct {
	User   EventUser   `json:"user"`
	Reason LeaveReason `json:"reason"`
}

// UserUpdate is published when a user changes their details.
type UserUpdate struct {
	User   EventUser    `json:"user"`
	Before user.Details `json:"before"`
}

// UserStatus is published when a user changes their presence status.
type UserStatus struct {
	User   EventUser   `json:"user"`
	Status user.Status `json:"status"`
	Before user.Status `json:"before"`
}

// UserTyping is published when a user starts or stops typing. It is never stored in history.
type UserTyping struct {
	User       EventUser `json:"user"`
	ReceiverID uuid.UUID `json:"receiverId,omitzero"`
	Typing     bool      `json:"typing"`
}

// ChatSent is published for every chat message.
type ChatSent struct {
	ChatID     string    `json:"chatId"`
	User       EventUser `json:"user"`
	ReceiverID uuid.UUID `json:"receiverId,omitzero"`
	Text       string    `json:"text"`
}

// Value is implemented by all event payloads.
type Value interface {
	Kind() Kind
	Actor() EventUser
}

func (UserJoin) Kind() Kind   { return KindUserJoin }
func (UserLeave) Kind() Kind  { return KindUserLeave }
func (UserUpdate) Kind() Kind { return KindUserUpdate }
func (UserStatus) Kind() Kind { return KindUserStatus }
func (UserTyping) Kind() Kind { return KindUserTyping }
func (ChatSent) Kind() Kind   { return KindChatSent }

func (e UserJoin) Actor() EventUser   { return e.User }
func (e UserLeave) Actor() EventUser  { return e.User }
func (e UserUpdate) Actor() EventUser { return e.User }
func (e UserStatus) Actor() EventUser { return e.User }
func (e UserTyping) Actor() EventUser { return e.User }
func (e ChatSent) Actor() EventUser   { return e.User }

// Receiver returns the receiver id of a directed event, or uuid.Nil for events
// addressed to everyone.
func Receiver(v Value) uuid.UUID {
	switch e := v.(type) {
	case UserTyping:
		return e.ReceiverID
	case ChatSent:
		return e.ReceiverID
	default:
		return uuid.Nil
	}
}

// Event is the tagged union {case, value}. Value is nil when the case is not
// known to this build; such events are carried along and ignored by consumers.
type Event struct {
	Case  Kind
	Value Value
}

// Envelope is a timestamped event.
type Envelope struct {
	Time  time.Time `json:"time"`
	Event Event     `json:"event"`
}

// New wraps value in an envelope stamped with t.
func New(t time.Time, value Value) Envelope {
	return Envelope{Time: t, Event: Event{Case: value.Kind(), Value: value}}
}

type wireEvent struct {
	Case  Kind            `json:"case"`
	Value json.RawMessage `json:"value,omitempty"`
}

// MarshalJSON encodes the event as {"case": ..., "value": {...}}.
func (e Event) MarshalJSON() ([]byte, error) {
	w := wireEvent{Case: e.Case}
	if e.Value != nil {
		if e.Value.Kind() != e.Case {
			return nil, fmt.Errorf("event: case %q does not match value kind %q", e.Case, e.Value.Kind())
		}

		raw, err := json.Marshal(e.Value)
		if err != nil {
			return nil, err
		}
		w.Value = raw
	}

	return json.Marshal(w)
}

// UnmarshalJSON decodes {"case": ..., "value": {...}}. Unknown cases decode
// without error and leave Value nil.
func (e *Event) UnmarshalJSON(data []byte) error {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	e.Case = w.Case
	e.Value = nil

	var v Value
	var err error
	switch w.Case {
	case KindUserJoin:
		v, err = decodeValue[UserJoin](w.Value)
	case KindUserLeave:
		v, err = decodeValue[UserLeave](w.Value)
	case KindUserUpdate:
		v, err = decodeValue[UserUpdate](w.Value)
	case KindUserStatus:
		v, err = decodeValue[UserStatus](w.Value)
	case KindUserTyping:
		v, err = decodeValue[UserTyping](w.Value)
	case KindChatSent:
		v, err = decodeValue[ChatSent](w.Value)
	default:
		return nil
	}

	if err != nil {
		return fmt.Errorf("event: decode %s: %w", w.Case, err)
	}
	e.Value = v
	return nil
}

func decodeValue[T Value](raw json.RawMessage) (Value, error) {
	var v T
	if len(raw) == 0 {
		return nil, fmt.Errorf("missing value")
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// History is the body of a previous-events page.
type History struct {
	History []Envelope `json:"history"`
}
