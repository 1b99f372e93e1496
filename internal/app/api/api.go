/*
Package api defines the HTTP request and response bodies shared by the chatroom server
and its clients, together with the paths they are served under.
*/
package api

import (
	"time"

	"github.com/google/uuid"

	"chatroom/internal/app/user"
)

const (
	PathJoin           = "/api/auth/join"
	PathLeave          = "/api/auth/leave"
	PathRenew          = "/api/auth/renew"
	PathActiveUsers    = "/api/users/active"
	PathUpdateStatus   = "/api/users/status"
	PathUpdateDetails  = "/api/users/details"
	PathSendChat       = "/api/chat/send"
	PathIndicateTyping = "/api/chat/typing"
	PathPreviousEvents = "/api/events/previous"
	PathEventStream    = "/ws/events"
)

// JoinInput is the body of a join request.
type JoinInput struct {
	User  user.Details `json:"user"`
	Flags user.Flag    `json:"flags"`
}

// TokenOutput carries a session token. User is set on join only.
type TokenOutput struct {
	Token string     `json:"token"`
	User  *user.User `json:"user,omitempty"`
}

// UsersOutput lists active users.
type UsersOutput struct {
	Users []user.User `json:"users"`
}

// StatusInput is the body of a status change.
type StatusInput struct {
	Status user.Status `json:"status"`
}

// DetailsInput is the body of a details change.
type DetailsInput struct {
	Details user.Details `json:"details"`
}

// SendChatInput is the body of a chat message. A zero ReceiverID addresses everyone.
type SendChatInput struct {
	ReceiverID uuid.UUID `json:"receiverId,omitzero"`
	Time       time.Time `json:"time"`
	Text       string    `json:"text"`
}

// SendChatOutput returns the id assigned to the chat.
type SendChatOutput struct {
	ChatID string `json:"chatId"`
}

// TypingInput is the body of a typing indication.
type TypingInput struct {
	ReceiverID uuid.UUID `json:"receiverId,omitzero"`
	Typing     bool      `json:"typing"`
}
