/*
Package bot implements headless chatroom participants built on the client core.
*/
package bot

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"chatroom/internal/app/event"
	"chatroom/internal/pkg/logx"
)

const (
	GreetingText = "Hi all!"
	GoodbyeText  = "Goodbye all!"
)

// ChatAPI sends chats on behalf of the bot.
type ChatAPI interface {
	SendChat(ctx context.Context, receiver uuid.UUID, t time.Time, text string) (string, error)
}

// Identity reports the bot's own user id.
type Identity interface {
	UserID() uuid.UUID
}

// Welcomer greets every user that joins the global room.
type Welcomer struct {
	api      ChatAPI
	identity Identity
	now      func() time.Time
	logger   zerolog.Logger
}

func NewWelcomer(api ChatAPI, identity Identity) *Welcomer {
	return &Welcomer{
		api:      api,
		identity: identity,
		now:      time.Now,
		logger:   logx.Component("welcomebot"),
	}
}

// Greet announces the bot in the global room.
func (w *Welcomer) Greet(ctx context.Context) error {
	return w.say(ctx, GreetingText)
}

// Goodbye says farewell in the global room.
func (w *Welcomer) Goodbye(ctx context.Context) error {
	return w.say(ctx, GoodbyeText)
}

// HandleEvent welcomes the user of a userJoin envelope. It reports whether a
// welcome was sent; the bot's own join and all other events are ignored.
func (w *Welcomer) HandleEvent(ctx context.Context, env event.Envelope) (bool, error) {
	join, ok := env.Event.Value.(event.UserJoin)
	if !ok || join.User.ID == w.identity.UserID() {
		return false, nil
	}

	w.logger.Debug().
		Str("user_id", join.User.ID.String()).
		Str("user_name", join.User.Details.Name).
		Msg("Sending welcome chat.")

	if err := w.say(ctx, "Welcome @"+join.User.Details.Name); err != nil {
		return false, err
	}
	return true, nil
}

func (w *Welcomer) say(ctx context.Context, text string) error {
	if _, err := w.api.SendChat(ctx, uuid.Nil, w.now(), text); err != nil {
		w.logger.Warn().Err(err).Str("text", text).Msg("Failed to send chat.")
		return err
	}
	return nil
}
