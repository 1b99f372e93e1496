package actions

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"chatroom/internal/pkg/logx"
)

// TypingThrottle is the minimum time between two "typing" indications.
const TypingThrottle = 4 * time.Second

// ChatAPI is the part of the server API used while composing.
type ChatAPI interface {
	SendChat(ctx context.Context, receiver uuid.UUID, t time.Time, text string) (string, error)
	IndicateTyping(ctx context.Context, receiver uuid.UUID, typing bool) error
}

// Receiver returns the conversation key messages are addressed to; uuid.Nil addresses everyone.
type Receiver interface {
	Active() uuid.UUID
}

// Composer turns edits of the message input into typing indications and chats.
type Composer struct {
	api      ChatAPI
	receiver Receiver
	now      func() time.Time
	logger   zerolog.Logger

	mu           sync.Mutex
	lastIndicate time.Time
	lastReceiver uuid.UUID
}

// NewComposer returns a Composer sending to the active conversation of receiver.
func NewComposer(api ChatAPI, receiver Receiver) *Composer {
	return &Composer{
		api:      api,
		receiver: receiver,
		now:      time.Now,
		logger:   logx.Component("composer"),
	}
}

// Input reports that the input now holds text. Clearing the input always stops the
// typing indication; typing is indicated at most once per TypingThrottle and
// receiver, so switching conversations indicates again right away.
func (c *Composer) Input(ctx context.Context, text string) error {
	if text == "" {
		return c.indicate(ctx, false)
	}

	receiver := c.receiver.Active()

	c.mu.Lock()
	now := c.now()
	if !c.lastIndicate.IsZero() && receiver == c.lastReceiver && now.Sub(c.lastIndicate) < TypingThrottle {
		c.mu.Unlock()
		return nil
	}
	c.lastIndicate, c.lastReceiver = now, receiver
	c.mu.Unlock()

	return c.indicate(ctx, true)
}

func (c *Composer) indicate(ctx context.Context, typing bool) error {
	if !typing {
		c.mu.Lock()
		c.lastIndicate = time.Time{}
		c.mu.Unlock()
	}

	if err := c.api.IndicateTyping(ctx, c.receiver.Active(), typing); err != nil {
		c.logger.Warn().Err(err).Bool("typing", typing).Msg("Failed to indicate typing.")
		return err
	}
	return nil
}

// Submit stops the typing indication and sends text to the active conversation.
// On error the caller should keep text in the input so it can be sent again.
func (c *Composer) Submit(ctx context.Context, text string) error {
	_ = c.indicate(ctx, false)

	if _, err := c.api.SendChat(ctx, c.receiver.Active(), c.now(), text); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to send chat.")
		return err
	}
	return nil
}
