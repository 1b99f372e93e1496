package bot

import (
	"context"
	"math/rand/v2"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-faker/faker/v4"
	"github.com/rs/zerolog"

	"chatroom/internal/app/user"
	"chatroom/internal/pkg/logx"
)

// Composer types and sends chats; *actions.Composer satisfies it.
type Composer interface {
	Input(ctx context.Context, text string) error
	Submit(ctx context.Context, text string) error
}

const (
	// perWordTyping is multiplied by the word count and the chatter's pace to fake typing.
	perWordTyping = 20 * time.Millisecond

	minPace = 10
)

// Chatter fills the room with random sentences, indicating typing before each one.
type Chatter struct {
	composer Composer

	// pace bounds the random multipliers of every wait.
	minPace, maxPace int

	sentence func() string
	intN     func(n int) int
	after    func(d time.Duration) <-chan time.Time
	logger   zerolog.Logger
}

// NewChatter returns a Chatter with a random pace between 10 and 30..60.
func NewChatter(composer Composer) *Chatter {
	return &Chatter{
		composer: composer,
		minPace:  minPace,
		maxPace:  30 + rand.IntN(30),
		sentence: func() string { return faker.Sentence() },
		intN:     rand.IntN,
		after:    time.After,
		logger:   logx.Component("chatterbot"),
	}
}

// RandomName returns a random display name of one to three words that fits
// user.MaxNameLength.
func RandomName() string {
	words := []string{faker.FirstName()}
	n := rand.IntN(9)
	if n < 6 {
		words = append(words, faker.FirstName())
	}
	if n < 3 {
		words = append(words, faker.LastName())
	}

	name := strings.Join(words, " ")
	for len(words) > 1 && utf8.RuneCountInString(name) > user.MaxNameLength {
		words = words[:len(words)-1]
		name = strings.Join(words, " ")
	}
	return name
}

func (c *Chatter) pace() int {
	return c.minPace + c.intN(c.maxPace-c.minPace)
}

// TypingDelay is how long typing text takes at the chatter's pace.
func (c *Chatter) TypingDelay(text string) time.Duration {
	return perWordTyping * time.Duration(len(strings.Fields(text))) * time.Duration(c.pace())
}

func (c *Chatter) wait(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.after(d):
		return nil
	}
}

// Run chats until ctx is done or a call fails: indicate typing, wait as long as typing
// the sentence takes, send it, pause.
func (c *Chatter) Run(ctx context.Context) error {
	if err := c.wait(ctx, time.Second*time.Duration(c.intN(c.minPace))); err != nil {
		return err
	}

	for {
		text := c.sentence()
		if err := c.composer.Input(ctx, text); err != nil {
			return err
		}

		delay := c.TypingDelay(text)
		c.logger.Debug().Dur("wait", delay).Str("next", text).Msg("Typing.")
		if err := c.wait(ctx, delay); err != nil {
			return err
		}

		if err := c.composer.Submit(ctx, text); err != nil {
			return err
		}

		pause := time.Second * time.Duration(c.pace())
		c.logger.Debug().Dur("wait", pause).Msg("Chat sent.")
		if err := c.wait(ctx, pause); err != nil {
			return err
		}
	}
}
