/*
Package stream keeps the client connected to the server's live event stream.

Client.Run alternates between consuming an open stream and reconnecting after it ends,
waiting a capped exponential backoff between attempts. Every received envelope is fed to
the reducer. LoadPrevious pages stored events in before the stream opens.
*/
package stream

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	"chatroom/internal/app/event"
	"chatroom/internal/app/rpc"
	"chatroom/internal/pkg/logx"
)

// jitterPercent spreads reconnects of many clients after a server restart.
const jitterPercent = 10

// Opener opens the live event stream.
type Opener interface {
	OpenEventStream(ctx context.Context) (rpc.EventStream, error)
}

// HistoryLoader fetches stored events, newest first.
type HistoryLoader interface {
	PreviousEvents(ctx context.Context, limit int) ([]event.Envelope, error)
}

// Reducer applies envelopes to the client state.
type Reducer interface {
	ApplyStreamEvent(env event.Envelope) bool
	ApplyHistory(batch []event.Envelope)
}

// Options bound the reconnect backoff.
type Options struct {
	ReconnectBase time.Duration
	ReconnectMax  time.Duration

	// OnEvent, when set, runs after each live envelope has been reduced.
	OnEvent func(env event.Envelope, scroll bool)
}

// Client consumes the event stream of one session.
type Client struct {
	opener  Opener
	history HistoryLoader
	reducer Reducer
	opts    Options
	logger  zerolog.Logger
}

// New returns a Client. It does nothing until Run or LoadPrevious is called.
func New(opener Opener, history HistoryLoader, reducer Reducer, opts Options) *Client {
	if opts.ReconnectBase <= 0 {
		opts.ReconnectBase = 500 * time.Millisecond
	}
	if opts.ReconnectMax < opts.ReconnectBase {
		opts.ReconnectMax = opts.ReconnectBase
	}

	return &Client{
		opener:  opener,
		history: history,
		reducer: reducer,
		opts:    opts,
		logger:  logx.Component("stream"),
	}
}

func (c *Client) newBackoff() retry.Backoff {
	b := retry.NewExponential(c.opts.ReconnectBase)
	b = retry.WithCappedDuration(c.opts.ReconnectMax, b)
	return retry.WithJitterPercent(jitterPercent, b)
}

// Run keeps the stream open until ctx is done or the server ends the session.
// It returns ctx.Err() on cancellation, or the error that made reconnecting pointless.
func (c *Client) Run(ctx context.Context) error {
	backoff := c.newBackoff()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		s, err := c.opener.OpenEventStream(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if rpc.IsPermanent(err) {
				c.logger.Warn().Err(err).Msg("Event stream rejected, giving up.")
				return err
			}
			c.logger.Warn().Err(err).Msg("Failed to open event stream.")
		} else {
			c.logger.Info().Msg("Event stream connected.")
			backoff = c.newBackoff()

			err = c.consume(ctx, s)
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if rpc.IsPermanent(err) {
				c.logger.Info().Err(err).Msg("Event stream ended by server.")
				return err
			}
			c.logger.Warn().Err(err).Msg("Event stream disconnected.")
		}

		if err := wait(ctx, backoff); err != nil {
			return err
		}
	}
}

// consume reduces envelopes from s until it ends. Cancelling ctx closes s.
func (c *Client) consume(ctx context.Context, s rpc.EventStream) error {
	stop := context.AfterFunc(ctx, func() { _ = s.Close() })
	defer func() {
		stop()
		_ = s.Close()
	}()

	for s.Receive() {
		env := s.Msg()
		scroll := c.reducer.ApplyStreamEvent(env)
		if c.opts.OnEvent != nil {
			c.opts.OnEvent(env, scroll)
		}
	}
	return s.Err()
}

// errBackoffExhausted is never returned by the capped exponential backoff.
var errBackoffExhausted = errors.New("stream: reconnect backoff exhausted")

func wait(ctx context.Context, b retry.Backoff) error {
	d, stop := b.Next()
	if stop {
		return errBackoffExhausted
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// LoadPrevious fetches up to limit stored events and applies them as history.
func (c *Client) LoadPrevious(ctx context.Context, limit int) error {
	list, err := c.history.PreviousEvents(ctx, limit)
	if err != nil {
		c.logger.Error().Err(err).Int("limit", limit).Msg("Failed to load previous events.")
		return err
	}

	c.reducer.ApplyHistory(list)
	c.logger.Debug().Int("count", len(list)).Msg("Previous events loaded.")
	return nil
}
