/*
Package actions implements the user-initiated operations of the chat client: joining
and leaving, keeping the session token fresh, and composing messages.

The actions are thin. Each one validates local state, makes one API call and records
the outcome; failures are logged and returned to the caller without retries.
*/
package actions

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"chatroom/internal/app/session"
	"chatroom/internal/app/user"
	"chatroom/internal/pkg/auth/jwt"
	"chatroom/internal/pkg/logx"
)

// AuthAPI is the part of the server API that manages sessions.
type AuthAPI interface {
	Join(ctx context.Context, details user.Details, flags user.Flag) (string, error)
	Leave(ctx context.Context) error
	Renew(ctx context.Context) (string, error)
}

// Auth joins, renews and leaves on behalf of one session.
type Auth struct {
	api     AuthAPI
	session *session.Session
	flags   user.Flag
	now     func() time.Time
	logger  zerolog.Logger
}

// NewAuth returns an Auth that joins with flags and stores tokens in sess.
func NewAuth(api AuthAPI, sess *session.Session, flags user.Flag) *Auth {
	return &Auth{
		api:     api,
		session: sess,
		flags:   flags,
		now:     time.Now,
		logger:  logx.Component("auth"),
	}
}

// Join joins the chatroom as name and stores the issued token.
func (a *Auth) Join(ctx context.Context, name string) error {
	token, err := a.api.Join(ctx, user.Details{Name: name}, a.flags)
	if err != nil {
		a.logger.Warn().Err(err).Str("name", name).Msg("Join failed.")
		return err
	}

	if err := a.session.Set(token); err != nil {
		a.logger.Error().Err(err).Msg("Server issued an unreadable token.")
		return err
	}

	a.logger.Info().Str("user_id", a.session.UserID().String()).Msg("Joined chatroom.")
	return nil
}

// Leave leaves the chatroom. The session is cleared even when the call fails;
// the server removes users without streams after a grace period anyway.
func (a *Auth) Leave(ctx context.Context) error {
	if !a.session.Authenticated() {
		return session.ErrNotAuthenticated
	}

	err := a.api.Leave(ctx)
	if err != nil {
		a.logger.Warn().Err(err).Msg("Leave failed.")
	}
	a.session.Clear()
	return err
}

// Renew replaces the session token with a fresh one.
func (a *Auth) Renew(ctx context.Context) error {
	if !a.session.Authenticated() {
		return session.ErrNotAuthenticated
	}

	token, err := a.api.Renew(ctx)
	if err != nil {
		a.logger.Warn().Err(err).Msg("Token renewal failed.")
		return err
	}
	return a.session.Set(token)
}

// KeepRenewed checks the token every interval and renews it once it is within
// jwt.RenewWindow of expiring. It returns when ctx is done.
func (a *Auth) KeepRenewed(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if a.session.NeedsRenewal(a.now(), jwt.RenewWindow) {
				_ = a.Renew(ctx)
			}
		}
	}
}
