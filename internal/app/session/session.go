/*
Package session holds the client's authentication state.

A Session stores the token issued on join together with the identity decoded from it.
Every outgoing request and stream is authorized through the same Session, so a renewal
is picked up by all of them at once.
*/
package session

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"chatroom/internal/pkg/auth/jwt"
)

// ErrNotAuthenticated is returned by operations that need a token when none is set.
var ErrNotAuthenticated = errors.New("session: not authenticated")

// Session is the concurrency-safe authentication state of one client.
type Session struct {
	mu     sync.RWMutex
	token  string
	claims *jwt.Claims
}

// New returns an unauthenticated Session.
func New() *Session {
	return &Session{}
}

// Set stores token and the identity it carries. An undecodable token leaves the session unchanged.
func (s *Session) Set(token string) error {
	claims, err := jwt.ParseUnverified(token)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.token = token
	s.claims = claims
	s.mu.Unlock()
	return nil
}

// Clear forgets the token.
func (s *Session) Clear() {
	s.mu.Lock()
	s.token = ""
	s.claims = nil
	s.mu.Unlock()
}

// Token returns the current token, or "" when unauthenticated.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Authenticated reports whether a token is set.
func (s *Session) Authenticated() bool {
	return s.Token() != ""
}

// UserID returns the id of the signed-in user, or uuid.Nil when unauthenticated.
func (s *Session) UserID() uuid.UUID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.claims == nil {
		return uuid.Nil
	}
	return s.claims.UserID
}

// ExpiresAt returns the expiry of the current token. The zero time means unknown.
func (s *Session) ExpiresAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.claims == nil {
		return time.Time{}
	}
	return s.claims.ExpiresAtTime()
}

// NeedsRenewal reports whether the token expires within window of now.
func (s *Session) NeedsRenewal(now time.Time, window time.Duration) bool {
	exp := s.ExpiresAt()
	if exp.IsZero() {
		return false
	}
	return !now.Add(window).Before(exp)
}

// Header returns the Authorization header of the current token.
func (s *Session) Header() http.Header {
	h := http.Header{}
	if token := s.Token(); token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}

// Transport is an http.RoundTripper that authorizes requests with the session token.
type Transport struct {
	Session *Session

	// Base is the underlying transport; http.DefaultTransport when nil.
	Base http.RoundTripper
}

// RoundTrip implements http.RoundTripper. The caller's request is never modified.
func (t *Transport) RoundTrip(r *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	token := t.Session.Token()
	if token == "" || r.Header.Get("Authorization") != "" {
		return base.RoundTrip(r)
	}

	clone := r.Clone(r.Context())
	clone.Header.Set("Authorization", "Bearer "+token)
	return base.RoundTrip(clone)
}
