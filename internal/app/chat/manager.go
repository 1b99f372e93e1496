/*
Package chat contains the server side of the chatroom.

This file defines the Manager struct, the single entry point used by the HTTP handlers.
It ties the users store, the broker, the typing indicator and the history together and
publishes an event for every state change. It also tracks each user's open streams and
removes users whose last stream has been closed for longer than the disconnect grace period.
*/
package chat

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"chatroom/internal/app/event"
	"chatroom/internal/app/user"
	"chatroom/internal/configs"
	"chatroom/internal/pkg/auth/jwt"
	"chatroom/internal/pkg/errs"
	"chatroom/internal/pkg/logx"
	"chatroom/internal/pkg/metrics"
	"chatroom/internal/pkg/randx"
)

const (
	// MaxContentBytes is the maximum size (in bytes) of a chat message text.
	MaxContentBytes = 4096

	// historyWriteTimeout bounds a single history append.
	historyWriteTimeout = 3 * time.Second
)

// presence tracks the open streams of one user.
type presence struct {
	streams int
	gen     int
	timer   *time.Timer
}

// Manager coordinates users, events and streams of the chatroom.
type Manager struct {
	// Config holds the application's read-only configuration settings.
	config *configs.AppConfig

	users   *user.Store
	broker  *Broker
	history HistoryStore
	typing  *TypingIndicator

	// publishMu makes stamping, storing and enqueuing one step, so envelopes reach
	// the broker in timestamp order.
	publishMu sync.Mutex

	// mu protects presence.
	mu       sync.Mutex
	presence map[user.ID]*presence

	now func() time.Time

	// structured logger with Manager context.
	logger zerolog.Logger
}

// NewManager constructs a Manager and starts its broker. A nil history keeps
// HistorySize events in memory.
func NewManager(cfg *configs.AppConfig, history HistoryStore) *Manager {
	if history == nil {
		history = NewMemoryHistory(cfg.HistorySize)
	}

	m := &Manager{
		config:   cfg,
		users:    user.NewStore(),
		broker:   NewBroker(),
		history:  history,
		presence: make(map[user.ID]*presence),
		now:      time.Now,
		logger:   logx.Component("manager"),
	}
	m.typing = NewTypingIndicator(cfg.TypingTimeout, m.publishTyping)

	go m.broker.Run()

	return m
}

// publish stamps value, stores it in history when it belongs there, and fans it out.
func (m *Manager) publish(value event.Value) event.Envelope {
	m.publishMu.Lock()
	defer m.publishMu.Unlock()

	env := event.New(m.now(), value)

	if Storable(env) {
		ctx, cancel := context.WithTimeout(context.Background(), historyWriteTimeout)
		if err := m.history.Append(ctx, env); err != nil {
			m.logger.Error().Err(err).Str("kind", string(env.Event.Case)).Msg("Failed to append event to history.")
		}
		cancel()
	}

	metrics.EventsPublished.WithLabelValues(string(env.Event.Case)).Inc()
	m.broker.Publish(env)
	return env
}

func eventUser(u user.User) event.EventUser {
	return event.EventUser{ID: u.ID, Details: u.Details}
}

// Join adds a new user, issues their session token and announces them.
func (m *Manager) Join(details user.Details, flags user.Flag) (user.User, string, *errs.CustomError) {
	u, cerr := m.users.Add(details, flags)
	if cerr != nil {
		return user.User{}, "", cerr
	}

	token, err := jwt.GenerateToken(jwt.NewClaims(u.ID), m.config.JWTSecret, jwt.SessionExpiration)
	if err != nil {
		m.users.Delete(u.ID)
		return user.User{}, "", errs.NewError(errs.ErrUnknown, err)
	}

	m.mu.Lock()
	m.armLocked(u.ID, m.presenceLocked(u.ID))
	m.mu.Unlock()

	metrics.UsersJoined.Inc()
	metrics.ActiveUsers.Set(float64(m.users.Len()))

	m.logger.Info().Str("user", u.IdentifierString()).Msg("User joined.")
	m.publish(event.UserJoin{User: eventUser(u), Flags: u.Flags})

	return u, token, nil
}

// Leave removes uid and announces it. It reports false when uid was not active.
func (m *Manager) Leave(uid user.ID, reason event.LeaveReason) bool {
	u, ok := m.users.Delete(uid)
	if !ok {
		return false
	}

	m.mu.Lock()
	if p, ok := m.presence[uid]; ok {
		if p.timer != nil {
			p.timer.Stop()
		}
		delete(m.presence, uid)
	}
	m.mu.Unlock()

	m.typing.Forget(uid)
	m.broker.Kick(uid)

	metrics.UsersLeft.WithLabelValues(string(reason)).Inc()
	metrics.ActiveUsers.Set(float64(m.users.Len()))

	m.logger.Info().Str("user", u.IdentifierString()).Str("reason", string(reason)).Msg("User left.")
	m.publish(event.UserLeave{User: eventUser(u), Reason: reason})

	return true
}

// Renew issues a fresh token for an active user.
func (m *Manager) Renew(uid user.ID) (string, *errs.CustomError) {
	if _, ok := m.users.Get(uid); !ok {
		return "", errs.NewError(errs.ErrUserNotFound)
	}

	token, err := jwt.GenerateToken(jwt.NewClaims(uid), m.config.JWTSecret, jwt.SessionExpiration)
	if err != nil {
		return "", errs.NewError(errs.ErrUnknown, err)
	}
	return token, nil
}

// User returns the active user with the given id.
func (m *Manager) User(uid user.ID) (user.User, bool) {
	return m.users.Get(uid)
}

// ActiveUsers returns all active users sorted by name.
func (m *Manager) ActiveUsers() []user.User {
	return m.users.List()
}

// UpdateStatus changes the presence status of uid. Unchanged statuses publish nothing.
func (m *Manager) UpdateStatus(uid user.ID, status user.Status) *errs.CustomError {
	before, u, cerr := m.users.UpdateStatus(uid, status)
	if cerr != nil {
		return cerr
	}

	if before != status {
		m.publish(event.UserStatus{User: eventUser(u), Status: status, Before: before})
	}
	return nil
}

// UpdateDetails changes the display details of uid.
func (m *Manager) UpdateDetails(uid user.ID, details user.Details) *errs.CustomError {
	before, u, cerr := m.users.UpdateDetails(uid, details)
	if cerr != nil {
		return cerr
	}

	if before != u.Details {
		m.publish(event.UserUpdate{User: eventUser(u), Before: before})
	}
	return nil
}

// checkReceiver validates the receiver of a directed action. uuid.Nil addresses everyone.
func (m *Manager) checkReceiver(sender, receiver user.ID) *errs.CustomError {
	if receiver == uuid.Nil {
		return nil
	}
	if receiver == sender {
		return errs.NewError(errs.ErrInvalidParams)
	}
	if _, ok := m.users.Get(receiver); !ok {
		return errs.NewError(errs.ErrReceiverNotFound)
	}
	return nil
}

// IndicateTyping records that uid started or stopped typing to receiver.
func (m *Manager) IndicateTyping(uid, receiver user.ID, typing bool) *errs.CustomError {
	if _, ok := m.users.Get(uid); !ok {
		return errs.NewError(errs.ErrUserNotFound)
	}
	if cerr := m.checkReceiver(uid, receiver); cerr != nil {
		return cerr
	}

	m.typing.Indicate(uid, receiver, typing)
	return nil
}

// publishTyping is the typing indicator's notifier.
func (m *Manager) publishTyping(uid user.ID, receiver uuid.UUID, typing bool) {
	u, ok := m.users.Get(uid)
	if !ok {
		return
	}
	m.publish(event.UserTyping{User: eventUser(u), ReceiverID: receiver, Typing: typing})
}

// SendChat publishes a chat message from uid and returns its id.
func (m *Manager) SendChat(uid, receiver user.ID, text string) (string, *errs.CustomError) {
	if strings.TrimSpace(text) == "" {
		return "", errs.NewError(errs.ErrMessageEmpty)
	}
	if len(text) > MaxContentBytes {
		return "", errs.NewError(errs.ErrMessageContentTooLong)
	}

	u, ok := m.users.Get(uid)
	if !ok {
		return "", errs.NewError(errs.ErrUserNotFound)
	}
	if cerr := m.checkReceiver(uid, receiver); cerr != nil {
		return "", cerr
	}

	m.typing.Sent(uid, receiver)

	chat := event.ChatSent{
		ChatID:     randx.ChatID(),
		User:       eventUser(u),
		ReceiverID: receiver,
		Text:       text,
	}
	m.publish(chat)

	scope := "global"
	if receiver != uuid.Nil {
		scope = "direct"
	}
	metrics.ChatsSent.WithLabelValues(scope).Inc()

	return chat.ChatID, nil
}

// PreviousEvents returns at most limit stored events, newest first.
func (m *Manager) PreviousEvents(ctx context.Context, limit int) ([]event.Envelope, *errs.CustomError) {
	if limit < 1 || limit > m.config.HistorySize {
		return nil, errs.NewError(errs.ErrHistoryLimitInvalid, m.config.HistorySize)
	}

	list, err := m.history.List(ctx, time.Time{}, limit)
	if err != nil {
		m.logger.Error().Err(err).Msg("Failed to list history.")
		return nil, errs.NewError(errs.ErrHistoryUnavailable)
	}
	return list, nil
}

// Attach streams events to uid over wsConn. It blocks until the stream ends.
func (m *Manager) Attach(wsConn *websocket.Conn, uid user.ID) {
	s := NewSubscriber(wsConn, uid)
	if !m.broker.Register(s) {
		s.logger.Warn().Msg("Broker stopped, refusing stream.")
		_ = wsConn.Close()
		return
	}

	m.streamOpened(uid)
	defer m.streamClosed(uid)

	go s.WritePump()
	s.ReadPump(m.broker)
}

func (m *Manager) presenceLocked(uid user.ID) *presence {
	p, ok := m.presence[uid]
	if !ok {
		p = &presence{}
		m.presence[uid] = p
	}
	return p
}

func (m *Manager) streamOpened(uid user.ID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := m.presenceLocked(uid)
	p.streams++
	p.gen++
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

func (m *Manager) streamClosed(uid user.ID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.presence[uid]
	if !ok {
		// the user already left
		return
	}

	p.streams--
	if p.streams <= 0 {
		p.streams = 0
		m.armLocked(uid, p)
	}
}

// armLocked schedules the removal of uid after the disconnect grace period.
func (m *Manager) armLocked(uid user.ID, p *presence) {
	p.gen++
	gen := p.gen
	if p.timer != nil {
		p.timer.Stop()
	}

	p.timer = time.AfterFunc(m.config.DisconnectGrace, func() {
		m.mu.Lock()
		current, ok := m.presence[uid]
		expired := ok && current.gen == gen && current.streams == 0
		if expired {
			delete(m.presence, uid)
		}
		m.mu.Unlock()

		if expired {
			m.logger.Info().Str("user_id", uid.String()).Msg("No open streams within grace period.")
			m.Leave(uid, event.LeaveDisconnected)
		}
	})
}

// Subscribers returns the number of open event streams.
func (m *Manager) Subscribers() int {
	return m.broker.Count()
}

// Shutdown stops all pending presence timers and the broker, closing every stream.
func (m *Manager) Shutdown() {
	m.logger.Info().Msg("Shutting down Manager...")

	m.mu.Lock()
	for _, p := range m.presence {
		if p.timer != nil {
			p.timer.Stop()
		}
	}
	m.presence = make(map[user.ID]*presence)
	m.mu.Unlock()

	m.broker.Stop()

	m.logger.Info().Msg("Manager shutdown complete.")
}
