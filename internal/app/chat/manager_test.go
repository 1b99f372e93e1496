package chat

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatroom/internal/app/event"
	"chatroom/internal/app/user"
	"chatroom/internal/configs"
	"chatroom/internal/pkg/auth/jwt"
	"chatroom/internal/pkg/errs"
)

func testConfig() *configs.AppConfig {
	return &configs.AppConfig{
		Environment:     "development",
		JWTSecret:       "test-secret",
		HistorySize:     8,
		TypingTimeout:   time.Minute,
		DisconnectGrace: time.Minute,
	}
}

func newTestManager(t *testing.T, cfg *configs.AppConfig) *Manager {
	t.Helper()
	m := NewManager(cfg, nil)
	t.Cleanup(m.Shutdown)
	return m
}

// subscribe registers a connection-less subscriber; its queue is read directly.
func subscribe(t *testing.T, m *Manager, uid user.ID) *Subscriber {
	t.Helper()
	// let the broker fan out everything published so far, so the new
	// subscriber only sees events published after this call
	require.Eventually(t, func() bool { return len(m.broker.publish) == 0 }, time.Second, time.Millisecond)

	s := NewSubscriber(nil, uid)
	require.True(t, m.broker.Register(s))
	return s
}

func receive(t *testing.T, s *Subscriber) event.Envelope {
	t.Helper()
	select {
	case data, ok := <-s.send:
		require.True(t, ok, "subscriber queue closed")
		var env event.Envelope
		require.NoError(t, json.Unmarshal(data, &env))
		return env
	case <-time.After(time.Second):
		t.Fatal("no event received")
		return event.Envelope{}
	}
}

func assertNothing(t *testing.T, s *Subscriber) {
	t.Helper()
	select {
	case data := <-s.send:
		t.Fatalf("unexpected event %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

func join(t *testing.T, m *Manager, name string) (user.User, string) {
	t.Helper()
	u, token, cerr := m.Join(user.Details{Name: name}, user.FlagNone)
	require.Nil(t, cerr)
	return u, token
}

func TestSubscriber_Wants(t *testing.T) {
	me, peer, other := uuid.New(), uuid.New(), uuid.New()
	s := NewSubscriber(nil, me)
	now := time.Now()

	assert.True(t, s.Wants(event.New(now, event.ChatSent{User: event.EventUser{ID: peer}})))
	assert.True(t, s.Wants(event.New(now, event.ChatSent{User: event.EventUser{ID: peer}, ReceiverID: me})))
	assert.True(t, s.Wants(event.New(now, event.ChatSent{User: event.EventUser{ID: me}, ReceiverID: peer})))
	assert.False(t, s.Wants(event.New(now, event.ChatSent{User: event.EventUser{ID: peer}, ReceiverID: other})))
	assert.False(t, s.Wants(event.New(now, event.UserTyping{User: event.EventUser{ID: me}, Typing: true})))
	assert.True(t, s.Wants(event.New(now, event.UserTyping{User: event.EventUser{ID: peer}, Typing: true})))
	assert.False(t, s.Wants(event.Envelope{Time: now, Event: event.Event{Case: "unknown"}}))
}

func TestManager_JoinPublishesAndIssuesToken(t *testing.T) {
	m := newTestManager(t, testConfig())
	watcher, _ := join(t, m, "watcher")
	s := subscribe(t, m, watcher.ID)

	alice, token := join(t, m, "alice")

	env := receive(t, s)
	require.Equal(t, event.KindUserJoin, env.Event.Case)
	assert.Equal(t, alice.ID, env.Event.Value.(event.UserJoin).User.ID)

	claims, err := jwt.ParseToken(token, "test-secret")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, claims.UserID)

	_, _, cerr := m.Join(user.Details{Name: "Alice"}, user.FlagNone)
	require.NotNil(t, cerr)
	assert.Equal(t, errs.ErrUserNameTaken, cerr.Code)
}

func TestManager_DirectChatReachesOnlyParticipants(t *testing.T) {
	m := newTestManager(t, testConfig())
	alice, _ := join(t, m, "alice")
	bob, _ := join(t, m, "bob")
	carol, _ := join(t, m, "carol")

	sa, sb, sc := subscribe(t, m, alice.ID), subscribe(t, m, bob.ID), subscribe(t, m, carol.ID)

	chatID, cerr := m.SendChat(alice.ID, bob.ID, "psst")
	require.Nil(t, cerr)
	assert.NotEmpty(t, chatID)

	for _, s := range []*Subscriber{sa, sb} {
		env := receive(t, s)
		chat := env.Event.Value.(event.ChatSent)
		assert.Equal(t, chatID, chat.ChatID)
		assert.Equal(t, bob.ID, chat.ReceiverID)
	}
	assertNothing(t, sc)

	list, cerr := m.PreviousEvents(context.Background(), 8)
	require.Nil(t, cerr)
	for _, env := range list {
		assert.NotEqual(t, event.KindChatSent, env.Event.Case, "direct chats must not be stored")
	}
}

func TestManager_SendChatValidation(t *testing.T) {
	m := newTestManager(t, testConfig())
	alice, _ := join(t, m, "alice")

	_, cerr := m.SendChat(alice.ID, uuid.Nil, "   ")
	require.NotNil(t, cerr)
	assert.Equal(t, errs.ErrMessageEmpty, cerr.Code)

	_, cerr = m.SendChat(alice.ID, uuid.New(), "hi")
	require.NotNil(t, cerr)
	assert.Equal(t, errs.ErrReceiverNotFound, cerr.Code)

	big := make([]byte, MaxContentBytes+1)
	for i := range big {
		big[i] = 'x'
	}
	_, cerr = m.SendChat(alice.ID, uuid.Nil, string(big))
	require.NotNil(t, cerr)
	assert.Equal(t, errs.ErrMessageContentTooLong, cerr.Code)
}

func TestManager_TypingIsNotEchoedToSelf(t *testing.T) {
	m := newTestManager(t, testConfig())
	alice, _ := join(t, m, "alice")
	bob, _ := join(t, m, "bob")
	sa, sb := subscribe(t, m, alice.ID), subscribe(t, m, bob.ID)

	require.Nil(t, m.IndicateTyping(alice.ID, uuid.Nil, true))

	env := receive(t, sb)
	typing := env.Event.Value.(event.UserTyping)
	assert.True(t, typing.Typing)
	assert.Equal(t, alice.ID, typing.User.ID)
	assertNothing(t, sa)
}

func TestManager_LeaveKicksStreams(t *testing.T) {
	m := newTestManager(t, testConfig())
	alice, _ := join(t, m, "alice")
	bob, _ := join(t, m, "bob")
	sa, sb := subscribe(t, m, alice.ID), subscribe(t, m, bob.ID)

	require.True(t, m.Leave(alice.ID, event.LeaveUserAction))
	assert.False(t, m.Leave(alice.ID, event.LeaveUserAction))

	env := receive(t, sb)
	require.Equal(t, event.KindUserLeave, env.Event.Case)
	assert.Equal(t, event.LeaveUserAction, env.Event.Value.(event.UserLeave).Reason)

	assert.Eventually(t, func() bool {
		select {
		case _, ok := <-sa.send:
			return !ok
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, CloseCodeUserLeft, sa.closeCode)
}

func TestManager_UpdateStatusPublishesOnlyChanges(t *testing.T) {
	m := newTestManager(t, testConfig())
	alice, _ := join(t, m, "alice")
	bob, _ := join(t, m, "bob")
	sb := subscribe(t, m, bob.ID)

	require.Nil(t, m.UpdateStatus(alice.ID, user.StatusBusy))
	env := receive(t, sb)
	status := env.Event.Value.(event.UserStatus)
	assert.Equal(t, user.StatusBusy, status.Status)
	assert.Equal(t, user.StatusDefault, status.Before)

	require.Nil(t, m.UpdateStatus(alice.ID, user.StatusBusy))
	assertNothing(t, sb)
}

func TestManager_UpdateDetailsPublishesUpdate(t *testing.T) {
	m := newTestManager(t, testConfig())
	alice, _ := join(t, m, "alice")
	bob, _ := join(t, m, "bob")
	sb := subscribe(t, m, bob.ID)

	require.Nil(t, m.UpdateDetails(alice.ID, user.Details{Name: "alicia", Color1: "#101010"}))

	env := receive(t, sb)
	update := env.Event.Value.(event.UserUpdate)
	assert.Equal(t, "alice", update.Before.Name)
	assert.Equal(t, "alicia", update.User.Details.Name)
}

func TestManager_PreviousEvents(t *testing.T) {
	m := newTestManager(t, testConfig())
	alice, _ := join(t, m, "alice")
	_, cerr := m.SendChat(alice.ID, uuid.Nil, "hello")
	require.Nil(t, cerr)

	list, cerr := m.PreviousEvents(context.Background(), 8)
	require.Nil(t, cerr)
	require.Len(t, list, 2)
	assert.Equal(t, event.KindChatSent, list[0].Event.Case)
	assert.Equal(t, event.KindUserJoin, list[1].Event.Case)

	_, cerr = m.PreviousEvents(context.Background(), 9)
	require.NotNil(t, cerr)
	assert.Equal(t, errs.ErrHistoryLimitInvalid, cerr.Code)
}

func TestManager_DisconnectGraceRemovesIdleUsers(t *testing.T) {
	cfg := testConfig()
	cfg.DisconnectGrace = 20 * time.Millisecond
	m := newTestManager(t, cfg)

	alice, _ := join(t, m, "alice")

	assert.Eventually(t, func() bool {
		_, ok := m.User(alice.ID)
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestManager_OpenStreamKeepsUser(t *testing.T) {
	cfg := testConfig()
	cfg.DisconnectGrace = 20 * time.Millisecond
	m := newTestManager(t, cfg)

	alice, _ := join(t, m, "alice")
	m.streamOpened(alice.ID)

	time.Sleep(60 * time.Millisecond)
	_, ok := m.User(alice.ID)
	assert.True(t, ok)

	m.streamClosed(alice.ID)
	assert.Eventually(t, func() bool {
		_, ok := m.User(alice.ID)
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestManager_Renew(t *testing.T) {
	m := newTestManager(t, testConfig())
	alice, _ := join(t, m, "alice")

	token, cerr := m.Renew(alice.ID)
	require.Nil(t, cerr)
	claims, err := jwt.ParseToken(token, "test-secret")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, claims.UserID)

	_, cerr = m.Renew(uuid.New())
	require.NotNil(t, cerr)
	assert.Equal(t, errs.ErrUserNotFound, cerr.Code)
}

// slowHistory delays the append of one chat text, as a slow database would.
type slowHistory struct {
	*MemoryHistory
	slowText string
	delay    time.Duration
}

func (h *slowHistory) Append(ctx context.Context, env event.Envelope) error {
	if chat, ok := env.Event.Value.(event.ChatSent); ok && chat.Text == h.slowText {
		time.Sleep(h.delay)
	}
	return h.MemoryHistory.Append(ctx, env)
}

func TestManager_FanOutFollowsTimestamps(t *testing.T) {
	cfg := testConfig()
	m := NewManager(cfg, &slowHistory{MemoryHistory: NewMemoryHistory(cfg.HistorySize), slowText: "first", delay: 100 * time.Millisecond})
	t.Cleanup(m.Shutdown)

	alice, _ := join(t, m, "alice")
	bob, _ := join(t, m, "bob")
	sb := subscribe(t, m, bob.ID)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, cerr := m.SendChat(alice.ID, uuid.Nil, "first")
		assert.Nil(t, cerr)
	}()

	time.Sleep(10 * time.Millisecond)
	_, cerr := m.SendChat(alice.ID, uuid.Nil, "second")
	require.Nil(t, cerr)
	<-done

	first, second := receive(t, sb), receive(t, sb)
	assert.Equal(t, "first", first.Event.Value.(event.ChatSent).Text)
	assert.Equal(t, "second", second.Event.Value.(event.ChatSent).Text)
	assert.False(t, second.Time.Before(first.Time))
}

func TestManager_ChatElsewhereStopsTyping(t *testing.T) {
	m := newTestManager(t, testConfig())
	alice, _ := join(t, m, "alice")
	bob, _ := join(t, m, "bob")
	carol, _ := join(t, m, "carol")
	sc := subscribe(t, m, carol.ID)

	require.Nil(t, m.IndicateTyping(alice.ID, uuid.Nil, true))
	assert.True(t, receive(t, sc).Event.Value.(event.UserTyping).Typing)

	_, cerr := m.SendChat(alice.ID, bob.ID, "psst")
	require.Nil(t, cerr)

	typing := receive(t, sc).Event.Value.(event.UserTyping)
	assert.False(t, typing.Typing)
	assert.Equal(t, uuid.Nil, typing.ReceiverID)
	assertNothing(t, sc)
}
