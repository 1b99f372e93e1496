package view

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatroom/internal/app/event"
	"chatroom/internal/app/registry"
	"chatroom/internal/app/user"
)

type staticIdentity uuid.UUID

func (id staticIdentity) UserID() uuid.UUID { return uuid.UUID(id) }

type fixture struct {
	self     event.EventUser
	registry *registry.Registry
	router   *Router
	clock    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	self := event.EventUser{ID: uuid.New(), Details: user.Details{Name: "me"}}
	reg := registry.New(nil)
	return &fixture{
		self:     self,
		registry: reg,
		router:   NewRouter(staticIdentity(self.ID), reg),
		clock:    time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

// env stamps value one second after the previous envelope.
func (f *fixture) env(value event.Value) event.Envelope {
	f.clock = f.clock.Add(time.Second)
	return event.New(f.clock, value)
}

func eventUser(name string) event.EventUser {
	return event.EventUser{ID: uuid.New(), Details: user.Details{Name: name}}
}

func chat(from event.EventUser, to uuid.UUID, text string) event.ChatSent {
	return event.ChatSent{ChatID: uuid.NewString(), User: from, ReceiverID: to, Text: text}
}

func avatars(events []Event) []bool {
	var out []bool
	for _, e := range events {
		if e.Kind == KindReceivedChat {
			out = append(out, e.ShowAvatar)
		}
	}
	return out
}

func TestRouter_AvatarGrouping(t *testing.T) {
	f := newFixture(t)
	a, b := eventUser("a"), eventUser("b")

	for _, from := range []event.EventUser{a, a, b, a} {
		assert.True(t, f.router.ApplyStreamEvent(f.env(chat(from, uuid.Nil, "x"))))
	}

	assert.Equal(t, []bool{true, false, true, true}, avatars(f.router.View(GlobalKey).Events()))
}

func TestRouter_ReceivedChatsFromOneSender(t *testing.T) {
	f := newFixture(t)
	u2 := eventUser("u2")

	f.router.ApplyStreamEvent(f.env(chat(u2, uuid.Nil, "hi")))
	f.router.ApplyStreamEvent(f.env(chat(u2, uuid.Nil, "there")))

	events := f.router.View(GlobalKey).Events()
	require.Len(t, events, 2)
	assert.Equal(t, KindReceivedChat, events[0].Kind)
	assert.Equal(t, "hi", events[0].Text)
	assert.True(t, events[0].ShowAvatar)
	assert.Equal(t, KindReceivedChat, events[1].Kind)
	assert.False(t, events[1].ShowAvatar)
}

func TestRouter_NonChatBreaksAvatarRun(t *testing.T) {
	f := newFixture(t)
	a := eventUser("a")

	f.router.ApplyStreamEvent(f.env(chat(a, uuid.Nil, "1")))
	f.router.ApplyStreamEvent(f.env(event.UserJoin{User: eventUser("z")}))
	f.router.ApplyStreamEvent(f.env(chat(a, uuid.Nil, "2")))
	f.router.ApplyStreamEvent(f.env(chat(f.self, uuid.Nil, "mine")))
	f.router.ApplyStreamEvent(f.env(chat(a, uuid.Nil, "3")))

	events := f.router.View(GlobalKey).Events()
	assert.Equal(t, []bool{true, true, true}, avatars(events))
	assert.Equal(t, KindSentChat, events[3].Kind)
}

func TestRouter_StatusKeepsAvatarRun(t *testing.T) {
	f := newFixture(t)
	a := eventUser("a")

	f.router.ApplyStreamEvent(f.env(chat(a, uuid.Nil, "1")))
	f.router.ApplyStreamEvent(f.env(event.UserStatus{User: a, Status: user.StatusAway}))
	f.router.ApplyStreamEvent(f.env(event.UserTyping{User: a, Typing: true}))
	f.router.ApplyStreamEvent(f.env(chat(a, uuid.Nil, "2")))

	events := f.router.View(GlobalKey).Events()
	require.Len(t, events, 2)
	assert.Equal(t, []bool{true, false}, avatars(events))
}

func TestRouter_TypingThenLeaveClearsTyping(t *testing.T) {
	f := newFixture(t)
	u2 := eventUser("u2")
	f.router.ApplyStreamEvent(f.env(event.UserJoin{User: u2}))

	assert.False(t, f.router.ApplyStreamEvent(f.env(event.UserTyping{User: u2, Typing: true})))
	assert.Contains(t, f.router.View(GlobalKey).TypingUsers(), u2.ID)

	got, ok := f.registry.Get(u2.ID)
	require.True(t, ok)
	assert.True(t, got.Typing)

	assert.True(t, f.router.ApplyStreamEvent(f.env(event.UserLeave{User: u2, Reason: event.LeaveUserAction})))
	assert.Empty(t, f.router.View(GlobalKey).TypingUsers())

	_, ok = f.registry.Get(u2.ID)
	assert.False(t, ok)
}

func TestRouter_LeaveClearsTypingInEveryView(t *testing.T) {
	f := newFixture(t)
	u2 := eventUser("u2")

	// u2 types to us directly without having been seen in that view before
	f.router.ApplyStreamEvent(f.env(event.UserTyping{User: u2, ReceiverID: f.self.ID, Typing: true}))
	other := f.router.View(uuid.New())
	details := u2.Details
	require.NoError(t, other.SetTyping(true, u2.ID, &details))

	f.router.ApplyStreamEvent(f.env(event.UserLeave{User: u2}))

	for _, key := range f.router.Keys() {
		view := f.router.View(key)
		assert.Empty(t, view.TypingUsers(), "view %s", key)

		last, ok := view.Last()
		require.True(t, ok)
		assert.Equal(t, KindUserLeave, last.Kind)
	}
}

func TestRouter_SelfTypingIsSuppressed(t *testing.T) {
	f := newFixture(t)
	changes := 0
	f.router.Subscribe(func(Change) { changes++ })

	assert.False(t, f.router.ApplyStreamEvent(f.env(event.UserTyping{User: f.self, Typing: true})))

	for _, key := range f.router.Keys() {
		assert.Empty(t, f.router.View(key).TypingUsers())
	}
	assert.Zero(t, changes)
}

func TestRouter_ChatClearsSenderTyping(t *testing.T) {
	f := newFixture(t)
	u2 := eventUser("u2")
	f.router.ApplyStreamEvent(f.env(event.UserJoin{User: u2}))
	f.router.ApplyStreamEvent(f.env(event.UserTyping{User: u2, Typing: true}))

	f.router.ApplyStreamEvent(f.env(chat(u2, uuid.Nil, "done")))

	assert.Empty(t, f.router.View(GlobalKey).TypingUsers())
	got, _ := f.registry.Get(u2.ID)
	assert.False(t, got.Typing)
}

func TestRouter_DirectChatKeys(t *testing.T) {
	f := newFixture(t)
	peer := eventUser("peer")

	// incoming direct chat lands in the view keyed by the sender
	f.router.ApplyStreamEvent(f.env(chat(peer, f.self.ID, "hey")))
	// our echo of a reply lands in the same view
	f.router.ApplyStreamEvent(f.env(chat(f.self, peer.ID, "hi back")))

	events := f.router.View(peer.ID).Events()
	require.Len(t, events, 2)
	assert.Equal(t, KindReceivedChat, events[0].Kind)
	assert.Equal(t, KindSentChat, events[1].Kind)
	assert.Zero(t, f.router.View(GlobalKey).Len())
}

func TestRouter_UserEventsUpdateRegistry(t *testing.T) {
	f := newFixture(t)
	u2 := eventUser("u2")

	f.router.ApplyStreamEvent(f.env(event.UserJoin{User: u2, Flags: user.FlagBot}))
	got, ok := f.registry.Get(u2.ID)
	require.True(t, ok)
	assert.True(t, got.Flags.Has(user.FlagBot))

	renamed := u2
	renamed.Details.Name = "u2-renamed"
	assert.True(t, f.router.ApplyStreamEvent(f.env(event.UserUpdate{User: renamed, Before: u2.Details})))
	got, _ = f.registry.Get(u2.ID)
	assert.Equal(t, "u2-renamed", got.Details.Name)

	last, _ := f.router.View(GlobalKey).Last()
	assert.Equal(t, KindUserUpdate, last.Kind)
	assert.Equal(t, "u2", last.Before.Name)

	before := f.router.View(GlobalKey).Len()
	assert.True(t, f.router.ApplyStreamEvent(f.env(event.UserStatus{User: renamed, Status: user.StatusAway})))
	got, _ = f.registry.Get(u2.ID)
	assert.Equal(t, user.StatusAway, got.Status)
	assert.Equal(t, before, f.router.View(GlobalKey).Len(), "status is registry-only")
}

func TestRouter_UnknownEventIgnored(t *testing.T) {
	f := newFixture(t)
	assert.False(t, f.router.ApplyStreamEvent(event.Envelope{Time: time.Now(), Event: event.Event{Case: "userWaved"}}))
	assert.Zero(t, f.router.View(GlobalKey).Len())
}

func TestRouter_NotifiesChanges(t *testing.T) {
	f := newFixture(t)
	peer := eventUser("peer")

	var got []Change
	unsubscribe := f.router.Subscribe(func(c Change) { got = append(got, c) })

	f.router.ApplyStreamEvent(f.env(chat(peer, f.self.ID, "hey")))
	f.router.ApplyStreamEvent(f.env(event.UserTyping{User: peer, Typing: true}))

	unsubscribe()
	f.router.ApplyStreamEvent(f.env(chat(peer, uuid.Nil, "ignored")))

	assert.Equal(t, []Change{{Key: peer.ID, Scroll: true}, {Key: GlobalKey}}, got)
}

func TestRouter_HistoryThenLiveIsChronological(t *testing.T) {
	f := newFixture(t)
	a, b := eventUser("a"), eventUser("b")

	var history []event.Envelope
	history = append(history,
		f.env(event.UserJoin{User: a}),
		f.env(chat(a, uuid.Nil, "1")),
		f.env(chat(a, uuid.Nil, "2")),
		f.env(chat(b, uuid.Nil, "3")),
	)
	live := f.env(chat(b, uuid.Nil, "4"))

	// the live event arrives before the page, and the page lists newest first
	// and also contains the live event
	f.router.ApplyStreamEvent(live)
	page := []event.Envelope{live, history[3], history[2], history[1], history[0]}
	f.router.ApplyHistory(page)

	events := f.router.View(GlobalKey).Events()
	require.Len(t, events, 5)
	for i := 1; i < len(events); i++ {
		assert.False(t, events[i].Time.Before(events[i-1].Time), "event %d out of order", i)
	}

	var texts []string
	for _, e := range events[1:] {
		texts = append(texts, e.Text)
	}
	assert.Equal(t, []string{"1", "2", "3", "4"}, texts)
	assert.Equal(t, KindUserJoin, events[0].Kind)
	assert.Equal(t, []bool{true, false, true, true}, avatars(events))
}

func TestRouter_HistoryOrderIndependent(t *testing.T) {
	f := newFixture(t)
	a := eventUser("a")

	first := f.env(chat(a, uuid.Nil, "1"))
	second := f.env(chat(a, uuid.Nil, "2"))
	typing := f.env(event.UserTyping{User: a, Typing: true})

	f.router.ApplyHistory([]event.Envelope{first, typing, second})

	events := f.router.View(GlobalKey).Events()
	require.Len(t, events, 2)
	assert.Equal(t, "1", events[0].Text)
	assert.Equal(t, "2", events[1].Text)
	assert.Equal(t, []bool{true, false}, avatars(events))
	assert.Empty(t, f.router.View(GlobalKey).TypingUsers())

	_, ok := f.registry.Get(a.ID)
	assert.False(t, ok, "history does not populate the registry")
}

func TestRouter_HistoryLeaveGoesToEveryView(t *testing.T) {
	f := newFixture(t)
	peer := eventUser("peer")
	f.router.View(peer.ID)

	f.router.ApplyHistory([]event.Envelope{f.env(event.UserLeave{User: eventUser("gone")})})

	for _, key := range f.router.Keys() {
		first, ok := f.router.View(key).First()
		require.True(t, ok)
		assert.Equal(t, KindUserLeave, first.Kind)
	}
}

func TestRouter_Active(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, GlobalKey, f.router.Active())

	peer := uuid.New()
	f.router.SetActive(peer)
	assert.Equal(t, peer, f.router.Active())
	assert.Equal(t, []Key{GlobalKey, peer}, f.router.Keys())
}
