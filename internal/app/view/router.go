package view

import (
	"slices"
	"sync"

	"github.com/google/uuid"

	"chatroom/internal/app/event"
	"chatroom/internal/app/user"
	"chatroom/internal/pkg/observe"
)

// Identity reports the signed-in user.
type Identity interface {
	UserID() uuid.UUID
}

// Users is the registry the Router keeps in step with the events it reduces.
type Users interface {
	Add(u user.User)
	Remove(id uuid.UUID)
	UpdateDetails(id uuid.UUID, details user.Details)
	SetStatus(id uuid.UUID, status user.Status)
	SetTyping(id uuid.UUID, typing bool)
}

// Change describes a reduction that touched the view with Key.
type Change struct {
	Key Key

	// Scroll asks the front end to scroll the view to its newest event.
	Scroll bool
}

// Router owns every ConversationView of a session and reduces event envelopes into them.
// Reductions are serialized; reads may happen concurrently from any goroutine.
type Router struct {
	identity Identity
	users    Users

	// reduce serializes ApplyStreamEvent and ApplyHistory.
	reduce sync.Mutex

	mu     sync.RWMutex
	views  map[Key]*ConversationView
	keys   []Key
	active Key

	changed observe.Subject[Change]
}

// NewRouter returns a Router holding an empty global view.
func NewRouter(identity Identity, users Users) *Router {
	r := &Router{
		identity: identity,
		users:    users,
		views:    make(map[Key]*ConversationView),
		active:   GlobalKey,
	}
	r.View(GlobalKey)
	return r
}

// View returns the view for key, creating it on first use.
func (r *Router) View(key Key) *ConversationView {
	r.mu.RLock()
	v, ok := r.views[key]
	r.mu.RUnlock()
	if ok {
		return v
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok = r.views[key]; !ok {
		v = NewConversationView(key)
		r.views[key] = v
		r.keys = append(r.keys, key)
	}
	return v
}

// Keys returns the keys of all views in creation order; GlobalKey comes first.
func (r *Router) Keys() []Key {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.keys)
}

func (r *Router) allViews() []*ConversationView {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]*ConversationView, 0, len(r.keys))
	for _, k := range r.keys {
		list = append(list, r.views[k])
	}
	return list
}

// Active returns the key of the conversation shown to the user.
func (r *Router) Active() Key {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

// SetActive switches the shown conversation, creating its view if needed.
func (r *Router) SetActive(key Key) {
	r.View(key)

	r.mu.Lock()
	r.active = key
	r.mu.Unlock()
}

// Subscribe registers fn to be called after every reduction that touched a view.
func (r *Router) Subscribe(fn func(Change)) (unsubscribe func()) {
	return r.changed.Subscribe(fn)
}

func (r *Router) notify(changes []Change) {
	for _, c := range changes {
		r.changed.Notify(c)
	}
}

// conversationKey resolves the view of an event acted by actor and addressed to receiver.
// A direct event lands in the conversation with the other party from self's perspective.
func conversationKey(self, actor, receiver uuid.UUID) Key {
	switch receiver {
	case uuid.Nil:
		return GlobalKey
	case self:
		return actor
	default:
		return receiver
	}
}

type target int

const (
	targetNone target = iota
	targetOne
	targetAll
)

// render converts env into its rendered form and tells which views it belongs in.
// Typing and status events are never rendered.
func render(env event.Envelope, self uuid.UUID) (Event, target, Key) {
	e := Event{Time: env.Time.Local()}

	switch v := env.Event.Value.(type) {
	case event.UserJoin:
		e.Kind, e.UserID, e.User = KindUserJoin, v.User.ID, v.User.Details
		return e, targetOne, GlobalKey

	case event.UserLeave:
		e.Kind, e.UserID, e.User = KindUserLeave, v.User.ID, v.User.Details
		e.Reason = v.Reason
		return e, targetAll, GlobalKey

	case event.UserUpdate:
		e.Kind, e.UserID, e.User = KindUserUpdate, v.User.ID, v.User.Details
		e.Before = v.Before
		return e, targetAll, GlobalKey

	case event.ChatSent:
		e.Kind = KindReceivedChat
		if v.User.ID == self {
			e.Kind = KindSentChat
		}
		e.UserID, e.User = v.User.ID, v.User.Details
		e.ChatID, e.Text, e.ReceiverID = v.ChatID, v.Text, v.ReceiverID
		return e, targetOne, conversationKey(self, v.User.ID, v.ReceiverID)
	}

	return e, targetNone, GlobalKey
}

// showAvatar reports whether a received chat from sender placed after prev starts a new run.
func showAvatar(prev Event, hasPrev bool, sender uuid.UUID) bool {
	return !hasPrev || prev.Kind != KindReceivedChat || prev.UserID != sender
}

// ApplyStreamEvent reduces one live envelope and reports whether the front end
// should scroll to the newest event.
func (r *Router) ApplyStreamEvent(env event.Envelope) bool {
	r.reduce.Lock()
	changes, scroll := r.applyLive(env)
	r.reduce.Unlock()

	r.notify(changes)
	return scroll
}

func (r *Router) applyLive(env event.Envelope) ([]Change, bool) {
	self := r.identity.UserID()

	switch v := env.Event.Value.(type) {
	case event.UserJoin:
		r.users.Add(user.User{ID: v.User.ID, Details: v.User.Details, Flags: v.Flags})

	case event.UserLeave:
		r.users.Remove(v.User.ID)

	case event.UserUpdate:
		r.users.UpdateDetails(v.User.ID, v.User.Details)

	case event.UserStatus:
		r.users.SetStatus(v.User.ID, v.Status)
		return nil, true

	case event.UserTyping:
		if v.User.ID == self {
			return nil, false
		}

		r.users.SetTyping(v.User.ID, v.Typing)
		key := conversationKey(self, v.User.ID, v.ReceiverID)
		details := v.User.Details
		_ = r.View(key).SetTyping(v.Typing, v.User.ID, &details)
		return []Change{{Key: key}}, false

	case event.ChatSent:
		if v.User.ID != self {
			r.users.SetTyping(v.User.ID, false)
		}

	default:
		return nil, false
	}

	e, tgt, key := render(env, self)

	if tgt == targetAll {
		views := r.allViews()
		changes := make([]Change, 0, len(views))
		for _, view := range views {
			if e.Kind == KindUserLeave {
				_ = view.SetTyping(false, e.UserID, nil)
			}
			view.AppendEvent(e)
			changes = append(changes, Change{Key: view.Key(), Scroll: true})
		}
		return changes, true
	}

	view := r.View(key)
	if e.Kind == KindReceivedChat {
		_ = view.SetTyping(false, e.UserID, nil)
		prev, ok := view.Last()
		e.ShowAvatar = showAvatar(prev, ok, e.UserID)
	}
	view.AppendEvent(e)

	return []Change{{Key: key, Scroll: true}}, true
}

// placement is a rendered history event and the views it goes to.
type placement struct {
	event Event
	keys  []Key
}

// ApplyHistory prepends a page of stored envelopes to the views they belong in.
// The page may arrive in any order. Events not older than a view's current head
// were already delivered live and are skipped, so each log stays chronological.
// History never touches the user registry; it describes the past.
func (r *Router) ApplyHistory(batch []event.Envelope) {
	r.reduce.Lock()
	changes := r.applyHistory(batch)
	r.reduce.Unlock()

	r.notify(changes)
}

func (r *Router) applyHistory(batch []event.Envelope) []Change {
	self := r.identity.UserID()

	ordered := slices.Clone(batch)
	slices.SortStableFunc(ordered, func(a, b event.Envelope) int {
		return b.Time.Compare(a.Time)
	})

	// every view the page can touch, so "all views" means the same for each item
	for _, env := range ordered {
		if _, tgt, key := render(env, self); tgt == targetOne {
			r.View(key)
		}
	}
	keys := r.Keys()

	heads := make(map[Key]Event, len(keys))
	for _, k := range keys {
		if head, ok := r.View(k).First(); ok {
			heads[k] = head
		}
	}

	// walk oldest to newest so avatar runs read like the live log
	placements := make([]placement, len(ordered))
	last := make(map[Key]Event, len(keys))

	for i := len(ordered) - 1; i >= 0; i-- {
		e, tgt, key := render(ordered[i], self)

		var targets []Key
		switch tgt {
		case targetOne:
			targets = []Key{key}
		case targetAll:
			targets = keys
		}

		p := placement{event: e}
		for _, k := range targets {
			if head, ok := heads[k]; ok && !e.Time.Before(head.Time) {
				continue
			}

			// chats always have a single target
			if e.Kind == KindReceivedChat {
				prev, ok := last[k]
				p.event.ShowAvatar = showAvatar(prev, ok, e.UserID)
			}
			last[k] = p.event
			p.keys = append(p.keys, k)
		}
		placements[i] = p
	}

	touched := make(map[Key]bool)
	for _, p := range placements {
		for _, k := range p.keys {
			view := r.View(k)
			if p.event.Kind == KindUserLeave {
				_ = view.SetTyping(false, p.event.UserID, nil)
			}
			view.PrependEvent(p.event)
			touched[k] = true
		}
	}

	changes := make([]Change, 0, len(touched))
	for _, k := range keys {
		if touched[k] {
			changes = append(changes, Change{Key: k})
		}
	}
	return changes
}
