/*
Package registry keeps the client's sorted list of active chatroom users.

The list is filled once from the server and then kept in sync by the event stream.
Every mutation notifies the registry's observers.
*/
package registry

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"chatroom/internal/app/user"
	"chatroom/internal/pkg/observe"
)

// ActiveUsersFetcher fetches the server's snapshot of active users.
type ActiveUsersFetcher interface {
	ActiveUsers(ctx context.Context) ([]user.User, error)
}

// Registry is the sorted collection of active users. It is safe for concurrent use.
type Registry struct {
	api ActiveUsersFetcher

	mu    sync.RWMutex
	users []user.User

	changed observe.Subject[struct{}]
}

// New returns an empty Registry that fetches snapshots through api.
func New(api ActiveUsersFetcher) *Registry {
	return &Registry{api: api}
}

func compareUsers(a, b user.User) int {
	return strings.Compare(a.Details.Name, b.Details.Name)
}

func (r *Registry) indexLocked(id uuid.UUID) int {
	return slices.IndexFunc(r.users, func(u user.User) bool { return u.ID == id })
}

// mutate runs fn under the write lock and notifies observers when fn reports a change.
func (r *Registry) mutate(fn func() bool) {
	r.mu.Lock()
	changed := fn()
	r.mu.Unlock()

	if changed {
		r.changed.Notify(struct{}{})
	}
}

// FetchAll replaces the collection with the server's snapshot. On error the
// collection is left untouched.
func (r *Registry) FetchAll(ctx context.Context) error {
	list, err := r.api.ActiveUsers(ctx)
	if err != nil {
		return err
	}

	list = slices.Clone(list)
	slices.SortStableFunc(list, compareUsers)

	r.mutate(func() bool {
		r.users = list
		return true
	})
	return nil
}

// Add inserts u. A user with the same id is replaced.
func (r *Registry) Add(u user.User) {
	r.mutate(func() bool {
		if i := r.indexLocked(u.ID); i >= 0 {
			r.users = slices.Delete(r.users, i, i+1)
		}
		r.users = append(r.users, u)
		slices.SortStableFunc(r.users, compareUsers)
		return true
	})
}

// Remove deletes the user with the given id, if present.
func (r *Registry) Remove(id uuid.UUID) {
	r.mutate(func() bool {
		i := r.indexLocked(id)
		if i < 0 {
			return false
		}
		r.users = slices.Delete(r.users, i, i+1)
		return true
	})
}

// UpdateDetails replaces the details of the user with the given id, if present.
func (r *Registry) UpdateDetails(id uuid.UUID, details user.Details) {
	r.mutate(func() bool {
		i := r.indexLocked(id)
		if i < 0 {
			return false
		}

		renamed := r.users[i].Details.Name != details.Name
		r.users[i].Details = details
		if renamed {
			slices.SortStableFunc(r.users, compareUsers)
		}
		return true
	})
}

// SetStatus changes the status of the user with the given id, if present.
func (r *Registry) SetStatus(id uuid.UUID, status user.Status) {
	r.mutate(func() bool {
		i := r.indexLocked(id)
		if i < 0 {
			return false
		}
		r.users[i].Status = status
		return true
	})
}

// SetTyping changes the local typing flag of the user with the given id, if present.
func (r *Registry) SetTyping(id uuid.UUID, typing bool) {
	r.mutate(func() bool {
		i := r.indexLocked(id)
		if i < 0 || r.users[i].Typing == typing {
			return false
		}
		r.users[i].Typing = typing
		return true
	})
}

// Users returns a copy of the sorted collection.
func (r *Registry) Users() []user.User {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.users)
}

// Get returns the user with the given id.
func (r *Registry) Get(id uuid.UUID) (user.User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if i := r.indexLocked(id); i >= 0 {
		return r.users[i], true
	}
	return user.User{}, false
}

// Len returns the number of users.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}

// Subscribe registers fn to be called after every change.
func (r *Registry) Subscribe(fn func()) (unsubscribe func()) {
	return r.changed.Subscribe(func(struct{}) { fn() })
}
