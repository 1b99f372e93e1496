package user

import (
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"chatroom/internal/pkg/errs"
)

// Store keeps the active users of the server in memory. Names are unique
// (case-insensitive) among active users. Store is safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	users map[ID]User
	names map[string]ID
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{
		users: make(map[ID]User),
		names: make(map[string]ID),
	}
}

func nameKey(name string) string { return strings.ToLower(name) }

// Add validates and normalizes the details, assigns a new id and stores the user.
func (s *Store) Add(details Details, flags Flag) (User, *errs.CustomError) {
	details, cerr := Normalize(details, flags)
	if cerr != nil {
		return User{}, cerr
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := nameKey(details.Name)
	if _, taken := s.names[key]; taken {
		return User{}, errs.NewError(errs.ErrUserNameTaken)
	}

	u := User{
		ID:      uuid.New(),
		Details: details,
		Flags:   flags,
	}
	s.users[u.ID] = u
	s.names[key] = u.ID

	return u, nil
}

// Get returns the user with the given id.
func (s *Store) Get(id ID) (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	return u, ok
}

// Delete removes the user with the given id and returns it.
func (s *Store) Delete(id ID) (User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return User{}, false
	}

	delete(s.users, id)
	delete(s.names, nameKey(u.Details.Name))
	return u, true
}

// Len returns the number of active users.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.users)
}

// List returns all active users sorted by name.
func (s *Store) List() []User {
	s.mu.RLock()
	list := make([]User, 0, len(s.users))
	for _, u := range s.users {
		list = append(list, u)
	}
	s.mu.RUnlock()

	slices.SortFunc(list, func(a, b User) int {
		if c := strings.Compare(a.Details.Name, b.Details.Name); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	return list
}

// UpdateStatus sets the status of a user and returns the previous status and the updated user.
func (s *Store) UpdateStatus(id ID, status Status) (Status, User, *errs.CustomError) {
	if !status.Valid() {
		return 0, User{}, errs.NewError(errs.ErrInvalidStatus)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return 0, User{}, errs.NewError(errs.ErrUserNotFound)
	}

	before := u.Status
	u.Status = status
	s.users[id] = u
	return before, u, nil
}

// UpdateDetails replaces the display details of a user and returns the previous details
// and the updated user. A rename must keep names unique.
func (s *Store) UpdateDetails(id ID, details Details) (Details, User, *errs.CustomError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return Details{}, User{}, errs.NewError(errs.ErrUserNotFound)
	}

	details, cerr := Normalize(details, u.Flags)
	if cerr != nil {
		return Details{}, User{}, cerr
	}

	oldKey, newKey := nameKey(u.Details.Name), nameKey(details.Name)
	if oldKey != newKey {
		if _, taken := s.names[newKey]; taken {
			return Details{}, User{}, errs.NewError(errs.ErrUserNameTaken)
		}
		delete(s.names, oldKey)
		s.names[newKey] = id
	}

	before := u.Details
	u.Details = details
	s.users[id] = u
	return before, u, nil
}
