/*
Package observe provides a minimal typed publish/subscribe primitive used by the client
state holders to notify front ends of changes.
*/
package observe

import "sync"

// Subject delivers values of type T to every subscribed callback. The zero value is ready to use.
//
// Callbacks run synchronously on the notifying goroutine, in subscription order, and must
// not block. A callback may unsubscribe itself or others during delivery.
type Subject[T any] struct {
	mu     sync.Mutex
	nextID uint64
	subs   []subscription[T]
}

type subscription[T any] struct {
	id uint64
	fn func(T)
}

// Subscribe registers fn and returns a function that removes it. The returned function is idempotent.
func (s *Subject[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.subs = append(s.subs, subscription[T]{id: id, fn: fn})
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

// Notify calls every current subscriber with v.
func (s *Subject[T]) Notify(v T) {
	s.mu.Lock()
	subs := s.subs
	s.mu.Unlock()

	for _, sub := range subs {
		sub.fn(v)
	}
}

// Len returns the number of subscribers.
func (s *Subject[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}
