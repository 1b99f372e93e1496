/*
Package chat contains the server side of the chatroom: the users' lifecycle, the event
broker fanning events out to stream subscribers, the typing indicator and the event history.

This file defines the Broker, the hub that owns all event stream subscribers. A single Run
loop handles registration, removal and fan-out, so the subscriber set is only ever mutated
from one goroutine.
*/
package chat

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"chatroom/internal/app/event"
	"chatroom/internal/app/user"
	"chatroom/internal/pkg/logx"
	"chatroom/internal/pkg/metrics"
)

const (
	publishChannelBuffer = 1024

	// subscriberSendBuffer is the per-subscriber queue length. A subscriber whose
	// queue is full when an event arrives is dropped.
	subscriberSendBuffer = 256
)

// Broker fans published envelopes out to every interested Subscriber.
type Broker struct {
	// subscribers is owned by the Run loop; mu guards reads from other goroutines.
	subscribers map[*Subscriber]struct{}
	mu          sync.RWMutex

	publish    chan event.Envelope
	register   chan *Subscriber
	unregister chan *Subscriber
	kick       chan user.ID

	// stopChan signals the Run loop to stop; done is closed once it has.
	stopChan chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	logger zerolog.Logger
}

// NewBroker creates a Broker. Run must be started before events are published.
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[*Subscriber]struct{}),
		publish:     make(chan event.Envelope, publishChannelBuffer),
		register:    make(chan *Subscriber),
		unregister:  make(chan *Subscriber),
		kick:        make(chan user.ID),
		stopChan:    make(chan struct{}),
		done:        make(chan struct{}),
		logger:      logx.Component("broker"),
	}
}

// Run is the broker's event loop. It returns after Stop.
func (b *Broker) Run() {
	defer close(b.done)

	for {
		select {
		case s := <-b.register:
			b.mu.Lock()
			b.subscribers[s] = struct{}{}
			total := len(b.subscribers)
			b.mu.Unlock()

			metrics.StreamSubscribers.Inc()
			s.logger.Info().Int("total_subscribers", total).Msg("Subscriber registered.")

		case s := <-b.unregister:
			if b.remove(s, 0, "") {
				s.logger.Info().Msg("Subscriber unregistered.")
			}

		case uid := <-b.kick:
			for _, s := range b.snapshot() {
				if s.userID == uid {
					b.remove(s, CloseCodeUserLeft, "user left the chatroom")
				}
			}

		case env := <-b.publish:
			b.fanOut(env)

		case <-b.stopChan:
			b.logger.Info().Msg("Broker stop initiated. Closing all subscribers.")
			for _, s := range b.snapshot() {
				b.remove(s, CloseCodeGoingAway, "server shutting down")
			}
			return
		}
	}
}

func (b *Broker) fanOut(env event.Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		b.logger.Error().Err(err).Str("kind", string(env.Event.Case)).Msg("Error marshaling envelope for fan-out.")
		return
	}

	for _, s := range b.snapshot() {
		if !s.Wants(env) {
			continue
		}

		select {
		case s.send <- data:
		default:
			s.logger.Warn().Int("queue_len", len(s.send)).Msg("Subscriber send queue full, dropping subscriber.")
			metrics.SubscribersDropped.Inc()
			b.remove(s, CloseCodeTooSlow, "subscriber too slow")
		}
	}
}

// remove deletes s and closes its send queue, which makes its WritePump send a
// close frame with the given code. It must only be called from the Run loop.
func (b *Broker) remove(s *Subscriber, code int, text string) bool {
	b.mu.Lock()
	_, ok := b.subscribers[s]
	if ok {
		delete(b.subscribers, s)
	}
	b.mu.Unlock()

	if !ok {
		return false
	}

	if code != 0 {
		s.closeCode, s.closeText = code, text
	}
	close(s.send)
	metrics.StreamSubscribers.Dec()
	return true
}

func (b *Broker) snapshot() []*Subscriber {
	b.mu.RLock()
	defer b.mu.RUnlock()

	list := make([]*Subscriber, 0, len(b.subscribers))
	for s := range b.subscribers {
		list = append(list, s)
	}
	return list
}

// Count returns the number of registered subscribers.
func (b *Broker) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.subscribers)
}

// Publish queues env for fan-out. It never blocks; when the queue is full the
// envelope is dropped and a warning is logged.
func (b *Broker) Publish(env event.Envelope) {
	select {
	case b.publish <- env:
	case <-b.done:
	default:
		b.logger.Warn().Str("kind", string(env.Event.Case)).Msg("Publish channel full, dropping event.")
	}
}

// Register adds s to the fan-out set. It reports false once the broker has stopped.
func (b *Broker) Register(s *Subscriber) bool {
	select {
	case b.register <- s:
		return true
	case <-b.done:
		return false
	}
}

// Unregister removes s from the fan-out set.
func (b *Broker) Unregister(s *Subscriber) {
	select {
	case b.unregister <- s:
	case <-b.done:
	}
}

// Kick closes every stream of uid.
func (b *Broker) Kick(uid user.ID) {
	select {
	case b.kick <- uid:
	case <-b.done:
	}
}

// Stop terminates the Run loop and closes all subscribers. It waits for the loop to exit.
func (b *Broker) Stop() {
	b.stopOnce.Do(func() { close(b.stopChan) })
	<-b.done
}
