// Package broadcast implements the payload-less change signal cart
// fragments subscribe to. A notification only says "re-read the cart".
package broadcast

import (
	"sync"

	"github.com/yungbote/storefront-cart/internal/platform/logger"
)

type Listener func()

type subscription struct {
	id      uint64
	fn      Listener
	removed bool
}

type Signal struct {
	name string
	log  *logger.Logger

	mu         sync.Mutex
	nextID     uint64
	subs       []*subscription
	pending    int
	delivering bool
}

func New(name string, log *logger.Logger) *Signal {
	s := &Signal{name: name}
	if log != nil {
		s.log = log.With("component", "Signal", "signal", name)
	}
	return s
}

func (s *Signal) Name() string { return s.name }

// Subscribe registers fn and returns a function that detaches it.
// The returned function is safe to call more than once.
func (s *Signal) Subscribe(fn Listener) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}
	s.mu.Lock()
	s.nextID++
	sub := &subscription{id: s.nextID, fn: fn}
	s.subs = append(s.subs, sub)
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { s.remove(sub) })
	}
}

func (s *Signal) remove(sub *subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub.removed = true
	kept := s.subs[:0:0]
	for _, other := range s.subs {
		if other != sub {
			kept = append(kept, other)
		}
	}
	s.subs = kept
}

// Len reports the number of live subscribers.
func (s *Signal) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Notify calls every live subscriber in subscription order.
//
// Deliveries never overlap: if a notification is already being delivered
// (a listener mutating the cart, or another goroutine), this one is queued
// and delivered by that loop right after the current round, so subscribers
// observe notifications in fire order.
func (s *Signal) Notify() {
	s.mu.Lock()
	s.pending++
	if s.delivering {
		s.mu.Unlock()
		return
	}
	s.delivering = true
	for s.pending > 0 {
		s.pending--
		round := make([]*subscription, len(s.subs))
		copy(round, s.subs)
		s.mu.Unlock()

		for _, sub := range round {
			if s.live(sub) {
				s.call(sub)
			}
		}

		s.mu.Lock()
	}
	s.delivering = false
	s.mu.Unlock()
}

func (s *Signal) live(sub *subscription) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !sub.removed
}

// call isolates a panicking listener so the remaining fragments still update.
func (s *Signal) call(sub *subscription) {
	defer func() {
		if r := recover(); r != nil && s.log != nil {
			s.log.Error("listener panicked", "subscription", sub.id, "panic", r)
		}
	}()
	sub.fn()
}
