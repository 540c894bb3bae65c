// Package identity publishes the signed-in user id.
//
// The empty string means nobody is signed in. Subscribers receive the
// current value as soon as they subscribe and every change after that.
// Delivery is latest-value-wins: a subscriber that falls behind skips
// intermediate values and sees only the newest one.
package identity

import "sync"

// Stream is a source of the current user id.
type Stream interface {
	// Current returns the active user id, or "" when signed out.
	Current() string
	// Subscribe starts a subscription. The current value is available on
	// C immediately.
	Subscribe() *Subscription
}

// Subscription delivers identity values on C until Cancel is called, after
// which C is closed.
type Subscription struct {
	C <-chan string

	once   sync.Once
	cancel func()
}

// NewSubscription builds a Subscription for a custom Stream. cancel runs
// once, on the first Cancel call, and must close c.
func NewSubscription(c <-chan string, cancel func()) *Subscription {
	return &Subscription{C: c, cancel: cancel}
}

// Cancel ends the subscription. It is safe to call more than once.
func (s *Subscription) Cancel() {
	s.once.Do(s.cancel)
}

// Source is an in-memory Stream.
type Source struct {
	mu      sync.Mutex
	current string
	subs    map[chan string]struct{}
}

// NewSource creates a Source holding initial.
func NewSource(initial string) *Source {
	return &Source{
		current: initial,
		subs:    make(map[chan string]struct{}),
	}
}

// Current returns the active user id.
func (s *Source) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Subscribe implements Stream.
func (s *Source) Subscribe() *Subscription {
	ch := make(chan string, 1)

	s.mu.Lock()
	ch <- s.current
	s.subs[ch] = struct{}{}
	s.mu.Unlock()

	return NewSubscription(ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, ch)
		close(ch)
	})
}

// Set makes uid the active identity and publishes it to every subscriber.
func (s *Source) Set(uid string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = uid
	for ch := range s.subs {
		// Replace any value the subscriber has not read yet.
		select {
		case <-ch:
		default:
		}
		ch <- uid
	}
}

// Clear signs out.
func (s *Source) Clear() {
	s.Set("")
}
