package apiclient

import "sync"

// Signals fans session events out to subscribers. Handlers run synchronously
// on the goroutine that emits the event.
type Signals struct {
	mu       sync.RWMutex
	next     int
	revoked  map[int]func(message string)
	received int
}

// NewSignals constructs an empty registry.
func NewSignals() *Signals {
	return &Signals{revoked: make(map[int]func(string))}
}

// OnTokenRevoked registers fn and returns a function that removes it.
func (s *Signals) OnTokenRevoked(fn func(message string)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.next
	s.next++
	s.revoked[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.revoked, id)
			s.mu.Unlock()
		})
	}
}

// TokenRevoked notifies every subscriber that the session is gone.
func (s *Signals) TokenRevoked(message string) {
	s.mu.Lock()
	s.received++
	handlers := make([]func(string), 0, len(s.revoked))
	for _, fn := range s.revoked {
		handlers = append(handlers, fn)
	}
	s.mu.Unlock()

	for _, fn := range handlers {
		fn(message)
	}
}

// RevokedCount returns how many revocations have been emitted.
func (s *Signals) RevokedCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.received
}
