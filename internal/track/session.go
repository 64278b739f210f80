package track

import "sync"

// SessionState is the logical tracking state, deliberately independent of
// socket state: the channel can be open while tracking is paused, and can be
// briefly closed while tracking is still logically active pending reconnect.
// It changes only on server-pushed status messages, explicit calls, or a
// terminal close.
type SessionState struct {
	mu     sync.Mutex
	active bool
}

// SetActive records the authoritative tracking flag.
func (s *SessionState) SetActive(v bool) {
	s.mu.Lock()
	s.active = v
	s.mu.Unlock()
}

// Active reports whether tracking is logically running.
func (s *SessionState) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}
