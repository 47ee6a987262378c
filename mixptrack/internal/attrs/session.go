package attrs

import (
	"sync"

	"github.com/hazyhaar/mixptrack/mixptrack/directive"
)

// Session holds the common attributes of one page session: the profile
// recorded when the visitor was identified. The identity binder is the
// only writer; every payload build reads it.
type Session struct {
	mu       sync.RWMutex
	identity string
	common   directive.Payload
}

// NewSession returns an empty, unidentified session.
func NewSession() *Session {
	return &Session{}
}

// Identify stores the identity and its profile as the common attributes.
func (s *Session) Identify(id string, profile directive.Payload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identity = id
	s.common = profile.Clone()
}

// Identity returns the identified visitor id, or "".
func (s *Session) Identity() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity
}

// Common returns a copy of the common attributes. Nil before identification.
func (s *Session) Common() directive.Payload {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.common == nil {
		return nil
	}
	return s.common.Clone()
}
