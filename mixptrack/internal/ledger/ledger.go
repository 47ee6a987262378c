// Package ledger records which elements have already been bound, so that
// repeated scan passes never dispatch twice for the same element.
package ledger

import (
	"sync"

	"github.com/hazyhaar/mixptrack/mixptrack/internal/dom"
)

// Tracker is the per-page binding ledger.
type Tracker interface {
	IsBound(el dom.Element) bool
	// MarkBound is idempotent. Entries are never removed.
	MarkBound(el dom.Element)
	Len() int
}

// Set is an in-memory Tracker keyed by dom.Element.Key.
type Set struct {
	mu    sync.RWMutex
	bound map[string]struct{}
}

// NewSet returns an empty ledger.
func NewSet() *Set {
	return &Set{bound: make(map[string]struct{})}
}

func (s *Set) IsBound(el dom.Element) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.bound[el.Key()]
	return ok
}

func (s *Set) MarkBound(el dom.Element) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bound[el.Key()] = struct{}{}
}

// Len returns the number of bound elements.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.bound)
}
