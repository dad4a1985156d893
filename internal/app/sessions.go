package app

import (
	"errors"
	"sync"

	"tenant-console/internal/services/asana"
)

// ErrSessionNotFound is returned for unknown or closed session ids
var ErrSessionNotFound = errors.New("wizard session not found")

// Sessions tracks open wizard sessions by id
type Sessions struct {
	mu    sync.RWMutex
	items map[string]*asana.Session
}

func newSessions() *Sessions {
	return &Sessions{items: make(map[string]*asana.Session)}
}

// Add registers a session
func (s *Sessions) Add(session *asana.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[session.ID()] = session
}

// Get looks a session up
func (s *Sessions) Get(id string) (*asana.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.items[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// Close closes and forgets a session, stopping its polling
func (s *Sessions) Close(id string) error {
	s.mu.Lock()
	session, ok := s.items[id]
	delete(s.items, id)
	s.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	session.Close()
	return nil
}

// Len is the number of open sessions
func (s *Sessions) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// CloseAll closes every session
func (s *Sessions) CloseAll() {
	s.mu.Lock()
	items := s.items
	s.items = make(map[string]*asana.Session)
	s.mu.Unlock()

	for _, session := range items {
		session.Close()
	}
}
