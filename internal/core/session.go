package core

import (
	"strings"
	"sync"

	"github.com/vovakirdan/wirechat-feed/internal/store"
)

// Session holds the display name bound to a connection.
// Rebinding is last-write-wins and never touches stored messages.
type Session struct {
	mu   sync.RWMutex
	name string
}

// NewSession returns an unbound session.
func NewSession() *Session {
	return &Session{}
}

// Bind sets the active identity. A blank name leaves the session unbound.
func (s *Session) Bind(displayName string) {
	s.mu.Lock()
	s.name = strings.TrimSpace(displayName)
	s.mu.Unlock()
}

// Clear resets the session to unbound.
func (s *Session) Clear() {
	s.mu.Lock()
	s.name = ""
	s.mu.Unlock()
}

// CurrentName returns the bound name or store.AnonymousName.
func (s *Session) CurrentName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.name == "" {
		return store.AnonymousName
	}
	return s.name
}

// Bound reports whether an identity is bound.
func (s *Session) Bound() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name != ""
}
