// Package memory provides an in-process append log.
// It keeps nothing across restarts and is meant for tests and local runs.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vovakirdan/wirechat-feed/internal/store"
)

// MemoryStore implements store.Store on slices guarded by a RWMutex.
type MemoryStore struct {
	mu        sync.RWMutex
	messages  []*store.Message
	nextID    int64
	users     []*store.User
	nextUser  int64
	reachable bool
	closed    bool
	now       func() time.Time
}

// New creates an empty, reachable store.
func New() *MemoryStore {
	return &MemoryStore{
		nextID:    1,
		nextUser:  1,
		reachable: true,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetReachable toggles simulated reachability.
// While unreachable every operation fails with store.ErrUnavailable.
func (s *MemoryStore) SetReachable(ok bool) {
	s.mu.Lock()
	s.reachable = ok
	s.mu.Unlock()
}

func (s *MemoryStore) checkLocked() error {
	if s.closed {
		return fmt.Errorf("memory store closed: %w", store.ErrUnavailable)
	}
	if !s.reachable {
		return fmt.Errorf("memory store unreachable: %w", store.ErrUnavailable)
	}
	return nil
}

// Append stores a validated message and assigns the next id.
func (s *MemoryStore) Append(ctx context.Context, authorName, text string, imageURL *string) (*store.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	text, err := store.Validate(text, imageURL)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkLocked(); err != nil {
		return nil, err
	}

	msg := &store.Message{
		ID:         s.nextID,
		AuthorName: store.AuthorOrAnonymous(authorName),
		Text:       text,
		ImageURL:   copyString(imageURL),
		CreatedAt:  s.now(),
	}
	s.nextID++
	s.messages = append(s.messages, msg)

	return copyMessage(msg), nil
}

// Range returns messages with id greater than afterID in append order.
func (s *MemoryStore) Range(ctx context.Context, afterID *int64, limit int) ([]*store.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkLocked(); err != nil {
		return nil, err
	}

	// ids are dense and start at 1, so the position of afterID is afterID itself.
	start := 0
	if afterID != nil && *afterID > 0 {
		start = int(min(*afterID, int64(len(s.messages))))
	}
	end := len(s.messages)
	if limit > 0 && start+limit < end {
		end = start + limit
	}

	out := make([]*store.Message, 0, end-start)
	for _, msg := range s.messages[start:end] {
		out = append(out, copyMessage(msg))
	}
	return out, nil
}

// Ping reports simulated reachability.
func (s *MemoryStore) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.checkLocked()
}

// Close marks the store closed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// ==== UserStore implementation ====

// CreateUser creates a new user with hashed password.
func (s *MemoryStore) CreateUser(_ context.Context, username, passwordHash string) (*store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkLocked(); err != nil {
		return nil, err
	}
	for _, u := range s.users {
		if u.Username == username {
			return nil, fmt.Errorf("insert user: username %q taken", username)
		}
	}
	return s.addUserLocked(&store.User{Username: username, PasswordHash: passwordHash}), nil
}

// CreateGuestUser creates a temporary guest user with session ID.
func (s *MemoryStore) CreateGuestUser(_ context.Context, sessionID string) (*store.User, error) {
	if len(sessionID) < 8 {
		return nil, fmt.Errorf("insert guest user: session id too short")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkLocked(); err != nil {
		return nil, err
	}
	return s.addUserLocked(&store.User{
		Username:  "guest_" + sessionID[:8],
		IsGuest:   true,
		SessionID: sessionID,
	}), nil
}

func (s *MemoryStore) addUserLocked(u *store.User) *store.User {
	u.ID = s.nextUser
	u.CreatedAt = s.now()
	s.nextUser++
	s.users = append(s.users, u)
	cp := *u
	return &cp
}

// GetUserByID retrieves a user by ID.
func (s *MemoryStore) GetUserByID(_ context.Context, id int64) (*store.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("user %d: %w", id, store.ErrNotFound)
}

// GetUserByUsername retrieves a registered user by username.
func (s *MemoryStore) GetUserByUsername(_ context.Context, username string) (*store.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Username == username && !u.IsGuest {
			cp := *u
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("user %q: %w", username, store.ErrNotFound)
}

func copyMessage(m *store.Message) *store.Message {
	cp := *m
	cp.ImageURL = copyString(m.ImageURL)
	return &cp
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
