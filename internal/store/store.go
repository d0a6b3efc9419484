package store

import (
	"context"
	"errors"
	"time"
)

const (
	// MaxTextLength is the maximum message length in characters after trimming.
	MaxTextLength = 1000
	// AnonymousName stamps messages sent without a bound identity.
	AnonymousName = "anonymous"
)

// ErrUnavailable is returned when the backing store cannot be reached.
var ErrUnavailable = errors.New("store unavailable")

// ErrNotFound is returned when a lookup matches no record.
var ErrNotFound = errors.New("not found")

// Message is a record of the append log.
type Message struct {
	ID         int64
	AuthorName string
	Text       string
	ImageURL   *string
	CreatedAt  time.Time
}

// User represents an account known to the identity provider.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	IsGuest      bool
	SessionID    string // For guest user session tracking
	CreatedAt    time.Time
}

// MessageStore is an ordered, insert-only log of chat messages.
type MessageStore interface {
	// Append validates and stores a message, assigning the next id.
	// An empty author is stored as AnonymousName.
	Append(ctx context.Context, authorName, text string, imageURL *string) (*Message, error)

	// Range returns messages in append order.
	// A nil afterID starts at the beginning; limit <= 0 returns everything.
	Range(ctx context.Context, afterID *int64, limit int) ([]*Message, error)

	// Ping reports whether the store is reachable. Failures wrap ErrUnavailable.
	Ping(ctx context.Context) error

	// Close releases the underlying resources.
	Close() error
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser creates a new user with hashed password.
	CreateUser(ctx context.Context, username, passwordHash string) (*User, error)

	// CreateGuestUser creates a temporary guest user with session ID.
	CreateGuestUser(ctx context.Context, sessionID string) (*User, error)

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id int64) (*User, error)

	// GetUserByUsername retrieves a registered (non-guest) user by username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	MessageStore
	UserStore
}
