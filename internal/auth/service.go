package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/vovakirdan/wirechat-feed/internal/store"
)

var (
	// ErrInvalidCredentials is returned when username/password don't match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserExists is returned when trying to register with existing username.
	ErrUserExists = errors.New("user already exists")
	// ErrInvalidUsername is returned when username doesn't meet constraints.
	ErrInvalidUsername = errors.New("invalid username")
	// ErrInvalidPassword is returned when password doesn't meet constraints.
	ErrInvalidPassword = errors.New("invalid password")
)

// Identity is what a successful sign-in yields to the chat core.
type Identity struct {
	UserID      int64
	DisplayName string
	IsGuest     bool
	Token       string
}

// Service is the identity provider: it signs users in and issues tokens
// whose display name the chat core binds to a session.
type Service struct {
	store     store.UserStore
	jwtConfig *JWTConfig
}

// NewService creates a new authentication service.
func NewService(userStore store.UserStore, jwtConfig *JWTConfig) *Service {
	return &Service{
		store:     userStore,
		jwtConfig: jwtConfig,
	}
}

// Register creates a user with a hashed password and signs them in.
func (s *Service) Register(ctx context.Context, username, password string) (*Identity, error) {
	username = strings.TrimSpace(username)
	if n := utf8.RuneCountInString(username); n < 3 || n > 32 {
		return nil, ErrInvalidUsername
	}
	if len(password) < 6 {
		return nil, ErrInvalidPassword
	}

	if _, err := s.store.GetUserByUsername(ctx, username); err == nil {
		return nil, ErrUserExists
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	hashed, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	user, err := s.store.CreateUser(ctx, username, hashed)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	return s.issue(user)
}

// Login validates credentials and signs the user in.
func (s *Service) Login(ctx context.Context, username, password string) (*Identity, error) {
	user, err := s.store.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if !ComparePassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	return s.issue(user)
}

// CreateGuestUser creates a temporary guest identity.
func (s *Service) CreateGuestUser(ctx context.Context) (*Identity, string, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, "", fmt.Errorf("generate session ID: %w", err)
	}

	user, err := s.store.CreateGuestUser(ctx, sessionID)
	if err != nil {
		return nil, "", fmt.Errorf("create guest user: %w", err)
	}

	id, err := s.issue(user)
	if err != nil {
		return nil, "", err
	}
	return id, sessionID, nil
}

// Authenticate validates a token and returns the identity it carries.
func (s *Service) Authenticate(tokenString string) (*Identity, error) {
	claims, err := ValidateToken(s.jwtConfig, tokenString)
	if err != nil {
		return nil, err
	}
	return &Identity{
		UserID:      claims.UserID,
		DisplayName: claims.DisplayName,
		IsGuest:     claims.IsGuest,
		Token:       tokenString,
	}, nil
}

func (s *Service) issue(user *store.User) (*Identity, error) {
	token, err := GenerateToken(s.jwtConfig, user.ID, user.Username, user.IsGuest)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	return &Identity{
		UserID:      user.ID,
		DisplayName: user.Username,
		IsGuest:     user.IsGuest,
		Token:       token,
	}, nil
}

// generateSessionID generates a random session ID for guest users.
func generateSessionID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
