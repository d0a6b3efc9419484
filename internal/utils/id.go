package utils

import "github.com/google/uuid"

// NewID returns a random identifier for connections and subscriptions.
func NewID() string {
	return uuid.NewString()
}
