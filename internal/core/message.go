package core

import (
	"time"

	"github.com/vovakirdan/wirechat-feed/internal/store"
)

// Message is the domain model for a chat message.
type Message struct {
	ID        int64
	From      string
	Text      string
	ImageURL  *string
	CreatedAt time.Time
}

func messageFromStore(m *store.Message) Message {
	return Message{
		ID:        m.ID,
		From:      m.AuthorName,
		Text:      m.Text,
		ImageURL:  m.ImageURL,
		CreatedAt: m.CreatedAt,
	}
}
