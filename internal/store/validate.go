package store

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// ValidationError reports a message rejected before it reached the log.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Validate checks the message shape shared by every MessageStore.
// It returns the trimmed text to store.
func Validate(text string, imageURL *string) (string, error) {
	text = strings.TrimSpace(text)
	hasImage := imageURL != nil && strings.TrimSpace(*imageURL) != ""

	if text == "" && !hasImage {
		return "", &ValidationError{Field: "text", Reason: "text or image is required"}
	}
	if n := utf8.RuneCountInString(text); n > MaxTextLength {
		return "", &ValidationError{
			Field:  "text",
			Reason: fmt.Sprintf("length %d exceeds %d characters", n, MaxTextLength),
		}
	}
	return text, nil
}

// AuthorOrAnonymous returns the trimmed author, or AnonymousName when blank.
func AuthorOrAnonymous(author string) string {
	author = strings.TrimSpace(author)
	if author == "" {
		return AnonymousName
	}
	return author
}
