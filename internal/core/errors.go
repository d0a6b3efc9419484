package core

import (
	"errors"
	"fmt"

	"github.com/vovakirdan/wirechat-feed/internal/store"
)

// Error codes for domain errors.
const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeValidationFailed = "validation_failed"
	ErrCodeDisconnected     = "disconnected"
	ErrCodeInternal         = "internal"
)

var (
	ErrFeedClosed    = errors.New("feed closed")
	ErrNotSubscribed = errors.New("not subscribed")
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
	Err     error
}

func (e *CoreError) Error() string {
	return e.Message
}

func (e *CoreError) Unwrap() error {
	return e.Err
}

func coreError(code, msg string, err error) *CoreError {
	return &CoreError{Code: code, Message: msg, Err: err}
}

// DisconnectedError is the terminal signal delivered when the store becomes unreachable.
type DisconnectedError struct {
	Cause error
}

func (e *DisconnectedError) Error() string {
	if e.Cause == nil {
		return "feed disconnected"
	}
	return fmt.Sprintf("feed disconnected: %v", e.Cause)
}

func (e *DisconnectedError) Unwrap() error {
	return e.Cause
}

// toCoreError maps store and feed failures onto protocol-visible codes.
func toCoreError(err error) *CoreError {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce
	}

	var vErr *store.ValidationError
	var dErr *DisconnectedError
	switch {
	case errors.As(err, &vErr):
		return coreError(ErrCodeValidationFailed, vErr.Error(), err)
	case errors.As(err, &dErr), errors.Is(err, store.ErrUnavailable):
		return coreError(ErrCodeDisconnected, "message store unavailable", err)
	default:
		return coreError(ErrCodeInternal, "internal error", err)
	}
}

// ErrorCode extracts the protocol code of err, or ErrCodeInternal.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	return toCoreError(err).Code
}
