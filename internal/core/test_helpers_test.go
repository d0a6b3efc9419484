package core

import (
	"testing"
	"time"

	"github.com/vovakirdan/wirechat-feed/internal/store/memory"
)

type recorder struct {
	msgs chan Message
	disc chan error
}

func newRecorder() *recorder {
	return &recorder{
		msgs: make(chan Message, 1024),
		disc: make(chan error, 8),
	}
}

func (r *recorder) handler() Handler {
	return Handler{
		OnMessage:      func(m Message) { r.msgs <- m },
		OnDisconnected: func(err error) { r.disc <- err },
	}
}

func newTestFeed(t *testing.T) (*Feed, *memory.MemoryStore) {
	t.Helper()

	st := memory.New()
	feed := NewFeed(st, nil, 4) // small batches exercise paged replay
	t.Cleanup(feed.Close)
	return feed, st
}

func mustMessages(t *testing.T, ch <-chan Message, n int) []Message {
	t.Helper()

	out := make([]Message, 0, n)
	deadline := time.After(2 * time.Second)
	for len(out) < n {
		select {
		case m := <-ch:
			out = append(out, m)
		case <-deadline:
			t.Fatalf("expected %d messages, received %d", n, len(out))
		}
	}
	return out
}

func mustDisconnect(t *testing.T, ch <-chan error) error {
	t.Helper()

	select {
	case err := <-ch:
		return err
	case <-time.After(2 * time.Second):
		t.Fatalf("expected disconnect signal not received")
		return nil
	}
}

func expectNoMessage(t *testing.T, ch <-chan Message, window time.Duration) {
	t.Helper()

	select {
	case m := <-ch:
		t.Fatalf("unexpected message delivered: %+v", m)
	case <-time.After(window):
	}
}

func expectNoDisconnect(t *testing.T, ch <-chan error, window time.Duration) {
	t.Helper()

	select {
	case err := <-ch:
		t.Fatalf("unexpected extra disconnect signal: %v", err)
	case <-time.After(window):
	}
}

func assertConsecutiveIDs(t *testing.T, msgs []Message, first int64) {
	t.Helper()

	for i, m := range msgs {
		if want := first + int64(i); m.ID != want {
			t.Fatalf("index %d: expected id %d, got %d", i, want, m.ID)
		}
	}
}
