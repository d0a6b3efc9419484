package core

import (
	"context"
	"strings"
	"sync"
)

// Client is the facade a UI talks to: it stamps outgoing messages with the
// session identity and owns at most one feed subscription.
type Client struct {
	ID string

	feed    *Feed
	session *Session

	mu  sync.Mutex
	sub *Subscription
}

// NewClient constructs a client over feed. A nil session starts unbound.
func NewClient(id string, feed *Feed, session *Session) *Client {
	if session == nil {
		session = NewSession()
	}
	return &Client{
		ID:      id,
		feed:    feed,
		session: session,
	}
}

// Session returns the identity binder of this client.
func (c *Client) Session() *Session {
	return c.session
}

// Send trims raw and appends it as the current identity.
// Blank input is a no-op and returns a nil message and nil error.
func (c *Client) Send(ctx context.Context, raw string) (*Message, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil, nil
	}

	msg, err := c.feed.Append(ctx, c.session.CurrentName(), text, nil)
	if err != nil {
		return nil, toCoreError(err)
	}
	return &msg, nil
}

// Subscribe replaces the current subscription with a new one delivering to h.
// Handlers must not call Subscribe or Unsubscribe on the same client.
func (c *Client) Subscribe(ctx context.Context, h Handler) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sub != nil {
		c.feed.Unsubscribe(c.sub)
		c.sub = nil
	}

	sub, err := c.feed.Subscribe(ctx, h)
	if err != nil {
		return toCoreError(err)
	}
	c.sub = sub
	return nil
}

// Unsubscribe ends the current subscription, if any. After it returns the
// previous handler receives nothing more.
func (c *Client) Unsubscribe() {
	c.mu.Lock()
	sub := c.sub
	c.sub = nil
	c.mu.Unlock()

	c.feed.Unsubscribe(sub)
}

// Subscribed reports whether the client has a live subscription.
// A subscription ended by a disconnect no longer counts.
func (c *Client) Subscribed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sub == nil {
		return false
	}
	select {
	case <-c.sub.Done():
		return false
	default:
		return !c.sub.closed.Load()
	}
}
