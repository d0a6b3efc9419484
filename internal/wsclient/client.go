// Package wsclient is a WebSocket client of the live feed.
package wsclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-feed/internal/proto"
)

const eventBuffer = 64

// ErrClosed is returned when writing to a closed client.
var ErrClosed = errors.New("wsclient: connection closed")

// Event is one decoded outbound frame. Exactly one of the payload fields is
// set for events that carry data.
type Event struct {
	Type  string
	Event string

	Ready        *proto.EventReadyData
	Message      *proto.EventMessageData
	Disconnected *proto.EventDisconnectedData
	Sent         *proto.EventSentData
	Error        *proto.Error
}

// IsError reports whether the frame is a protocol error.
func (e Event) IsError() bool {
	return e.Type == proto.OutboundTypeError
}

type wireOutbound struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

// Client owns one socket. Writes may be issued from any goroutine; decoded
// frames arrive on Events until the connection ends.
type Client struct {
	conn   *websocket.Conn
	events chan Event
	log    *zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error
}

// Dial connects to a feed endpoint. addr may use http(s) or ws(s) schemes;
// a missing /ws path is appended.
func Dial(ctx context.Context, addr string, logger *zerolog.Logger) (*Client, error) {
	conn, _, err := websocket.Dial(ctx, normalizeURL(addr), nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	runCtx, cancel := context.WithCancel(context.Background())
	c := &Client{
		conn:   conn,
		events: make(chan Event, eventBuffer),
		log:    logger,
		ctx:    runCtx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func normalizeURL(addr string) string {
	switch {
	case strings.HasPrefix(addr, "http://"):
		addr = "ws://" + strings.TrimPrefix(addr, "http://")
	case strings.HasPrefix(addr, "https://"):
		addr = "wss://" + strings.TrimPrefix(addr, "https://")
	case !strings.HasPrefix(addr, "ws://") && !strings.HasPrefix(addr, "wss://"):
		addr = "ws://" + addr
	}
	if !strings.HasSuffix(addr, "/ws") {
		addr = strings.TrimSuffix(addr, "/") + "/ws"
	}
	return addr
}

// Events returns the channel of decoded frames. It is closed when the
// connection ends; Err then reports why.
func (c *Client) Events() <-chan Event {
	return c.events
}

// Err returns the error that ended the read loop, or nil on a normal close.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Hello binds user, or the identity carried by token when non-empty.
func (c *Client) Hello(ctx context.Context, user, token string) error {
	return c.write(ctx, proto.InboundTypeHello, proto.HelloData{
		User:     user,
		Token:    token,
		Protocol: proto.ProtocolVersion,
	})
}

// SignOut clears the bound identity and any subscription.
func (c *Client) SignOut(ctx context.Context) error {
	return c.write(ctx, proto.InboundTypeSignOut, nil)
}

// Subscribe asks for a replay of the history followed by the live tail.
func (c *Client) Subscribe(ctx context.Context) error {
	return c.write(ctx, proto.InboundTypeSubscribe, nil)
}

func (c *Client) Unsubscribe(ctx context.Context) error {
	return c.write(ctx, proto.InboundTypeUnsubscribe, nil)
}

// Send posts text as the bound identity. The server answers with a sent
// event carrying the assigned id, or an error frame.
func (c *Client) Send(ctx context.Context, text string) error {
	return c.write(ctx, proto.InboundTypeMsg, proto.MsgData{Text: text})
}

// WaitFor drains events until one named event or an error frame arrives.
func (c *Client) WaitFor(ctx context.Context, event string) (Event, error) {
	for {
		select {
		case ev, ok := <-c.events:
			if !ok {
				if err := c.Err(); err != nil {
					return Event{}, err
				}
				return Event{}, ErrClosed
			}
			if ev.IsError() {
				return ev, fmt.Errorf("%s: %s", ev.Error.Code, ev.Error.Msg)
			}
			if ev.Event == event {
				return ev, nil
			}
		case <-ctx.Done():
			return Event{}, ctx.Err()
		}
	}
}

// Close ends the connection with a normal closure.
func (c *Client) Close() error {
	err := c.conn.Close(websocket.StatusNormalClosure, "bye")
	c.cancel()
	<-c.done
	if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
		return nil
	}
	return err
}

func (c *Client) write(ctx context.Context, typ string, data any) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	in := proto.Inbound{Type: typ}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", typ, err)
		}
		in.Data = raw
	}
	if err := wsjson.Write(ctx, c.conn, in); err != nil {
		return fmt.Errorf("write %s: %w", typ, err)
	}
	return nil
}

func (c *Client) readLoop() {
	defer close(c.done)
	defer close(c.events)

	for {
		var out wireOutbound
		if err := wsjson.Read(c.ctx, c.conn, &out); err != nil {
			c.finish(err)
			return
		}

		ev, err := decode(out)
		if err != nil {
			c.log.Warn().Err(err).Str("event", out.Event).Msg("skip malformed frame")
			continue
		}

		select {
		case c.events <- ev:
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Client) finish(err error) {
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		err = nil
	}
	if errors.Is(err, context.Canceled) {
		err = nil
	}

	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
	if err != nil {
		c.log.Debug().Err(err).Msg("ws read loop ended")
	}
}

func decode(out wireOutbound) (Event, error) {
	ev := Event{Type: out.Type, Event: out.Event, Error: out.Error}
	if out.Type == proto.OutboundTypeError {
		if ev.Error == nil {
			ev.Error = &proto.Error{Code: proto.ErrCodeInvalidMessage}
		}
		return ev, nil
	}

	if len(out.Data) == 0 || string(out.Data) == "null" {
		return ev, nil
	}

	var target any
	switch out.Event {
	case proto.EventReady:
		ev.Ready = &proto.EventReadyData{}
		target = ev.Ready
	case proto.EventMessage:
		ev.Message = &proto.EventMessageData{}
		target = ev.Message
	case proto.EventDisconnected:
		ev.Disconnected = &proto.EventDisconnectedData{}
		target = ev.Disconnected
	case proto.EventSent:
		ev.Sent = &proto.EventSentData{}
		target = ev.Sent
	default:
		return ev, nil
	}
	if err := json.Unmarshal(out.Data, target); err != nil {
		return Event{}, fmt.Errorf("decode %s: %w", out.Event, err)
	}
	return ev, nil
}
