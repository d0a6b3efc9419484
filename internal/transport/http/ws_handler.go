package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	stdhttp "net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-feed/internal/auth"
	"github.com/vovakirdan/wirechat-feed/internal/core"
	"github.com/vovakirdan/wirechat-feed/internal/proto"
	"github.com/vovakirdan/wirechat-feed/internal/utils"
)

const (
	// maxFrameBytes bounds inbound frames; a full-length message is at most 4 KiB of UTF-8.
	maxFrameBytes = 64 << 10
	outboundQueue = 64
)

// WSHandler upgrades HTTP connections and bridges them to a core.Client.
type WSHandler struct {
	feed      *core.Feed
	auth      *auth.Service
	rateLimit int
	log       *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler. authService may be nil, in
// which case token hellos are rejected.
func NewWSHandler(feed *core.Feed, authService *auth.Service, rateLimit int, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{feed: feed, auth: authService, rateLimit: rateLimit, log: logger}
}

// connection is the per-socket state shared by the read and write loops.
type connection struct {
	client  *core.Client
	out     chan proto.Outbound
	limiter *rateLimiter
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")
	conn.SetReadLimit(maxFrameBytes)

	c := &connection{
		client:  core.NewClient(utils.NewID(), h.feed, nil),
		out:     make(chan proto.Outbound, outboundQueue),
		limiter: newRateLimiter(h.rateLimit),
	}
	h.log.Debug().Str("client_id", c.client.ID).Msg("ws client connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, c)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, c)
	}()

	err = <-errCh
	cancel() // stop the other goroutine and release blocked feed callbacks
	<-errCh
	c.client.Unsubscribe()

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != -1 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Str("client_id", c.client.ID).Msg("ws connection closed with error")
		}
	}

	h.log.Debug().Str("client_id", c.client.ID).Msg("ws client disconnected")
	conn.Close(status, reason)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, c *connection) error {
	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, conn, &inbound); err != nil {
			return err
		}

		for _, reply := range h.handleInbound(ctx, c, inbound) {
			if !send(ctx, c.out, reply) {
				return ctx.Err()
			}
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, c *connection) error {
	for {
		select {
		case out := <-c.out:
			if err := wsjson.Write(ctx, conn, out); err != nil {
				h.log.Error().Err(err).Str("client_id", c.client.ID).Msg("write ws outbound")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// handleInbound executes one client request and returns the replies to send.
func (h *WSHandler) handleInbound(ctx context.Context, c *connection, inbound proto.Inbound) []proto.Outbound {
	switch inbound.Type {
	case proto.InboundTypeHello:
		var hello proto.HelloData
		if err := decodeData(inbound.Data, &hello); err != nil {
			return []proto.Outbound{outboundError(proto.ErrCodeInvalidMessage, "malformed hello")}
		}
		return []proto.Outbound{h.hello(c, hello)}

	case proto.InboundTypeSignOut:
		c.client.Session().Clear()
		c.client.Unsubscribe()
		return []proto.Outbound{outboundEvent(proto.EventSignedOut, nil)}

	case proto.InboundTypeSubscribe:
		return h.subscribe(ctx, c)

	case proto.InboundTypeUnsubscribe:
		c.client.Unsubscribe()
		return []proto.Outbound{outboundEvent(proto.EventUnsubscribed, nil)}

	case proto.InboundTypeMsg:
		if !c.limiter.allow() {
			return []proto.Outbound{outboundError(proto.ErrCodeRateLimited, "too many messages")}
		}
		var msg proto.MsgData
		if err := decodeData(inbound.Data, &msg); err != nil {
			return []proto.Outbound{outboundError(proto.ErrCodeInvalidMessage, "malformed msg")}
		}
		sent, err := c.client.Send(ctx, msg.Text)
		if err != nil {
			h.log.Debug().Err(err).Str("client_id", c.client.ID).Msg("send rejected")
			return []proto.Outbound{outboundFromError(err)}
		}
		if sent == nil {
			return nil
		}
		return []proto.Outbound{outboundSent(*sent)}

	default:
		return []proto.Outbound{outboundError(proto.ErrCodeInvalidMessage, "unknown message type")}
	}
}

func (h *WSHandler) hello(c *connection, hello proto.HelloData) proto.Outbound {
	if hello.Protocol != 0 && hello.Protocol != proto.ProtocolVersion {
		return outboundError(proto.ErrCodeUnsupportedProtocol, "unsupported protocol version")
	}

	session := c.client.Session()
	if hello.Token != "" {
		if h.auth == nil {
			return outboundError(core.ErrCodeUnauthorized, "token authentication disabled")
		}
		identity, err := h.auth.Authenticate(hello.Token)
		if err != nil {
			h.log.Debug().Err(err).Str("client_id", c.client.ID).Msg("hello token rejected")
			return outboundError(core.ErrCodeUnauthorized, "invalid token")
		}
		session.Bind(identity.DisplayName)
	} else {
		session.Bind(hello.User)
	}

	return outboundEvent(proto.EventReady, proto.EventReadyData{
		User:     session.CurrentName(),
		Protocol: proto.ProtocolVersion,
	})
}

func (h *WSHandler) subscribe(ctx context.Context, c *connection) []proto.Outbound {
	// Feed callbacks hold back until the acknowledgement is queued ahead of them.
	acked := make(chan struct{})
	handler := core.Handler{
		OnMessage: func(msg core.Message) {
			if waitAck(ctx, acked) {
				send(ctx, c.out, outboundMessage(msg))
			}
		},
		OnDisconnected: func(err error) {
			if waitAck(ctx, acked) {
				send(ctx, c.out, outboundDisconnected(err))
			}
		},
	}

	if err := c.client.Subscribe(ctx, handler); err != nil {
		close(acked)
		h.log.Warn().Err(err).Str("client_id", c.client.ID).Msg("subscribe failed")
		return []proto.Outbound{outboundFromError(err)}
	}

	send(ctx, c.out, outboundEvent(proto.EventSubscribed, nil))
	close(acked)
	return nil
}

func waitAck(ctx context.Context, acked <-chan struct{}) bool {
	select {
	case <-acked:
		return true
	case <-ctx.Done():
		return false
	}
}

func send(ctx context.Context, out chan<- proto.Outbound, msg proto.Outbound) bool {
	select {
	case out <- msg:
		return true
	case <-ctx.Done():
		return false
	}
}

func decodeData(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}
