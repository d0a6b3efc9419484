package http

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/vovakirdan/wirechat-feed/internal/config"
	"github.com/vovakirdan/wirechat-feed/internal/proto"
	"github.com/vovakirdan/wirechat-feed/internal/store"
)

func TestHealthEndpoint(t *testing.T) {
	env := startTestServer(t, nil)

	resp, err := env.server.Client().Get(env.server.URL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

func TestWebSocketHelloBindsIdentity(t *testing.T) {
	env := startTestServer(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tests := []struct {
		name string
		user string
		want string
	}{
		{name: "named", user: "  alice  ", want: "alice"},
		{name: "blank", user: "   ", want: store.AnonymousName},
		{name: "omitted", user: "", want: store.AnonymousName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := env.dial(t, ctx)
			sendInbound(t, ctx, conn, proto.InboundTypeHello, proto.HelloData{User: tt.user})

			out := mustEvent(t, ctx, conn, proto.EventReady)
			var ready proto.EventReadyData
			if err := json.Unmarshal(out.Data, &ready); err != nil {
				t.Fatalf("unmarshal ready: %v", err)
			}
			if ready.User != tt.want {
				t.Fatalf("expected user %q, got %q", tt.want, ready.User)
			}
			if ready.Protocol != proto.ProtocolVersion {
				t.Fatalf("expected protocol %d, got %d", proto.ProtocolVersion, ready.Protocol)
			}
		})
	}
}

func TestWebSocketRejectsUnsupportedProtocol(t *testing.T) {
	env := startTestServer(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := env.dial(t, ctx)
	sendInbound(t, ctx, conn, proto.InboundTypeHello, proto.HelloData{User: "alice", Protocol: proto.ProtocolVersion + 1})
	mustError(t, ctx, conn, proto.ErrCodeUnsupportedProtocol)
}

func TestWebSocketReplayThenLive(t *testing.T) {
	env := startTestServer(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for i := range 3 {
		if _, err := env.feed.Append(ctx, "history", fmt.Sprintf("old %d", i), nil); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	reader := env.dial(t, ctx)
	sendInbound(t, ctx, reader, proto.InboundTypeSubscribe, nil)
	mustEvent(t, ctx, reader, proto.EventSubscribed)

	for i := range 3 {
		msg := mustMessageEvent(t, ctx, reader)
		if msg.ID != int64(i+1) || msg.User != "history" {
			t.Fatalf("replay %d: unexpected message %+v", i, msg)
		}
	}

	writer := env.dial(t, ctx)
	sendInbound(t, ctx, writer, proto.InboundTypeHello, proto.HelloData{User: "bob"})
	mustEvent(t, ctx, writer, proto.EventReady)
	sendInbound(t, ctx, writer, proto.InboundTypeMsg, proto.MsgData{Text: "  hello there  "})
	if sent := mustSent(t, ctx, writer); sent.ID != 4 {
		t.Fatalf("expected sent id 4, got %d", sent.ID)
	}

	live := mustMessageEvent(t, ctx, reader)
	if live.ID != 4 || live.User != "bob" || live.Text != "hello there" {
		t.Fatalf("unexpected live message: %+v", live)
	}
	expectQuiet(t, reader, 100*time.Millisecond)
}

func TestWebSocketAnonymousSender(t *testing.T) {
	env := startTestServer(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := env.dial(t, ctx)
	sendInbound(t, ctx, conn, proto.InboundTypeSubscribe, nil)
	mustEvent(t, ctx, conn, proto.EventSubscribed)

	sendInbound(t, ctx, conn, proto.InboundTypeMsg, proto.MsgData{Text: "who am i"})

	// The acknowledgement and the live copy travel on different paths.
	got := collectEvents(t, ctx, conn, 2)
	out, ok := got[proto.EventMessage]
	if !ok {
		t.Fatalf("expected a message event, got %+v", got)
	}
	if _, ok := got[proto.EventSent]; !ok {
		t.Fatalf("expected a sent event, got %+v", got)
	}
	if msg := decodeMessage(t, out); msg.User != store.AnonymousName {
		t.Fatalf("expected anonymous author, got %q", msg.User)
	}
}

func TestWebSocketUnsubscribeSilences(t *testing.T) {
	env := startTestServer(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := env.dial(t, ctx)
	sendInbound(t, ctx, conn, proto.InboundTypeSubscribe, nil)
	mustEvent(t, ctx, conn, proto.EventSubscribed)
	sendInbound(t, ctx, conn, proto.InboundTypeUnsubscribe, nil)
	mustEvent(t, ctx, conn, proto.EventUnsubscribed)

	if _, err := env.feed.Append(ctx, "alice", "nobody listens", nil); err != nil {
		t.Fatalf("append: %v", err)
	}
	expectQuiet(t, conn, 100*time.Millisecond)
}

func TestWebSocketMessageValidation(t *testing.T) {
	env := startTestServer(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := env.dial(t, ctx)
	sendInbound(t, ctx, conn, proto.InboundTypeMsg, proto.MsgData{Text: strings.Repeat("x", store.MaxTextLength+1)})
	mustError(t, ctx, conn, "validation_failed")

	// Blank input is dropped without a reply.
	sendInbound(t, ctx, conn, proto.InboundTypeMsg, proto.MsgData{Text: "   "})
	expectQuiet(t, conn, 100*time.Millisecond)

	all, err := env.store.Range(ctx, nil, 0)
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("expected nothing stored, got %d messages", len(all))
	}
}

func TestWebSocketUnknownType(t *testing.T) {
	env := startTestServer(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := env.dial(t, ctx)
	sendInbound(t, ctx, conn, "bogus", nil)
	mustError(t, ctx, conn, proto.ErrCodeInvalidMessage)
}

func TestWebSocketRateLimit(t *testing.T) {
	env := startTestServer(t, func(cfg *config.Config) {
		cfg.Feed.RateLimitPerMinute = 2
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := env.dial(t, ctx)
	for range 2 {
		sendInbound(t, ctx, conn, proto.InboundTypeMsg, proto.MsgData{Text: "hi"})
		mustSent(t, ctx, conn)
	}
	sendInbound(t, ctx, conn, proto.InboundTypeMsg, proto.MsgData{Text: "one too many"})
	mustError(t, ctx, conn, proto.ErrCodeRateLimited)
}

func TestWebSocketTokenHello(t *testing.T) {
	env := startTestServer(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	identity, err := env.auth.Register(ctx, "carol", "secret123")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	conn := env.dial(t, ctx)
	sendInbound(t, ctx, conn, proto.InboundTypeHello, proto.HelloData{User: "impostor", Token: identity.Token})
	out := mustEvent(t, ctx, conn, proto.EventReady)
	var ready proto.EventReadyData
	if err := json.Unmarshal(out.Data, &ready); err != nil {
		t.Fatalf("unmarshal ready: %v", err)
	}
	if ready.User != "carol" {
		t.Fatalf("token identity must win, got %q", ready.User)
	}

	sendInbound(t, ctx, conn, proto.InboundTypeHello, proto.HelloData{Token: "not-a-token"})
	mustError(t, ctx, conn, "unauthorized")
}

func TestWebSocketSignOut(t *testing.T) {
	env := startTestServer(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := env.dial(t, ctx)
	sendInbound(t, ctx, conn, proto.InboundTypeHello, proto.HelloData{User: "dave"})
	mustEvent(t, ctx, conn, proto.EventReady)
	sendInbound(t, ctx, conn, proto.InboundTypeSubscribe, nil)
	mustEvent(t, ctx, conn, proto.EventSubscribed)

	sendInbound(t, ctx, conn, proto.InboundTypeSignOut, nil)
	mustEvent(t, ctx, conn, proto.EventSignedOut)

	if _, err := env.feed.Append(ctx, "eve", "after signout", nil); err != nil {
		t.Fatalf("append: %v", err)
	}
	expectQuiet(t, conn, 100*time.Millisecond)

	// The socket stays usable after a silent window.
	sendInbound(t, ctx, conn, proto.InboundTypeMsg, proto.MsgData{Text: "still here"})
	mustSent(t, ctx, conn)

	all, err := env.store.Range(ctx, nil, 0)
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	last := all[len(all)-1]
	if last.Text != "still here" || last.AuthorName != store.AnonymousName {
		t.Fatalf("expected anonymous message after signout, got %+v", last)
	}
}

func TestWebSocketStoreOutageDisconnects(t *testing.T) {
	env := startTestServer(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	reader := env.dial(t, ctx)
	sendInbound(t, ctx, reader, proto.InboundTypeSubscribe, nil)
	mustEvent(t, ctx, reader, proto.EventSubscribed)

	env.store.SetReachable(false)

	writer := env.dial(t, ctx)
	sendInbound(t, ctx, writer, proto.InboundTypeMsg, proto.MsgData{Text: "into the void"})
	mustError(t, ctx, writer, "disconnected")

	mustEvent(t, ctx, reader, proto.EventDisconnected)
	expectQuiet(t, reader, 100*time.Millisecond)

	// Subscribing again while the store is down reports the outage.
	sendInbound(t, ctx, reader, proto.InboundTypeSubscribe, nil)
	mustError(t, ctx, reader, "disconnected")
}

func TestHandlerServesUpgradeBesideRouter(t *testing.T) {
	env := startTestServer(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := env.dial(t, ctx)
	sendInbound(t, ctx, conn, proto.InboundTypeHello, proto.HelloData{User: "frank"})
	mustEvent(t, ctx, conn, proto.EventReady)

	resp, err := env.server.Client().Get(env.server.URL + "/api/messages")
	if err != nil {
		t.Fatalf("GET messages: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
}
