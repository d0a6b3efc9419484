package http

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-feed/internal/auth"
	"github.com/vovakirdan/wirechat-feed/internal/config"
	"github.com/vovakirdan/wirechat-feed/internal/core"
	"github.com/vovakirdan/wirechat-feed/internal/proto"
	"github.com/vovakirdan/wirechat-feed/internal/store/memory"
)

type testEnv struct {
	server *httptest.Server
	store  *memory.MemoryStore
	feed   *core.Feed
	auth   *auth.Service
}

// startTestServer runs the full router over an in-memory store.
func startTestServer(t *testing.T, mutate func(*config.Config)) *testEnv {
	t.Helper()

	cfg := config.Default()
	cfg.Addr = ":0"
	cfg.Storage.Driver = config.DriverMemory
	if mutate != nil {
		mutate(&cfg)
	}

	disabledLogger := zerolog.Nop()
	st := memory.New()
	feed := core.NewFeed(st, &disabledLogger, cfg.Feed.ReplayBatchSize)
	t.Cleanup(feed.Close)

	authService := auth.NewService(st, &auth.JWTConfig{
		Secret:   []byte("test-secret"),
		Issuer:   "test",
		Audience: "test",
		TTL:      time.Hour,
	})

	server := NewServer(feed, authService, st, &cfg, &disabledLogger)
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testEnv{server: ts, store: st, feed: feed, auth: authService}
}

// wsPeer is a test client whose frames are drained by one background reader,
// so waiting for silence never cancels a read on the socket itself.
type wsPeer struct {
	conn   *websocket.Conn
	frames chan wireOutbound
}

func (e *testEnv) dial(t *testing.T, ctx context.Context) *wsPeer {
	t.Helper()

	wsURL := strings.Replace(e.server.URL, "http", "ws", 1) + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	readCtx, cancel := context.WithCancel(context.Background())
	peer := &wsPeer{conn: conn, frames: make(chan wireOutbound, 64)}
	go func() {
		defer close(peer.frames)
		for {
			var out wireOutbound
			if err := wsjson.Read(readCtx, conn, &out); err != nil {
				return
			}
			select {
			case peer.frames <- out:
			case <-readCtx.Done():
				return
			}
		}
	}()

	t.Cleanup(func() {
		cancel()
		conn.Close(websocket.StatusNormalClosure, "done")
	})
	return peer
}

func sendInbound(t *testing.T, ctx context.Context, peer *wsPeer, typ string, data any) {
	t.Helper()

	var raw json.RawMessage
	if data != nil {
		payload, err := json.Marshal(data)
		if err != nil {
			t.Fatalf("marshal %s: %v", typ, err)
		}
		raw = payload
	}
	if err := wsjson.Write(ctx, peer.conn, proto.Inbound{Type: typ, Data: raw}); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

// wireOutbound mirrors proto.Outbound with Data left raw for decoding.
type wireOutbound struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

func readOutbound(t *testing.T, ctx context.Context, peer *wsPeer) wireOutbound {
	t.Helper()

	select {
	case out, ok := <-peer.frames:
		if !ok {
			t.Fatalf("connection closed while waiting for a frame")
		}
		return out
	case <-ctx.Done():
		t.Fatalf("read outbound: %v", ctx.Err())
	}
	return wireOutbound{}
}

func mustEvent(t *testing.T, ctx context.Context, peer *wsPeer, event string) wireOutbound {
	t.Helper()

	out := readOutbound(t, ctx, peer)
	if out.Type != proto.OutboundTypeEvent || out.Event != event {
		t.Fatalf("expected event %q, got %+v", event, out)
	}
	return out
}

func mustError(t *testing.T, ctx context.Context, peer *wsPeer, code string) {
	t.Helper()

	out := readOutbound(t, ctx, peer)
	if out.Type != proto.OutboundTypeError || out.Error == nil || out.Error.Code != code {
		t.Fatalf("expected error %q, got %+v", code, out)
	}
}

func decodeMessage(t *testing.T, out wireOutbound) proto.EventMessageData {
	t.Helper()

	var msg proto.EventMessageData
	if err := json.Unmarshal(out.Data, &msg); err != nil {
		t.Fatalf("unmarshal message: %v", err)
	}
	return msg
}

func mustMessageEvent(t *testing.T, ctx context.Context, peer *wsPeer) proto.EventMessageData {
	t.Helper()
	return decodeMessage(t, mustEvent(t, ctx, peer, proto.EventMessage))
}

func mustSent(t *testing.T, ctx context.Context, peer *wsPeer) proto.EventSentData {
	t.Helper()

	out := mustEvent(t, ctx, peer, proto.EventSent)
	var sent proto.EventSentData
	if err := json.Unmarshal(out.Data, &sent); err != nil {
		t.Fatalf("unmarshal sent: %v", err)
	}
	return sent
}

// collectEvents reads n frames and indexes them by event name.
func collectEvents(t *testing.T, ctx context.Context, peer *wsPeer, n int) map[string]wireOutbound {
	t.Helper()

	got := make(map[string]wireOutbound, n)
	for range n {
		out := readOutbound(t, ctx, peer)
		got[out.Event] = out
	}
	return got
}

// expectQuiet asserts that nothing arrives on peer within window.
// The connection stays usable afterwards.
func expectQuiet(t *testing.T, peer *wsPeer, window time.Duration) {
	t.Helper()

	select {
	case out, ok := <-peer.frames:
		if ok {
			t.Fatalf("unexpected outbound: %+v", out)
		}
		t.Fatalf("connection closed while expecting silence")
	case <-time.After(window):
	}
}
