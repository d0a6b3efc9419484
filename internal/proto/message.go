package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

const (
	ProtocolVersion = 1

	InboundTypeHello       = "hello"
	InboundTypeSignOut     = "signout"
	InboundTypeSubscribe   = "subscribe"
	InboundTypeUnsubscribe = "unsubscribe"
	InboundTypeMsg         = "msg"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	EventReady        = "ready"
	EventMessage      = "message"
	EventDisconnected = "disconnected"
	EventSignedOut    = "signed_out"
	EventSent         = "sent"
	EventSubscribed   = "subscribed"
	EventUnsubscribed = "unsubscribed"
)

// Protocol-level error codes in addition to the core ones.
const (
	ErrCodeInvalidMessage      = "invalid_message"
	ErrCodeRateLimited         = "rate_limited"
	ErrCodeUnsupportedProtocol = "unsupported_protocol"
)

// HelloData is sent by the client to introduce itself.
// A token, when present, takes precedence over User.
type HelloData struct {
	User     string `json:"user,omitempty"`
	Token    string `json:"token,omitempty"`
	Protocol int    `json:"protocol,omitempty"`
}

// MsgData is a chat message from the client.
type MsgData struct {
	Text string `json:"text"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// EventReadyData acknowledges a hello with the identity now bound.
type EventReadyData struct {
	User     string `json:"user"`
	Protocol int    `json:"protocol"`
}

// EventMessageData is one message of the feed, replayed or live.
type EventMessageData struct {
	ID       int64   `json:"id"`
	User     string  `json:"user"`
	Text     string  `json:"text,omitempty"`
	ImageURL *string `json:"image_url,omitempty"`
	TS       int64   `json:"ts"`
}

// EventDisconnectedData is the terminal signal of a subscription.
type EventDisconnectedData struct {
	Reason string `json:"reason"`
}

// EventSentData acknowledges an accepted msg with the id the store assigned.
type EventSentData struct {
	ID int64 `json:"id"`
	TS int64 `json:"ts"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
