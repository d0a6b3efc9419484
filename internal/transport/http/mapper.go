package http

import (
	"errors"

	"github.com/vovakirdan/wirechat-feed/internal/core"
	"github.com/vovakirdan/wirechat-feed/internal/proto"
)

func eventMessageFromCore(msg core.Message) proto.EventMessageData {
	return proto.EventMessageData{
		ID:       msg.ID,
		User:     msg.From,
		Text:     msg.Text,
		ImageURL: msg.ImageURL,
		TS:       msg.CreatedAt.Unix(),
	}
}

func outboundMessage(msg core.Message) proto.Outbound {
	return proto.Outbound{
		Type:  proto.OutboundTypeEvent,
		Event: proto.EventMessage,
		Data:  eventMessageFromCore(msg),
	}
}

func outboundEvent(event string, data any) proto.Outbound {
	return proto.Outbound{
		Type:  proto.OutboundTypeEvent,
		Event: event,
		Data:  data,
	}
}

func outboundSent(msg core.Message) proto.Outbound {
	return outboundEvent(proto.EventSent, proto.EventSentData{ID: msg.ID, TS: msg.CreatedAt.Unix()})
}

func outboundDisconnected(err error) proto.Outbound {
	reason := "store unavailable"
	var dErr *core.DisconnectedError
	if errors.As(err, &dErr) && dErr.Cause != nil {
		reason = dErr.Cause.Error()
	}
	return outboundEvent(proto.EventDisconnected, proto.EventDisconnectedData{Reason: reason})
}

func outboundError(code, msg string) proto.Outbound {
	return proto.Outbound{
		Type:  proto.OutboundTypeError,
		Error: &proto.Error{Code: code, Msg: msg},
	}
}

// outboundFromError maps a core failure onto a protocol error.
func outboundFromError(err error) proto.Outbound {
	var ce *core.CoreError
	if errors.As(err, &ce) {
		return outboundError(ce.Code, ce.Message)
	}
	return outboundError(core.ErrorCode(err), "request failed")
}
