package http

import (
	"encoding/json"
	"testing"

	"github.com/stafflink/stafflink-chat/internal/core"
	"github.com/stafflink/stafflink-chat/internal/proto"
)

func TestInboundToCommand(t *testing.T) {
	cmd, protoErr, err := inboundToCommand(proto.Inbound{
		Type: proto.InboundTypeSubscribe,
		Data: json.RawMessage(`{"conversation_id": 7}`),
	})
	if err != nil || protoErr != nil {
		t.Fatalf("unexpected errors: %v %v", err, protoErr)
	}
	if cmd.Kind != core.CommandSubscribe || cmd.ConversationID != 7 {
		t.Fatalf("unexpected command: %+v", cmd)
	}

	cmd, protoErr, err = inboundToCommand(proto.Inbound{
		Type: proto.InboundTypeUnsubscribe,
		Data: json.RawMessage(`{"conversation_id": 7}`),
	})
	if err != nil || protoErr != nil {
		t.Fatalf("unexpected errors: %v %v", err, protoErr)
	}
	if cmd.Kind != core.CommandUnsubscribe {
		t.Fatalf("unexpected command: %+v", cmd)
	}

	// Missing or non-positive conversation id is a protocol error, not
	// a connection-fatal one.
	_, protoErr, err = inboundToCommand(proto.Inbound{
		Type: proto.InboundTypeSubscribe,
		Data: json.RawMessage(`{}`),
	})
	if err != nil || protoErr == nil || protoErr.Code != core.ErrCodeBadRequest {
		t.Fatalf("expected bad_request, got %v %v", protoErr, err)
	}

	_, protoErr, err = inboundToCommand(proto.Inbound{Type: "ping"})
	if err != nil || protoErr == nil || protoErr.Code != "invalid_message" {
		t.Fatalf("expected invalid_message, got %v %v", protoErr, err)
	}

	// Malformed JSON tears the connection down.
	if _, _, err = inboundToCommand(proto.Inbound{
		Type: proto.InboundTypeSubscribe,
		Data: json.RawMessage(`{`),
	}); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}

func TestOutboundFromEvent(t *testing.T) {
	out := outboundFromEvent(&core.Event{
		Kind:           core.EventSubscribed,
		ConversationID: 7,
	})
	if out.Type != proto.OutboundTypeEvent || out.Event != "subscribed" {
		t.Fatalf("unexpected outbound: %+v", out)
	}

	out = outboundFromEvent(&core.Event{
		Kind:           core.EventError,
		ConversationID: 7,
		Error:          &core.CoreError{Code: core.ErrCodeForbidden, Message: "not allowed"},
	})
	if out.Type != proto.OutboundTypeError || out.Error == nil || out.Error.Code != core.ErrCodeForbidden {
		t.Fatalf("unexpected outbound: %+v", out)
	}
}
