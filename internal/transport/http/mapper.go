package http

import (
	"encoding/json"

	"github.com/stafflink/stafflink-chat/internal/core"
	"github.com/stafflink/stafflink-chat/internal/proto"
)

func inboundToCommand(inbound proto.Inbound) (*core.Command, *proto.Error, error) {
	switch inbound.Type {
	case proto.InboundTypeSubscribe:
		var sub proto.SubscribeData
		if err := json.Unmarshal(inbound.Data, &sub); err != nil {
			return nil, nil, err
		}
		if sub.ConversationID <= 0 {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "conversation_id is required"}, nil
		}
		return &core.Command{
			Kind:           core.CommandSubscribe,
			ConversationID: sub.ConversationID,
		}, nil, nil
	case proto.InboundTypeUnsubscribe:
		var sub proto.SubscribeData
		if err := json.Unmarshal(inbound.Data, &sub); err != nil {
			return nil, nil, err
		}
		if sub.ConversationID <= 0 {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "conversation_id is required"}, nil
		}
		return &core.Command{
			Kind:           core.CommandUnsubscribe,
			ConversationID: sub.ConversationID,
		}, nil, nil
	default:
		return nil, &proto.Error{Code: "invalid_message", Msg: "unknown message type"}, nil
	}
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventMessage:
		msg := event.Message
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: "message",
			Data: proto.EventMessage{
				ID:             msg.MessageID,
				ConversationID: msg.ConversationID,
				Body:           msg.Body,
				MsgType:        msg.Type,
				Sender:         proto.Sender{ID: msg.Sender.ID, Name: msg.Sender.Name},
				CreatedAt:      msg.CreatedAt.Unix(),
			},
		}
	case core.EventSubscribed:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: "subscribed",
			Data:  proto.EventSubscription{ConversationID: event.ConversationID},
		}
	case core.EventUnsubscribed:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: "unsubscribed",
			Data:  proto.EventSubscription{ConversationID: event.ConversationID},
		}
	case core.EventError:
		if event.Error == nil {
			return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: "unknown", Msg: "unknown error"}}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: event.Error.Code, Msg: event.Error.Message},
		}
	default:
		return proto.Outbound{Type: proto.OutboundTypeEvent}
	}
}
