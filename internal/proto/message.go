package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	ProtocolVersion = 1

	InboundTypeSubscribe   = "subscribe"
	InboundTypeUnsubscribe = "unsubscribe"

	OutboundTypeWelcome = "welcome"
	OutboundTypeEvent   = "event"
	OutboundTypeError   = "error"
)

// SubscribeData requests to (un)subscribe from a conversation's feed.
type SubscribeData struct {
	ConversationID int64 `json:"conversation_id"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// WelcomeData is sent once after the connection is accepted. The
// connection id is echoed back in REST sends so the sender's own
// connection can be excluded from broadcasts.
type WelcomeData struct {
	ConnectionID string `json:"connection_id"`
	Protocol     int    `json:"protocol"`
}

// Sender is the minimal sender projection in delivered messages.
type Sender struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// EventMessage delivers one published chat message.
type EventMessage struct {
	ID             int64  `json:"id"`
	ConversationID int64  `json:"conversation_id"`
	Body           string `json:"body"`
	MsgType        string `json:"msg_type"`
	Sender         Sender `json:"sender"`
	CreatedAt      int64  `json:"created_at"`
}

// EventSubscription confirms a subscription change.
type EventSubscription struct {
	ConversationID int64 `json:"conversation_id"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
