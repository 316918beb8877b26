package core

import "time"

// EventKind is a notification the hub emits to subscribers.
type EventKind int

const (
	// EventMessage delivers a newly published chat message.
	EventMessage EventKind = iota
	// EventSubscribed confirms a subscription took effect.
	EventSubscribed
	// EventUnsubscribed confirms a subscription was removed.
	EventUnsubscribed
	// EventError notifies the subscriber about a feed error.
	EventError
)

// Sender is the minimal sender projection carried in a published
// message, never the full user record.
type Sender struct {
	ID   int64
	Name string
}

// MessagePayload is the projection of a message delivered to subscribers.
type MessagePayload struct {
	MessageID      int64
	ConversationID int64
	Body           string
	Type           string
	Sender         Sender
	CreatedAt      time.Time
}

// Event is sent to subscribers to describe what happened.
type Event struct {
	Kind           EventKind
	ConversationID int64
	Message        *MessagePayload // non-nil for EventMessage
	Error          *CoreError      // non-nil for EventError
}
