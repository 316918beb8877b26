package core

// CommandKind describes what the subscriber wants to do.
type CommandKind int

const (
	// CommandSubscribe subscribes the connection to a conversation's topic.
	CommandSubscribe CommandKind = iota
	// CommandUnsubscribe removes the connection from a conversation's topic.
	CommandUnsubscribe
)

// Command represents an action requested by a connection.
type Command struct {
	Kind           CommandKind
	ConversationID int64
}
