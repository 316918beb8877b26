package core

import "fmt"

// TopicName returns the deterministic topic name for a conversation.
func TopicName(conversationID int64) string {
	return fmt.Sprintf("conversation:%d", conversationID)
}

// Topic groups clients subscribed to the same conversation.
type Topic struct {
	ConversationID int64
	clients        map[*Client]struct{}
}

// NewTopic constructs a topic with no clients.
func NewTopic(conversationID int64) *Topic {
	return &Topic{
		ConversationID: conversationID,
		clients:        make(map[*Client]struct{}),
	}
}

// AddClient inserts a client into the topic. Returns true if newly added.
func (t *Topic) AddClient(c *Client) bool {
	if _, exists := t.clients[c]; exists {
		return false
	}
	t.clients[c] = struct{}{}
	return true
}

// RemoveClient deletes a client from the topic. Returns true if removed.
func (t *Topic) RemoveClient(c *Client) bool {
	if _, exists := t.clients[c]; !exists {
		return false
	}
	delete(t.clients, c)
	return true
}

// Broadcast sends an event to all clients in the topic except the one
// whose connection id matches excludeID.
func (t *Topic) Broadcast(event *Event, excludeID string) {
	for client := range t.clients {
		if excludeID != "" && client.ID == excludeID {
			continue
		}
		client.send(event)
	}
}

// Empty returns true if no clients are in the topic.
func (t *Topic) Empty() bool {
	return len(t.clients) == 0
}
