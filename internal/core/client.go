package core

// Client is one live connection as seen by the hub. A user with several
// open connections has several clients.
type Client struct {
	ID     string // connection id, unique per connection
	UserID int64
	Name   string

	Commands chan *Command
	Events   chan *Event
}

// NewClient constructs a client with initialized channels.
func NewClient(id string, userID int64, name string) *Client {
	return &Client{
		ID:       id,
		UserID:   userID,
		Name:     name,
		Commands: make(chan *Command, 8),
		Events:   make(chan *Event, 16),
	}
}

// send delivers an event without ever blocking the hub.
func (c *Client) send(event *Event) {
	select {
	case c.Events <- event:
	default:
		// Drop if slow consumer.
	}
}
