package core

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/stafflink/stafflink-chat/internal/store"
)

// Authorizer decides whether a user may subscribe to a conversation's
// topic. It is consulted at subscribe time, not only at publish time, so
// a user who loses access cannot open new subscriptions.
type Authorizer interface {
	CanSubscribe(ctx context.Context, userID, conversationID int64) (bool, error)
}

type subscription struct {
	client         *Client
	conversationID int64
}

type publishRequest struct {
	payload   MessagePayload
	excludeID string
}

// Hub owns the topic registry and fans published messages out to
// subscribed connections. All topic state is confined to the Run loop;
// clients talk to it through channels.
type Hub struct {
	authorizer Authorizer
	log        *zerolog.Logger

	register      chan *Client
	unregister    chan *Client
	subscribeCh   chan subscription
	unsubscribeCh chan subscription
	publishCh     chan publishRequest

	topics  map[int64]*Topic
	clients map[*Client]map[int64]struct{}
}

// NewHub creates a new hub. authorizer may be nil, in which case every
// subscription is allowed (tests only).
func NewHub(authorizer Authorizer, logger *zerolog.Logger) *Hub {
	if logger == nil {
		l := zerolog.Nop()
		logger = &l
	}
	return &Hub{
		authorizer:    authorizer,
		log:           logger,
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		subscribeCh:   make(chan subscription),
		unsubscribeCh: make(chan subscription),
		publishCh:     make(chan publishRequest, 64),
		topics:        make(map[int64]*Topic),
		clients:       make(map[*Client]map[int64]struct{}),
	}
}

// RegisterClient adds a connection to the hub.
func (h *Hub) RegisterClient(c *Client) {
	h.register <- c
}

// UnregisterClient removes a connection from the hub and from every
// topic it subscribed to. No delivery is owed to it afterwards.
func (h *Hub) UnregisterClient(c *Client) {
	h.unregister <- c
}

// Publish hands a message to the hub for delivery to every subscriber of
// its conversation's topic except the excluded connection. It never
// blocks the caller: if the hub cannot accept the message it is dropped
// and logged, per the delivery contract.
func (h *Hub) Publish(payload MessagePayload, excludeConnectionID string) {
	select {
	case h.publishCh <- publishRequest{payload: payload, excludeID: excludeConnectionID}:
	default:
		h.log.Warn().
			Int64("conversation_id", payload.ConversationID).
			Int64("message_id", payload.MessageID).
			Msg("hub backlogged, dropping broadcast")
	}
}

// Run processes hub traffic until the context is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.register:
			h.clients[client] = make(map[int64]struct{})
			go h.pump(ctx, client)
		case client := <-h.unregister:
			h.dropClient(client)
		case sub := <-h.subscribeCh:
			h.handleSubscribe(sub)
		case sub := <-h.unsubscribeCh:
			h.handleUnsubscribe(sub)
		case req := <-h.publishCh:
			h.handlePublish(req)
		}
	}
}

// pump forwards one client's commands into the hub, running the
// subscribe authorization check on the client's own goroutine so a slow
// check never affects other subscribers or the publisher.
func (h *Hub) pump(ctx context.Context, c *Client) {
	for {
		select {
		case <-ctx.Done():
			return
		case cmd, ok := <-c.Commands:
			if !ok {
				return
			}
			switch cmd.Kind {
			case CommandSubscribe:
				if !h.authorizeSubscribe(ctx, c, cmd.ConversationID) {
					continue
				}
				select {
				case h.subscribeCh <- subscription{client: c, conversationID: cmd.ConversationID}:
				case <-ctx.Done():
					return
				}
			case CommandUnsubscribe:
				select {
				case h.unsubscribeCh <- subscription{client: c, conversationID: cmd.ConversationID}:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

func (h *Hub) authorizeSubscribe(ctx context.Context, c *Client, conversationID int64) bool {
	if h.authorizer == nil {
		return true
	}
	allowed, err := h.authorizer.CanSubscribe(ctx, c.UserID, conversationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.send(&Event{
				Kind:           EventError,
				ConversationID: conversationID,
				Error:          coreError(ErrCodeConversationNotFound, "conversation not found"),
			})
			return false
		}
		h.log.Error().Err(err).
			Int64("user_id", c.UserID).
			Int64("conversation_id", conversationID).
			Msg("subscribe authorization failed")
		c.send(&Event{
			Kind:           EventError,
			ConversationID: conversationID,
			Error:          coreError(ErrCodeBadRequest, "subscription failed"),
		})
		return false
	}
	if !allowed {
		c.send(&Event{
			Kind:           EventError,
			ConversationID: conversationID,
			Error:          coreError(ErrCodeForbidden, "not allowed to subscribe"),
		})
		return false
	}
	return true
}

func (h *Hub) handleSubscribe(sub subscription) {
	subs, registered := h.clients[sub.client]
	if !registered {
		return
	}
	topic, ok := h.topics[sub.conversationID]
	if !ok {
		topic = NewTopic(sub.conversationID)
		h.topics[sub.conversationID] = topic
	}
	if !topic.AddClient(sub.client) {
		sub.client.send(&Event{
			Kind:           EventError,
			ConversationID: sub.conversationID,
			Error:          coreError(ErrCodeAlreadySubscribed, "already subscribed"),
		})
		return
	}
	subs[sub.conversationID] = struct{}{}
	sub.client.send(&Event{Kind: EventSubscribed, ConversationID: sub.conversationID})
	h.log.Debug().
		Str("client_id", sub.client.ID).
		Str("topic", TopicName(sub.conversationID)).
		Msg("client subscribed")
}

func (h *Hub) handleUnsubscribe(sub subscription) {
	subs, registered := h.clients[sub.client]
	if !registered {
		return
	}
	topic, ok := h.topics[sub.conversationID]
	if !ok || !topic.RemoveClient(sub.client) {
		sub.client.send(&Event{
			Kind:           EventError,
			ConversationID: sub.conversationID,
			Error:          coreError(ErrCodeNotSubscribed, "not subscribed"),
		})
		return
	}
	delete(subs, sub.conversationID)
	if topic.Empty() {
		delete(h.topics, sub.conversationID)
	}
	sub.client.send(&Event{Kind: EventUnsubscribed, ConversationID: sub.conversationID})
}

func (h *Hub) handlePublish(req publishRequest) {
	topic, ok := h.topics[req.payload.ConversationID]
	if !ok {
		return
	}
	payload := req.payload
	topic.Broadcast(&Event{
		Kind:           EventMessage,
		ConversationID: payload.ConversationID,
		Message:        &payload,
	}, req.excludeID)
}

func (h *Hub) dropClient(c *Client) {
	subs, registered := h.clients[c]
	if !registered {
		return
	}
	for conversationID := range subs {
		if topic, ok := h.topics[conversationID]; ok {
			topic.RemoveClient(c)
			if topic.Empty() {
				delete(h.topics, conversationID)
			}
		}
	}
	delete(h.clients, c)
}
