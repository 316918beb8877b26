// Package chat implements the conversation and messaging core: sending,
// read tracking, history pagination, conversation listing, and direct
// conversation resolution. Every operation takes the acting user as an
// explicit argument; nothing here reads ambient state.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/stafflink/stafflink-chat/internal/access"
	"github.com/stafflink/stafflink-chat/internal/audit"
	"github.com/stafflink/stafflink-chat/internal/core"
	"github.com/stafflink/stafflink-chat/internal/store"
)

// Publisher hands newly created messages to the live delivery path.
// Delivery is fire-and-forget from the sender's perspective.
type Publisher interface {
	Publish(payload core.MessagePayload, excludeConnectionID string)
}

// Service provides the messaging business logic over the store.
type Service struct {
	store     store.Store
	publisher Publisher
	audit     audit.Sink
	log       *zerolog.Logger
	pageSize  int
}

// New creates the chat service. publisher may be nil (no live delivery);
// pageSize <= 0 falls back to the default of 30.
func New(st store.Store, publisher Publisher, sink audit.Sink, logger *zerolog.Logger, pageSize int) *Service {
	if sink == nil {
		sink = audit.Discard{}
	}
	if logger == nil {
		l := zerolog.Nop()
		logger = &l
	}
	if pageSize <= 0 {
		pageSize = 30
	}
	return &Service{
		store:     st,
		publisher: publisher,
		audit:     sink,
		log:       logger,
		pageSize:  pageSize,
	}
}

// SetPublisher wires the live delivery path. Called once at startup:
// the hub needs the service as its authorizer, so the publisher is
// attached after the hub exists.
func (s *Service) SetPublisher(publisher Publisher) {
	s.publisher = publisher
}

// ConversationInfo is one row of a user's conversation list.
type ConversationInfo struct {
	ID            int64
	Kind          store.ConversationKind
	Slug          *string
	Name          string
	LastMessageAt *time.Time
	Unread        bool
}

// MessageView is a message together with minimal sender display info.
type MessageView struct {
	ID             int64
	ConversationID int64
	Body           string
	Type           string
	Sender         core.Sender
	CreatedAt      time.Time
}

// ConversationDetail is a single conversation with its participants and
// the first page of history.
type ConversationDetail struct {
	Conversation *store.Conversation
	Participants []*store.Participant
	Messages     []MessageView
	HasMore      bool
}

// permissions evaluates the access matrix for one user and conversation.
// For direct conversations the send decision additionally needs the
// counterpart's role, loaded here.
func (s *Service) permissions(ctx context.Context, user *store.User, conv *store.Conversation) (view, send bool, err error) {
	switch conv.Kind {
	case store.KindChannel:
		if conv.Slug == nil {
			return false, false, nil
		}
		return access.CanViewChannel(user.Role, *conv.Slug), access.CanSendChannel(user.Role, *conv.Slug), nil
	case store.KindDirect:
		participants, err := s.store.ListParticipants(ctx, conv.ID)
		if err != nil {
			return false, false, fmt.Errorf("list participants: %w", err)
		}
		var isParticipant bool
		var otherID int64
		for _, p := range participants {
			if p.UserID == user.ID {
				isParticipant = true
			} else {
				otherID = p.UserID
			}
		}
		if !isParticipant {
			return false, false, nil
		}
		other, err := s.store.GetUserByID(ctx, otherID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return true, false, nil
			}
			return false, false, fmt.Errorf("get counterpart: %w", err)
		}
		return true, access.CanMessage(user.Role, other.Role), nil
	default:
		return false, false, nil
	}
}

// loadVisible fetches a conversation the user may view. Hidden and
// missing conversations are indistinguishable: both are ErrNotFound.
func (s *Service) loadVisible(ctx context.Context, user *store.User, conversationID int64) (*store.Conversation, bool, error) {
	conv, err := s.store.GetConversationByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, false, ErrNotFound
		}
		return nil, false, fmt.Errorf("get conversation: %w", err)
	}
	view, send, err := s.permissions(ctx, user, conv)
	if err != nil {
		return nil, false, err
	}
	if !view {
		return nil, false, ErrNotFound
	}
	return conv, send, nil
}

// Send validates and persists a message, updates the conversation's
// last-activity marker and the sender's own read marker, then hands the
// message to the publisher with the originating connection excluded.
func (s *Service) Send(ctx context.Context, user *store.User, conversationID int64, body, originConnectionID string) (*MessageView, error) {
	conv, canSend, err := s.loadVisible(ctx, user, conversationID)
	if err != nil {
		return nil, err
	}
	if !canSend {
		return nil, ErrForbidden
	}

	if strings.TrimSpace(body) == "" {
		return nil, ErrEmptyBody
	}
	if utf8.RuneCountInString(body) > MaxBodyLen {
		return nil, ErrBodyTooLong
	}

	now := time.Now().UTC()
	msg := &store.Message{
		ConversationID: conv.ID,
		SenderID:       user.ID,
		Body:           body,
		Type:           store.MessageTypeText,
		CreatedAt:      now,
	}
	if err := s.store.InsertMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	if err := s.store.TouchLastMessageAt(ctx, conv.ID, now); err != nil {
		return nil, fmt.Errorf("touch conversation: %w", err)
	}
	// The sender is never unread on their own message.
	if err := s.store.UpsertReadMarker(ctx, conv.ID, user.ID, now); err != nil {
		return nil, fmt.Errorf("update sender read marker: %w", err)
	}

	view := MessageView{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		Body:           msg.Body,
		Type:           msg.Type,
		Sender:         core.Sender{ID: user.ID, Name: user.Name},
		CreatedAt:      msg.CreatedAt,
	}

	if s.publisher != nil {
		s.publisher.Publish(core.MessagePayload{
			MessageID:      view.ID,
			ConversationID: view.ConversationID,
			Body:           view.Body,
			Type:           view.Type,
			Sender:         view.Sender,
			CreatedAt:      view.CreatedAt,
		}, originConnectionID)
	}

	s.audit.Record(audit.Entry{
		Kind:           audit.KindMessageSent,
		ActorID:        user.ID,
		ConversationID: conv.ID,
		MessageID:      msg.ID,
	})

	return &view, nil
}

// MarkRead sets the user's read marker for the conversation to now.
// Idempotent; safe to call even if no prior marker exists.
func (s *Service) MarkRead(ctx context.Context, user *store.User, conversationID int64) error {
	conv, _, err := s.loadVisible(ctx, user, conversationID)
	if err != nil {
		return err
	}
	if err := s.store.UpsertReadMarker(ctx, conv.ID, user.ID, time.Now().UTC()); err != nil {
		return fmt.Errorf("upsert read marker: %w", err)
	}
	s.audit.Record(audit.Entry{
		Kind:           audit.KindMarkedRead,
		ActorID:        user.ID,
		ConversationID: conv.ID,
	})
	return nil
}

// History returns up to pageSize messages strictly older than beforeID
// (or the newest page when beforeID is nil), in chronological order, and
// whether an older page may exist.
func (s *Service) History(ctx context.Context, user *store.User, conversationID int64, beforeID *int64, pageSize int) ([]MessageView, bool, error) {
	conv, _, err := s.loadVisible(ctx, user, conversationID)
	if err != nil {
		return nil, false, err
	}
	return s.history(ctx, conv.ID, beforeID, pageSize)
}

func (s *Service) history(ctx context.Context, conversationID int64, beforeID *int64, pageSize int) ([]MessageView, bool, error) {
	if pageSize <= 0 {
		pageSize = s.pageSize
	}

	messages, err := s.store.ListMessages(ctx, conversationID, pageSize, beforeID)
	if err != nil {
		return nil, false, fmt.Errorf("list messages: %w", err)
	}
	hasMore := len(messages) == pageSize

	// Query order is newest first for the cursor; reverse to
	// chronological so callers can prepend pages without reordering.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	senderIDs := make([]int64, 0, len(messages))
	seen := make(map[int64]bool)
	for _, msg := range messages {
		if !seen[msg.SenderID] {
			seen[msg.SenderID] = true
			senderIDs = append(senderIDs, msg.SenderID)
		}
	}
	senders, err := s.store.GetUsersByIDs(ctx, senderIDs)
	if err != nil {
		return nil, false, fmt.Errorf("load senders: %w", err)
	}

	views := make([]MessageView, 0, len(messages))
	for _, msg := range messages {
		sender := core.Sender{ID: msg.SenderID}
		if u, ok := senders[msg.SenderID]; ok {
			sender.Name = u.Name
		}
		views = append(views, MessageView{
			ID:             msg.ID,
			ConversationID: msg.ConversationID,
			Body:           msg.Body,
			Type:           msg.Type,
			Sender:         sender,
			CreatedAt:      msg.CreatedAt,
		})
	}

	return views, hasMore, nil
}

// GetConversation returns a conversation the user may view, with its
// participant list and the newest page of history.
func (s *Service) GetConversation(ctx context.Context, user *store.User, conversationID int64) (*ConversationDetail, error) {
	conv, _, err := s.loadVisible(ctx, user, conversationID)
	if err != nil {
		return nil, err
	}

	participants, err := s.store.ListParticipants(ctx, conv.ID)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}

	messages, hasMore, err := s.history(ctx, conv.ID, nil, s.pageSize)
	if err != nil {
		return nil, err
	}

	return &ConversationDetail{
		Conversation: conv,
		Participants: participants,
		Messages:     messages,
		HasMore:      hasMore,
	}, nil
}

// ListConversations lists what the user is entitled to see: channels
// filtered by the role-derived slug set, unioned with the user's direct
// conversations, each annotated with its unread flag. Direct
// conversations are shown under the counterpart's display name.
func (s *Service) ListConversations(ctx context.Context, user *store.User) ([]ConversationInfo, error) {
	channels, err := s.store.ListChannels(ctx, user.ID, access.ChannelsVisibleTo(user.Role))
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	directs, err := s.store.ListDirectConversations(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("list direct conversations: %w", err)
	}

	infos := make([]ConversationInfo, 0, len(channels)+len(directs))
	for _, c := range channels {
		infos = append(infos, summaryToInfo(c))
	}

	counterparts := make(map[int64]int64, len(directs)) // conversation -> other user
	otherIDs := make([]int64, 0, len(directs))
	for _, d := range directs {
		participants, err := s.store.ListParticipants(ctx, d.ID)
		if err != nil {
			return nil, fmt.Errorf("list participants: %w", err)
		}
		for _, p := range participants {
			if p.UserID != user.ID {
				counterparts[d.ID] = p.UserID
				otherIDs = append(otherIDs, p.UserID)
			}
		}
	}
	others, err := s.store.GetUsersByIDs(ctx, otherIDs)
	if err != nil {
		return nil, fmt.Errorf("load counterparts: %w", err)
	}

	for _, d := range directs {
		info := summaryToInfo(d)
		if other, ok := others[counterparts[d.ID]]; ok {
			info.Name = other.Name
		}
		infos = append(infos, info)
	}

	return infos, nil
}

func summaryToInfo(sum *store.ConversationSummary) ConversationInfo {
	return ConversationInfo{
		ID:            sum.ID,
		Kind:          sum.Kind,
		Slug:          sum.Slug,
		Name:          sum.Name,
		LastMessageAt: sum.LastMessageAt,
		Unread:        Unread(sum.LastMessageAt, sum.LastReadAt),
	}
}

// UnreadCount returns the number of conversations visible to the user
// that currently hold unread activity.
func (s *Service) UnreadCount(ctx context.Context, user *store.User) (int, error) {
	infos, err := s.ListConversations(ctx, user)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, info := range infos {
		if info.Unread {
			count++
		}
	}
	return count, nil
}

// CanSubscribe implements core.Authorizer: a connection may subscribe to
// a conversation's topic iff its user may view the conversation. Run at
// subscribe time so revoked access cannot open new subscriptions.
func (s *Service) CanSubscribe(ctx context.Context, userID, conversationID int64) (bool, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("get user: %w", err)
	}
	conv, err := s.store.GetConversationByID(ctx, conversationID)
	if err != nil {
		return false, fmt.Errorf("get conversation: %w", err)
	}
	view, _, err := s.permissions(ctx, user, conv)
	if err != nil {
		return false, err
	}
	return view, nil
}
