package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/stafflink/stafflink-chat/internal/access"
	"github.com/stafflink/stafflink-chat/internal/audit"
	"github.com/stafflink/stafflink-chat/internal/store"
)

// FindOrCreateDirect resolves the single direct conversation between the
// acting user and another user, creating it if it does not exist yet.
// The role-pair rule is applied before creating, so no conversation can
// come into existence that its creator could not post into. Idempotent:
// the same pair always resolves to the same conversation.
func (s *Service) FindOrCreateDirect(ctx context.Context, user *store.User, otherUserID int64) (*store.Conversation, error) {
	if user.ID == otherUserID {
		return nil, ErrSelfDirect
	}

	other, err := s.store.GetUserByID(ctx, otherUserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	if !access.CanMessage(user.Role, other.Role) {
		return nil, ErrForbidden
	}

	conv, err := s.store.GetDirectConversation(ctx, user.ID, other.ID)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("find direct conversation: %w", err)
	}

	// Conversation and both participant rows commit atomically; a DM
	// with a single participant cannot exist.
	conv, err = s.store.CreateDirectConversation(ctx, user.ID, other.ID)
	if err != nil {
		return nil, fmt.Errorf("create direct conversation: %w", err)
	}

	s.audit.Record(audit.Entry{
		Kind:           audit.KindDirectCreated,
		ActorID:        user.ID,
		ConversationID: conv.ID,
	})

	s.log.Info().
		Int64("conversation_id", conv.ID).
		Int64("user_id", user.ID).
		Int64("other_user_id", other.ID).
		Msg("direct conversation created")

	return conv, nil
}
