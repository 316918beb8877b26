package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/stafflink/stafflink-chat/internal/service/chat"
)

// ChatHandlers provides HTTP handlers for conversation endpoints.
type ChatHandlers struct {
	service *chat.Service
	log     *zerolog.Logger
}

// NewChatHandlers creates a new chat handlers instance.
func NewChatHandlers(service *chat.Service, logger *zerolog.Logger) *ChatHandlers {
	return &ChatHandlers{
		service: service,
		log:     logger,
	}
}

// ConversationResponse represents a conversation in list responses.
type ConversationResponse struct {
	ID            int64   `json:"id"`
	Kind          string  `json:"kind"`
	Slug          *string `json:"slug,omitempty"`
	Name          string  `json:"name"`
	LastMessageAt *string `json:"last_message_at"`
	Unread        bool    `json:"unread"`
}

// ParticipantResponse represents a participant in detail responses.
type ParticipantResponse struct {
	UserID     int64   `json:"user_id"`
	Role       string  `json:"role"`
	LastReadAt *string `json:"last_read_at"`
}

// MessageResponse represents a message in API responses.
type MessageResponse struct {
	ID             int64  `json:"id"`
	ConversationID int64  `json:"conversation_id"`
	Body           string `json:"body"`
	MsgType        string `json:"msg_type"`
	Sender         struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	} `json:"sender"`
	CreatedAt string `json:"created_at"`
}

// ConversationDetailResponse is the single-conversation response body.
type ConversationDetailResponse struct {
	Conversation ConversationResponse  `json:"conversation"`
	Participants []ParticipantResponse `json:"participants"`
	Messages     []MessageResponse     `json:"messages"`
	HasMore      bool                  `json:"has_more"`
}

// HistoryResponse is the paginated history response body.
type HistoryResponse struct {
	Messages []MessageResponse `json:"messages"`
	HasMore  bool              `json:"has_more"`
}

// SendMessageRequest represents the send request body. ConnectionID is
// the caller's live feed connection, excluded from the broadcast so the
// sender's UI relies on this response instead of a looped-back event.
type SendMessageRequest struct {
	Body         string `json:"body" binding:"required"`
	ConnectionID string `json:"connection_id"`
}

// DirectRequest represents the find-or-create DM request body.
type DirectRequest struct {
	UserID int64 `json:"user_id" binding:"required"`
}

// DirectResponse represents the find-or-create DM response body.
type DirectResponse struct {
	ConversationID int64 `json:"conversation_id"`
}

// UnreadCountResponse represents the badge count response body.
type UnreadCountResponse struct {
	Count int `json:"count"`
}

// ListConversations handles the conversation list.
// GET /api/conversations
func (h *ChatHandlers) ListConversations(c *gin.Context) {
	user, ok := actingUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	infos, err := h.service.ListConversations(c.Request.Context(), user)
	if err != nil {
		h.writeError(c, err, "list conversations")
		return
	}

	resp := make([]ConversationResponse, 0, len(infos))
	for _, info := range infos {
		resp = append(resp, ConversationResponse{
			ID:            info.ID,
			Kind:          string(info.Kind),
			Slug:          info.Slug,
			Name:          info.Name,
			LastMessageAt: formatTime(info.LastMessageAt),
			Unread:        info.Unread,
		})
	}
	c.JSON(http.StatusOK, resp)
}

// GetConversation handles the single conversation view.
// GET /api/conversations/:id
func (h *ChatHandlers) GetConversation(c *gin.Context) {
	user, ok := actingUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}
	convID, ok := h.conversationID(c)
	if !ok {
		return
	}

	detail, err := h.service.GetConversation(c.Request.Context(), user, convID)
	if err != nil {
		h.writeError(c, err, "get conversation")
		return
	}

	participants := make([]ParticipantResponse, 0, len(detail.Participants))
	for _, p := range detail.Participants {
		participants = append(participants, ParticipantResponse{
			UserID:     p.UserID,
			Role:       p.Role,
			LastReadAt: formatTime(p.LastReadAt),
		})
	}

	conv := detail.Conversation
	c.JSON(http.StatusOK, ConversationDetailResponse{
		Conversation: ConversationResponse{
			ID:            conv.ID,
			Kind:          string(conv.Kind),
			Slug:          conv.Slug,
			Name:          conv.Name,
			LastMessageAt: formatTime(conv.LastMessageAt),
		},
		Participants: participants,
		Messages:     messageResponses(detail.Messages),
		HasMore:      detail.HasMore,
	})
}

// SendMessage handles message creation.
// POST /api/conversations/:id/messages
func (h *ChatHandlers) SendMessage(c *gin.Context) {
	user, ok := actingUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}
	convID, ok := h.conversationID(c)
	if !ok {
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid send request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	msg, err := h.service.Send(c.Request.Context(), user, convID, req.Body, req.ConnectionID)
	if err != nil {
		h.writeError(c, err, "send message")
		return
	}

	c.JSON(http.StatusCreated, messageResponse(*msg))
}

// History handles cursor-paginated message history.
// GET /api/conversations/:id/messages?before_id=&page_size=
func (h *ChatHandlers) History(c *gin.Context) {
	user, ok := actingUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}
	convID, ok := h.conversationID(c)
	if !ok {
		return
	}

	var beforeID *int64
	if raw := c.Query("before_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid before_id"})
			return
		}
		beforeID = &id
	}

	pageSize := 0
	if raw := c.Query("page_size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 100 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid page_size"})
			return
		}
		pageSize = n
	}

	messages, hasMore, err := h.service.History(c.Request.Context(), user, convID, beforeID, pageSize)
	if err != nil {
		h.writeError(c, err, "history")
		return
	}

	c.JSON(http.StatusOK, HistoryResponse{
		Messages: messageResponses(messages),
		HasMore:  hasMore,
	})
}

// MarkRead handles the read-marker update.
// POST /api/conversations/:id/read
func (h *ChatHandlers) MarkRead(c *gin.Context) {
	user, ok := actingUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}
	convID, ok := h.conversationID(c)
	if !ok {
		return
	}

	if err := h.service.MarkRead(c.Request.Context(), user, convID); err != nil {
		h.writeError(c, err, "mark read")
		return
	}

	c.Status(http.StatusNoContent)
}

// FindOrCreateDirect handles DM resolution.
// POST /api/dms
func (h *ChatHandlers) FindOrCreateDirect(c *gin.Context) {
	user, ok := actingUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	var req DirectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid dm request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	conv, err := h.service.FindOrCreateDirect(c.Request.Context(), user, req.UserID)
	if err != nil {
		h.writeError(c, err, "find or create dm")
		return
	}

	c.JSON(http.StatusOK, DirectResponse{ConversationID: conv.ID})
}

// UnreadCount handles the badge count.
// GET /api/unread-count
func (h *ChatHandlers) UnreadCount(c *gin.Context) {
	user, ok := actingUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	count, err := h.service.UnreadCount(c.Request.Context(), user)
	if err != nil {
		h.writeError(c, err, "unread count")
		return
	}

	c.JSON(http.StatusOK, UnreadCountResponse{Count: count})
}

func (h *ChatHandlers) conversationID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid conversation id"})
		return 0, false
	}
	return id, true
}

// writeError maps service errors onto the HTTP error taxonomy.
func (h *ChatHandlers) writeError(c *gin.Context, err error, op string) {
	switch {
	case errors.Is(err, chat.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "conversation not found"})
	case errors.Is(err, chat.ErrForbidden):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "forbidden"})
	case chat.IsValidation(err):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	default:
		h.log.Error().Err(err).Str("op", op).Msg("chat operation failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
	}
}

func messageResponse(msg chat.MessageView) MessageResponse {
	resp := MessageResponse{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		Body:           msg.Body,
		MsgType:        msg.Type,
		CreatedAt:      msg.CreatedAt.Format(time.RFC3339),
	}
	resp.Sender.ID = msg.Sender.ID
	resp.Sender.Name = msg.Sender.Name
	return resp
}

func messageResponses(messages []chat.MessageView) []MessageResponse {
	resp := make([]MessageResponse, 0, len(messages))
	for _, msg := range messages {
		resp = append(resp, messageResponse(msg))
	}
	return resp
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}
