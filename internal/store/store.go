package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by lookups when the entity does not exist.
var ErrNotFound = errors.New("not found")

// Role is a user's organizational role.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleHR       Role = "hr"
	RoleManager  Role = "manager"
	RoleEmployee Role = "employee"
)

// User represents a provisioned account. Identity and role management
// live outside this service; users are read-only here except for seeding.
type User struct {
	ID           int64
	Username     string
	Name         string
	Role         Role
	PasswordHash string
	CreatedAt    time.Time
}

// ConversationKind defines different kinds of conversations.
type ConversationKind string

const (
	// KindChannel is a fixed, pre-provisioned multi-party conversation.
	KindChannel ConversationKind = "channel"
	// KindDirect is an exactly-two-participant conversation created on demand.
	KindDirect ConversationKind = "dm"
)

// DirectKey is the canonical pair key for a direct conversation:
// "dm:{minUserID}:{maxUserID}". Order independent, so both argument
// orders produce the same key, and a UNIQUE index on it makes duplicate
// DMs for a pair impossible at the database level.
func DirectKey(a, b int64) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("dm:%d:%d", a, b)
}

// Conversation represents a channel or a direct conversation.
type Conversation struct {
	ID            int64
	Kind          ConversationKind
	Slug          *string // set for channels, nil for DMs
	Name          string
	LastMessageAt *time.Time
	CreatedAt     time.Time
}

// Participant is a user's membership record in a conversation and carries
// that user's read-state. For channels, rows are materialized on first
// read; channel membership itself is computed from role, never stored.
type Participant struct {
	ConversationID int64
	UserID         int64
	Role           string // owner or member, informational only
	LastReadAt     *time.Time
	CreatedAt      time.Time
}

const (
	ParticipantRoleOwner  = "owner"
	ParticipantRoleMember = "member"
)

// Message is a persisted chat message. Immutable once created.
type Message struct {
	ID             int64
	ConversationID int64
	SenderID       int64
	Body           string
	Type           string // currently always "text"
	CreatedAt      time.Time
}

// MessageTypeText is the only message type currently written.
const MessageTypeText = "text"

// ConversationSummary is a conversation annotated with the viewer's
// read marker, as produced by ListChannels/ListDirectConversations.
type ConversationSummary struct {
	Conversation
	LastReadAt *time.Time // viewer's marker, nil when never read
}

// ChannelSeed describes a code-defined channel to provision.
type ChannelSeed struct {
	Slug string
	Name string
}

// UserStore handles user lookups. Accounts are provisioned externally
// or via seeding; there is no self-registration.
type UserStore interface {
	// CreateUser inserts a provisioned account.
	CreateUser(ctx context.Context, username, name string, role Role, passwordHash string) (*User, error)

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id int64) (*User, error)

	// GetUserByUsername retrieves a user by username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// GetUsersByIDs retrieves users keyed by ID. Missing IDs are absent
	// from the result, not an error.
	GetUsersByIDs(ctx context.Context, ids []int64) (map[int64]*User, error)
}

// ConversationStore handles conversation and participant persistence.
type ConversationStore interface {
	// EnsureChannels provisions the fixed channel set idempotently.
	EnsureChannels(ctx context.Context, seeds []ChannelSeed) error

	// GetConversationByID retrieves a conversation by ID.
	GetConversationByID(ctx context.Context, id int64) (*Conversation, error)

	// GetChannelBySlug retrieves a channel conversation by its slug.
	GetChannelBySlug(ctx context.Context, slug string) (*Conversation, error)

	// ListChannels lists channel conversations whose slug is in slugs,
	// each annotated with the viewer's read marker.
	ListChannels(ctx context.Context, viewerID int64, slugs []string) ([]*ConversationSummary, error)

	// ListDirectConversations lists DMs the viewer participates in,
	// each annotated with the viewer's read marker.
	ListDirectConversations(ctx context.Context, viewerID int64) ([]*ConversationSummary, error)

	// GetDirectConversation finds the DM whose participant set is exactly
	// {userA, userB}. Returns ErrNotFound when no such DM exists.
	GetDirectConversation(ctx context.Context, userA, userB int64) (*Conversation, error)

	// CreateDirectConversation creates a DM and both participant rows in
	// one transaction. Either everything commits or nothing does.
	CreateDirectConversation(ctx context.Context, userA, userB int64) (*Conversation, error)

	// ListParticipants lists a conversation's participant rows.
	ListParticipants(ctx context.Context, conversationID int64) ([]*Participant, error)

	// GetParticipant retrieves one participant row, or ErrNotFound.
	GetParticipant(ctx context.Context, conversationID, userID int64) (*Participant, error)

	// TouchLastMessageAt sets the conversation's last-activity marker.
	TouchLastMessageAt(ctx context.Context, conversationID int64, at time.Time) error

	// UpsertReadMarker sets the user's last_read_at for the conversation,
	// creating the participant row if none exists. Idempotent.
	UpsertReadMarker(ctx context.Context, conversationID, userID int64, at time.Time) error
}

// MessageStore handles message persistence.
type MessageStore interface {
	// InsertMessage persists a message and fills in its assigned ID.
	InsertMessage(ctx context.Context, msg *Message) error

	// ListMessages returns up to limit messages, newest first, strictly
	// older than beforeID when it is non-nil.
	ListMessages(ctx context.Context, conversationID int64, limit int, beforeID *int64) ([]*Message, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	ConversationStore
	MessageStore

	// Close closes the underlying database connection.
	Close() error
}
