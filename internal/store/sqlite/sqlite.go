package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/stafflink/stafflink-chat/internal/store"
)

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLite store.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, nil)
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// The app passes ApplySchema; tests use it with ":memory:".
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== UserStore implementation ====

// CreateUser inserts a provisioned account.
func (s *SQLiteStore) CreateUser(ctx context.Context, username, name string, role store.Role, passwordHash string) (*store.User, error) {
	query := `
		INSERT INTO users (username, name, role, password_hash)
		VALUES (?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, username, name, string(role), passwordHash)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.GetUserByID(ctx, id)
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id int64) (*store.User, error) {
	query := `
		SELECT id, username, name, role, password_hash, created_at
		FROM users
		WHERE id = ?
	`
	return s.scanUser(s.db.QueryRowContext(ctx, query, id))
}

// GetUserByUsername retrieves a user by username.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*store.User, error) {
	query := `
		SELECT id, username, name, role, password_hash, created_at
		FROM users
		WHERE username = ?
	`
	return s.scanUser(s.db.QueryRowContext(ctx, query, username))
}

func (s *SQLiteStore) scanUser(row *sql.Row) (*store.User, error) {
	var user store.User
	var role string
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Name,
		&role,
		&user.PasswordHash,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	user.Role = store.Role(role)
	return &user, nil
}

// GetUsersByIDs retrieves users keyed by ID.
func (s *SQLiteStore) GetUsersByIDs(ctx context.Context, ids []int64) (map[int64]*store.User, error) {
	users := make(map[int64]*store.User, len(ids))
	if len(ids) == 0 {
		return users, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	query := fmt.Sprintf(`
		SELECT id, username, name, role, password_hash, created_at
		FROM users
		WHERE id IN (%s)
	`, placeholders)

	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var user store.User
		var role string
		if err := rows.Scan(&user.ID, &user.Username, &user.Name, &role, &user.PasswordHash, &user.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		user.Role = store.Role(role)
		users[user.ID] = &user
	}

	return users, rows.Err()
}

// ==== ConversationStore implementation ====

// EnsureChannels provisions the fixed channel set idempotently.
func (s *SQLiteStore) EnsureChannels(ctx context.Context, seeds []store.ChannelSeed) error {
	query := `
		INSERT OR IGNORE INTO conversations (kind, slug, name)
		VALUES ('channel', ?, ?)
	`
	for _, seed := range seeds {
		if _, err := s.db.ExecContext(ctx, query, seed.Slug, seed.Name); err != nil {
			return fmt.Errorf("seed channel %q: %w", seed.Slug, err)
		}
	}
	return nil
}

// GetConversationByID retrieves a conversation by ID.
func (s *SQLiteStore) GetConversationByID(ctx context.Context, id int64) (*store.Conversation, error) {
	query := `
		SELECT id, kind, slug, name, last_message_at, created_at
		FROM conversations
		WHERE id = ?
	`
	return s.scanConversation(s.db.QueryRowContext(ctx, query, id))
}

// GetChannelBySlug retrieves a channel conversation by its slug.
func (s *SQLiteStore) GetChannelBySlug(ctx context.Context, slug string) (*store.Conversation, error) {
	query := `
		SELECT id, kind, slug, name, last_message_at, created_at
		FROM conversations
		WHERE kind = 'channel' AND slug = ?
	`
	return s.scanConversation(s.db.QueryRowContext(ctx, query, slug))
}

func (s *SQLiteStore) scanConversation(row *sql.Row) (*store.Conversation, error) {
	var conv store.Conversation
	var kind string
	var slug sql.NullString
	var lastMessageAt sql.NullTime
	err := row.Scan(
		&conv.ID,
		&kind,
		&slug,
		&conv.Name,
		&lastMessageAt,
		&conv.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("query conversation: %w", err)
	}

	conv.Kind = store.ConversationKind(kind)
	if slug.Valid {
		conv.Slug = &slug.String
	}
	if lastMessageAt.Valid {
		conv.LastMessageAt = &lastMessageAt.Time
	}

	return &conv, nil
}

// ListChannels lists channel conversations whose slug is in slugs,
// annotated with the viewer's read marker.
func (s *SQLiteStore) ListChannels(ctx context.Context, viewerID int64, slugs []string) ([]*store.ConversationSummary, error) {
	if len(slugs) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(slugs)), ",")
	query := fmt.Sprintf(`
		SELECT c.id, c.kind, c.slug, c.name, c.last_message_at, c.created_at, p.last_read_at
		FROM conversations c
		LEFT JOIN participants p ON p.conversation_id = c.id AND p.user_id = ?
		WHERE c.kind = 'channel' AND c.slug IN (%s)
		ORDER BY c.id ASC
	`, placeholders)

	args := make([]interface{}, 0, len(slugs)+1)
	args = append(args, viewerID)
	for _, slug := range slugs {
		args = append(args, slug)
	}

	return s.querySummaries(ctx, query, args...)
}

// ListDirectConversations lists DMs the viewer participates in,
// annotated with the viewer's read marker. Most recent activity first.
func (s *SQLiteStore) ListDirectConversations(ctx context.Context, viewerID int64) ([]*store.ConversationSummary, error) {
	query := `
		SELECT c.id, c.kind, c.slug, c.name, c.last_message_at, c.created_at, p.last_read_at
		FROM conversations c
		JOIN participants p ON p.conversation_id = c.id AND p.user_id = ?
		WHERE c.kind = 'dm'
		ORDER BY c.last_message_at DESC, c.id DESC
	`
	return s.querySummaries(ctx, query, viewerID)
}

func (s *SQLiteStore) querySummaries(ctx context.Context, query string, args ...interface{}) ([]*store.ConversationSummary, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer rows.Close()

	var summaries []*store.ConversationSummary
	for rows.Next() {
		var sum store.ConversationSummary
		var kind string
		var slug sql.NullString
		var lastMessageAt, lastReadAt sql.NullTime
		if err := rows.Scan(&sum.ID, &kind, &slug, &sum.Name, &lastMessageAt, &sum.CreatedAt, &lastReadAt); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		sum.Kind = store.ConversationKind(kind)
		if slug.Valid {
			sum.Slug = &slug.String
		}
		if lastMessageAt.Valid {
			sum.LastMessageAt = &lastMessageAt.Time
		}
		if lastReadAt.Valid {
			sum.LastReadAt = &lastReadAt.Time
		}
		summaries = append(summaries, &sum)
	}

	return summaries, rows.Err()
}

// GetDirectConversation finds the DM for the pair {userA, userB} by its
// canonical direct key. Order of the arguments does not matter.
func (s *SQLiteStore) GetDirectConversation(ctx context.Context, userA, userB int64) (*store.Conversation, error) {
	query := `
		SELECT id, kind, slug, name, last_message_at, created_at
		FROM conversations
		WHERE kind = 'dm' AND direct_key = ?
	`
	return s.scanConversation(s.db.QueryRowContext(ctx, query, store.DirectKey(userA, userB)))
}

// CreateDirectConversation creates a DM and both participant rows in one
// transaction. Either everything commits or nothing does. The UNIQUE
// direct_key makes a second DM for the same pair impossible: when two
// creations race, the loser lands on the constraint and is handed the
// winner's conversation instead. userA is the creator and owns the DM.
func (s *SQLiteStore) CreateDirectConversation(ctx context.Context, userA, userB int64) (*store.Conversation, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	directKey := store.DirectKey(userA, userB)

	query := `
		INSERT INTO conversations (kind, slug, name, direct_key)
		VALUES ('dm', NULL, ?, ?)
	`
	result, err := tx.ExecContext(ctx, query, directKey, directKey)
	if err != nil {
		if isUniqueViolation(err) {
			// Lost the race. Release the transaction's connection
			// before looking the winner up: the pool is one connection.
			_ = tx.Rollback()
			return s.GetDirectConversation(ctx, userA, userB)
		}
		return nil, fmt.Errorf("insert conversation: %w", err)
	}

	convID, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	participantQuery := `
		INSERT INTO participants (conversation_id, user_id, role)
		VALUES (?, ?, ?)
	`
	if _, err := tx.ExecContext(ctx, participantQuery, convID, userA, store.ParticipantRoleOwner); err != nil {
		return nil, fmt.Errorf("add first participant: %w", err)
	}
	if _, err := tx.ExecContext(ctx, participantQuery, convID, userB, store.ParticipantRoleMember); err != nil {
		return nil, fmt.Errorf("add second participant: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	return s.GetConversationByID(ctx, convID)
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

// ListParticipants lists a conversation's participant rows.
func (s *SQLiteStore) ListParticipants(ctx context.Context, conversationID int64) ([]*store.Participant, error) {
	query := `
		SELECT conversation_id, user_id, role, last_read_at, created_at
		FROM participants
		WHERE conversation_id = ?
		ORDER BY created_at ASC, user_id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("query participants: %w", err)
	}
	defer rows.Close()

	var participants []*store.Participant
	for rows.Next() {
		var p store.Participant
		var lastReadAt sql.NullTime
		if err := rows.Scan(&p.ConversationID, &p.UserID, &p.Role, &lastReadAt, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		if lastReadAt.Valid {
			p.LastReadAt = &lastReadAt.Time
		}
		participants = append(participants, &p)
	}

	return participants, rows.Err()
}

// GetParticipant retrieves one participant row.
func (s *SQLiteStore) GetParticipant(ctx context.Context, conversationID, userID int64) (*store.Participant, error) {
	query := `
		SELECT conversation_id, user_id, role, last_read_at, created_at
		FROM participants
		WHERE conversation_id = ? AND user_id = ?
	`
	var p store.Participant
	var lastReadAt sql.NullTime
	err := s.db.QueryRowContext(ctx, query, conversationID, userID).Scan(
		&p.ConversationID,
		&p.UserID,
		&p.Role,
		&lastReadAt,
		&p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("query participant: %w", err)
	}
	if lastReadAt.Valid {
		p.LastReadAt = &lastReadAt.Time
	}

	return &p, nil
}

// TouchLastMessageAt sets the conversation's last-activity marker.
// Last writer wins; a slightly stale value self-corrects on the next message.
func (s *SQLiteStore) TouchLastMessageAt(ctx context.Context, conversationID int64, at time.Time) error {
	query := `UPDATE conversations SET last_message_at = ? WHERE id = ?`
	result, err := s.db.ExecContext(ctx, query, at, conversationID)
	if err != nil {
		return fmt.Errorf("update last_message_at: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return store.ErrNotFound
	}
	return nil
}

// UpsertReadMarker sets the user's last_read_at for the conversation,
// creating the participant row if none exists.
func (s *SQLiteStore) UpsertReadMarker(ctx context.Context, conversationID, userID int64, at time.Time) error {
	query := `
		INSERT INTO participants (conversation_id, user_id, role, last_read_at)
		VALUES (?, ?, 'member', ?)
		ON CONFLICT (conversation_id, user_id) DO UPDATE SET last_read_at = excluded.last_read_at
	`
	if _, err := s.db.ExecContext(ctx, query, conversationID, userID, at); err != nil {
		return fmt.Errorf("upsert read marker: %w", err)
	}
	return nil
}

// ==== MessageStore implementation ====

// InsertMessage persists a message and fills in its assigned ID.
func (s *SQLiteStore) InsertMessage(ctx context.Context, msg *store.Message) error {
	query := `
		INSERT INTO messages (conversation_id, sender_id, body, type, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, msg.ConversationID, msg.SenderID, msg.Body, msg.Type, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}

	msg.ID = id
	return nil
}

// ListMessages returns up to limit messages, newest first, strictly older
// than beforeID when it is non-nil. Ordering is by id, not timestamp, so
// cursors stay correct when two messages share a timestamp.
func (s *SQLiteStore) ListMessages(ctx context.Context, conversationID int64, limit int, beforeID *int64) ([]*store.Message, error) {
	var query string
	var args []interface{}

	if beforeID != nil {
		query = `
			SELECT id, conversation_id, sender_id, body, type, created_at
			FROM messages
			WHERE conversation_id = ? AND id < ?
			ORDER BY id DESC
			LIMIT ?
		`
		args = []interface{}{conversationID, *beforeID, limit}
	} else {
		query = `
			SELECT id, conversation_id, sender_id, body, type, created_at
			FROM messages
			WHERE conversation_id = ?
			ORDER BY id DESC
			LIMIT ?
		`
		args = []interface{}{conversationID, limit}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []*store.Message
	for rows.Next() {
		var msg store.Message
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.Body, &msg.Type, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, &msg)
	}

	return messages, rows.Err()
}

// Ensure SQLiteStore implements store.Store
var _ store.Store = (*SQLiteStore)(nil)
