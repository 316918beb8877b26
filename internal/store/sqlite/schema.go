package sqlite

import "database/sql"

// Schema is the full database schema. Statements are idempotent so the
// schema can be applied on every startup.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	username      TEXT NOT NULL UNIQUE,
	name          TEXT NOT NULL,
	role          TEXT NOT NULL,
	password_hash TEXT NOT NULL,
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS conversations (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	kind            TEXT NOT NULL,
	slug            TEXT UNIQUE,
	name            TEXT NOT NULL,
	direct_key      TEXT UNIQUE,
	last_message_at DATETIME,
	created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS participants (
	conversation_id INTEGER NOT NULL REFERENCES conversations(id),
	user_id         INTEGER NOT NULL REFERENCES users(id),
	role            TEXT NOT NULL DEFAULT 'member',
	last_read_at    DATETIME,
	created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (conversation_id, user_id)
);

CREATE TABLE IF NOT EXISTS messages (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	conversation_id INTEGER NOT NULL REFERENCES conversations(id),
	sender_id       INTEGER NOT NULL REFERENCES users(id),
	body            TEXT NOT NULL,
	type            TEXT NOT NULL DEFAULT 'text',
	created_at      DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_conversation_id
	ON messages(conversation_id, id);
CREATE INDEX IF NOT EXISTS idx_participants_user
	ON participants(user_id);
`

// ApplySchema creates all tables and indexes if they do not exist.
// Passed to NewWithSetup by the app and by tests.
func ApplySchema(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}
