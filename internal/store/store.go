package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// StoreError indicates a document-store read or write failure.
type StoreError struct {
	Op       string
	NotFound bool
	Err      error
}

func (e *StoreError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("store %s failed", e.Op)
	}
	return fmt.Sprintf("store %s failed: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// ErrConversationNotFound is wrapped by StoreError when a turn targets a
// conversation document that does not exist.
var ErrConversationNotFound = errors.New("conversation not found")

// Message is one entry in a conversation's append-only message sequence.
type Message struct {
	Role      string
	Content   string
	CreatedAt time.Time
}

// Conversation holds the summary fields refreshed on every assistant turn.
type Conversation struct {
	UserID         string
	ConversationID string
	UpdatedAt      time.Time
	LastMessage    string
}

// Store is the shared document store, backed by SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the store at the given path, ensuring that the
// parent directory exists, and initializes the schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create store directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open store at %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping store at %s: %w", path, err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init store schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS conversations (
			user_id TEXT NOT NULL,
			conversation_id TEXT NOT NULL,
			updated_at INTEGER NOT NULL DEFAULT (unixepoch()),
			last_message TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (user_id, conversation_id)
		);

		CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			doc_id TEXT NOT NULL UNIQUE,
			user_id TEXT NOT NULL,
			conversation_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at INTEGER NOT NULL DEFAULT (unixepoch())
		);
		CREATE INDEX IF NOT EXISTS idx_messages_conversation
			ON messages(user_id, conversation_id, created_at, id);
	`)
	return err
}

// RecentMessages returns the most recent `limit` messages for the given
// conversation, ordered chronologically (oldest first). Ties on created_at
// break by write order. An empty conversation yields an empty slice, not an
// error.
func (s *Store) RecentMessages(ctx context.Context, uid, conversationID string, limit int) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content, created_at FROM messages
		 WHERE user_id = ? AND conversation_id = ?
		 ORDER BY created_at DESC, id DESC LIMIT ?`,
		uid, conversationID, limit,
	)
	if err != nil {
		return nil, &StoreError{Op: "read messages", Err: err}
	}
	defer rows.Close()

	var results []Message
	for rows.Next() {
		var role, content string
		var createdAt int64
		if err := rows.Scan(&role, &content, &createdAt); err != nil {
			return nil, &StoreError{Op: "scan message", Err: err}
		}
		results = append(results, Message{
			Role:      role,
			Content:   content,
			CreatedAt: time.Unix(createdAt, 0).UTC(),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, &StoreError{Op: "read messages", Err: err}
	}

	// Reverse to chronological order.
	for i, j := 0, len(results)-1; i < j; i, j = i+1, j-1 {
		results[i], results[j] = results[j], results[i]
	}
	return results, nil
}

// AppendAssistantTurn appends the assistant reply and refreshes the
// conversation's updated_at and last_message in a single transaction. The
// conversation document must already exist.
func (s *Store) AppendAssistantTurn(ctx context.Context, uid, conversationID, reply string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &StoreError{Op: "begin turn tx", Err: err}
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE conversations SET updated_at = unixepoch(), last_message = ?
		 WHERE user_id = ? AND conversation_id = ?`,
		reply, uid, conversationID,
	)
	if err != nil {
		return &StoreError{Op: "update conversation", Err: err}
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return &StoreError{Op: "update conversation", Err: err}
	}
	if affected == 0 {
		return &StoreError{Op: "update conversation", NotFound: true, Err: ErrConversationNotFound}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO messages (doc_id, user_id, conversation_id, role, content)
		 VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(), uid, conversationID, RoleAssistant, reply,
	); err != nil {
		return &StoreError{Op: "append message", Err: err}
	}

	if err := tx.Commit(); err != nil {
		return &StoreError{Op: "commit turn tx", Err: err}
	}
	return nil
}

// CreateConversation creates an empty conversation document. Creating one
// that already exists is a no-op.
func (s *Store) CreateConversation(ctx context.Context, uid, conversationID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO conversations (user_id, conversation_id) VALUES (?, ?)`,
		uid, conversationID,
	)
	if err != nil {
		return &StoreError{Op: "create conversation", Err: err}
	}
	return nil
}

// AppendUserMessage records an inbound user message. This is the "user sends
// message" path that precedes a turn; the turn pipeline itself never calls it.
func (s *Store) AppendUserMessage(ctx context.Context, uid, conversationID, content string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (doc_id, user_id, conversation_id, role, content)
		 VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(), uid, conversationID, RoleUser, content,
	)
	if err != nil {
		return &StoreError{Op: "append message", Err: err}
	}
	return nil
}

// GetConversation reads a conversation's summary fields.
func (s *Store) GetConversation(ctx context.Context, uid, conversationID string) (Conversation, error) {
	var updatedAt int64
	var lastMessage string
	err := s.db.QueryRowContext(ctx,
		`SELECT updated_at, last_message FROM conversations
		 WHERE user_id = ? AND conversation_id = ?`,
		uid, conversationID,
	).Scan(&updatedAt, &lastMessage)
	if err == sql.ErrNoRows {
		return Conversation{}, &StoreError{Op: "read conversation", NotFound: true, Err: ErrConversationNotFound}
	}
	if err != nil {
		return Conversation{}, &StoreError{Op: "read conversation", Err: err}
	}
	return Conversation{
		UserID:         uid,
		ConversationID: conversationID,
		UpdatedAt:      time.Unix(updatedAt, 0).UTC(),
		LastMessage:    lastMessage,
	}, nil
}

// MessageCount returns the number of messages stored for a conversation.
func (s *Store) MessageCount(ctx context.Context, uid, conversationID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE user_id = ? AND conversation_id = ?`,
		uid, conversationID,
	).Scan(&n)
	if err != nil {
		return 0, &StoreError{Op: "count messages", Err: err}
	}
	return n, nil
}

// DeleteUserData removes every conversation and message owned by the user in
// one transaction. Deleting for an unknown user is a no-op.
func (s *Store) DeleteUserData(ctx context.Context, uid string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &StoreError{Op: "begin delete tx", Err: err}
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE user_id = ?`, uid); err != nil {
		return &StoreError{Op: "delete messages", Err: err}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM conversations WHERE user_id = ?`, uid); err != nil {
		return &StoreError{Op: "delete conversations", Err: err}
	}

	if err := tx.Commit(); err != nil {
		return &StoreError{Op: "commit delete tx", Err: err}
	}
	return nil
}
