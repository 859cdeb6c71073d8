package sessions

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/haasonsaas/relay/pkg/models"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver
)

// SQLiteStore persists sessions in a SQLite database: one sessions row per
// key plus a messages table ordered by an autoincrement sequence, so read
// order always matches append order.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path and runs schema
// setup. Use ":memory:" for an ephemeral store.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// Serialize access through one connection; the driver is not safe for
	// concurrent writers on separate connections to the same file.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) init() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			key TEXT PRIMARY KEY,
			summary TEXT NOT NULL DEFAULT '',
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			session_key TEXT NOT NULL,
			id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			tool_calls TEXT,
			tool_call_id TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_key, seq)`,
	}
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) GetOrCreate(ctx context.Context, key string) (*models.Session, error) {
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (key) VALUES (?) ON CONFLICT(key) DO NOTHING`, key); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	session := &models.Session{Key: key}
	row := s.db.QueryRowContext(ctx, `SELECT summary, updated_at FROM sessions WHERE key = ?`, key)
	if err := row.Scan(&session.Summary, &session.UpdatedAt); err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	history, err := s.GetHistory(ctx, key)
	if err != nil {
		return nil, err
	}
	session.History = history
	return session, nil
}

func (s *SQLiteStore) GetHistory(ctx context.Context, key string) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, role, content, tool_calls, tool_call_id, created_at
		 FROM messages WHERE session_key = ? ORDER BY seq`, key)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var history []models.Message
	for rows.Next() {
		var msg models.Message
		var toolCalls sql.NullString
		var toolCallID sql.NullString
		if err := rows.Scan(&msg.ID, &msg.Role, &msg.Content, &toolCalls, &toolCallID, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if toolCalls.Valid && toolCalls.String != "" {
			if err := json.Unmarshal([]byte(toolCalls.String), &msg.ToolCalls); err != nil {
				return nil, fmt.Errorf("decode tool calls: %w", err)
			}
		}
		if toolCallID.Valid {
			msg.ToolCallID = toolCallID.String
		}
		history = append(history, msg)
	}
	return history, rows.Err()
}

func (s *SQLiteStore) GetSummary(ctx context.Context, key string) (string, error) {
	var summary string
	err := s.db.QueryRowContext(ctx, `SELECT summary FROM sessions WHERE key = ?`, key).Scan(&summary)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query summary: %w", err)
	}
	return summary, nil
}

func (s *SQLiteStore) AddMessage(ctx context.Context, key string, role models.Role, content string) error {
	return s.AddFullMessage(ctx, key, models.Message{Role: role, Content: content})
}

func (s *SQLiteStore) AddFullMessage(ctx context.Context, key string, msg models.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	var toolCalls any
	if len(msg.ToolCalls) > 0 {
		encoded, err := json.Marshal(msg.ToolCalls)
		if err != nil {
			return fmt.Errorf("encode tool calls: %w", err)
		}
		toolCalls = string(encoded)
	}

	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (key) VALUES (?) ON CONFLICT(key) DO NOTHING`, key); err != nil {
		return fmt.Errorf("ensure session: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (session_key, id, role, content, tool_calls, tool_call_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		key, msg.ID, string(msg.Role), msg.Content, toolCalls, msg.ToolCallID, msg.CreatedAt); err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

func (s *SQLiteStore) TruncateHistory(ctx context.Context, key string, keepLastN int) error {
	if keepLastN < 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM messages WHERE session_key = ? AND seq NOT IN (
			SELECT seq FROM messages WHERE session_key = ? ORDER BY seq DESC LIMIT ?
		)`, key, key, keepLastN)
	if err != nil {
		return fmt.Errorf("truncate history: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SetSummary(ctx context.Context, key string, summary string) error {
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (key, summary) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET summary = excluded.summary, updated_at = CURRENT_TIMESTAMP`,
		key, summary); err != nil {
		return fmt.Errorf("set summary: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Save(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET updated_at = CURRENT_TIMESTAMP WHERE key = ?`, key); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
