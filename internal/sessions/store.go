// Package sessions provides durable per-conversation history and summary
// storage keyed by "channel:chatId".
package sessions

import (
	"context"

	"github.com/haasonsaas/relay/pkg/models"
)

// Store is the interface for session persistence.
//
// The store owns the authoritative history and summary for every session.
// Returned history slices are snapshots: callers must never mutate them in
// place and expect the change to persist — all writes go through this API.
type Store interface {
	// GetOrCreate returns the session for key, creating an empty one on
	// first reference.
	GetOrCreate(ctx context.Context, key string) (*models.Session, error)

	// GetHistory returns a snapshot of the session's message log in the
	// exact order messages were exchanged with the LLM.
	GetHistory(ctx context.Context, key string) ([]models.Message, error)

	// GetSummary returns the session's rolling summary, or "" if none.
	GetSummary(ctx context.Context, key string) (string, error)

	// AddMessage appends a plain role/content message to the session log.
	AddMessage(ctx context.Context, key string, role models.Role, content string) error

	// AddFullMessage appends a complete message, preserving tool calls and
	// tool call ids.
	AddFullMessage(ctx context.Context, key string, msg models.Message) error

	// TruncateHistory keeps only the most recent keepLastN messages,
	// discarding the prefix permanently.
	TruncateHistory(ctx context.Context, key string, keepLastN int) error

	// SetSummary replaces the session's rolling summary.
	SetSummary(ctx context.Context, key string, summary string) error

	// Save persists the session's current state. Implementations that
	// write eagerly may treat this as a timestamp update.
	Save(ctx context.Context, key string) error

	// Close releases underlying resources.
	Close() error
}
