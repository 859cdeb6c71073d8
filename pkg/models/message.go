package models

import (
	"encoding/json"
	"time"
)

// ChannelType identifies a messaging platform or message origin.
type ChannelType string

const (
	ChannelTelegram ChannelType = "telegram"
	ChannelSlack    ChannelType = "slack"
	ChannelCLI      ChannelType = "cli"

	// ChannelSystem marks system-originated events (cron fires, subagent
	// results). For system messages the ChatID field carries the origin
	// conversation encoded as "channel:chatId".
	ChannelSystem ChannelType = "system"
)

// Role indicates the message author type in an LLM conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a structured request from the LLM to invoke a named tool.
type ToolCall struct {
	ID        string          `json:"id"`
	Type      string          `json:"type,omitempty"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// Message is one turn-unit exchanged with the LLM.
//
// Content may be empty on assistant messages that only carry tool calls.
// ToolCallID is set only on role=tool messages and must reference a ToolCall
// emitted by a preceding assistant message in the same turn.
type Message struct {
	ID         string     `json:"id,omitempty"`
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	CreatedAt  time.Time  `json:"created_at,omitempty"`
}

// Session is one conversation thread, keyed by channel and chat.
//
// History order is the exact order messages were sent to or received from
// the LLM. The session store owns the authoritative copy; everything else
// works on snapshots and writes back through the store API.
type Session struct {
	Key       string    `json:"key"`
	History   []Message `json:"history"`
	Summary   string    `json:"summary,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// InboundMessage is the envelope delivered by channel adapters and the
// scheduler onto the message bus.
type InboundMessage struct {
	Channel    ChannelType `json:"channel"`
	SenderID   string      `json:"sender_id"`
	ChatID     string      `json:"chat_id"`
	Content    string      `json:"content"`
	SessionKey string      `json:"session_key"`
}

// OutboundMessage is the envelope published for channel adapters to deliver.
type OutboundMessage struct {
	Channel ChannelType `json:"channel"`
	ChatID  string      `json:"chat_id"`
	Content string      `json:"content"`
}

// SessionKey builds the stable identifier under which history and summary
// are stored: "channel:chatId".
func SessionKey(channel ChannelType, chatID string) string {
	return string(channel) + ":" + chatID
}
