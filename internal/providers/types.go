// Package providers implements the LLM clients the agent loop talks to.
//
// Each provider converts between the runtime's message format and the
// vendor API, streams tokens in real time, and retries transient failures
// with exponential backoff. Chat drains the same stream ChatStream exposes,
// so both paths share conversion and retry behavior.
package providers

import (
	"context"
	"encoding/json"

	"github.com/haasonsaas/relay/pkg/models"
)

// ToolDefinition describes one callable tool to the model.
type ToolDefinition struct {
	Name        string
	Description string

	// Parameters is the JSON Schema for the tool's arguments.
	Parameters json.RawMessage
}

// ChatRequest is a single model invocation. Messages carries the full
// assembled context, including a leading system message when present.
type ChatRequest struct {
	Messages    []models.Message
	Tools       []ToolDefinition
	MaxTokens   int
	Temperature float64
}

// ChatResponse is a complete model reply: free text, tool invocations,
// or both.
type ChatResponse struct {
	Content   string
	ToolCalls []models.ToolCall
}

// StreamEvent is one increment of a streaming reply.
//
// Text events arrive as tokens are generated. ToolCall events arrive once
// the call's arguments are fully accumulated. Exactly one terminal event is
// sent: Done=true on success, or Err set on failure.
type StreamEvent struct {
	Text     string
	ToolCall *models.ToolCall
	Done     bool
	Err      error
}

// LLMClient is the provider contract the agent loop depends on.
//
// Implementations must be safe for concurrent use; each call creates an
// independent request.
type LLMClient interface {
	// Chat sends the request and blocks until the full reply is available.
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// ChatStream sends the request and returns a channel of incremental
	// events. The channel is closed after the terminal event.
	ChatStream(ctx context.Context, req *ChatRequest) (<-chan StreamEvent, error)

	// Name is the stable lowercase provider identifier used in logs and
	// metrics.
	Name() string

	// ContextWindow is the model's token budget. Compaction thresholds are
	// derived from it.
	ContextWindow() int
}

// collectStream drains a stream into a complete response. Shared by the
// providers' Chat implementations.
func collectStream(events <-chan StreamEvent) (*ChatResponse, error) {
	resp := &ChatResponse{}
	var text []byte
	for ev := range events {
		if ev.Err != nil {
			return nil, ev.Err
		}
		if ev.Text != "" {
			text = append(text, ev.Text...)
		}
		if ev.ToolCall != nil {
			resp.ToolCalls = append(resp.ToolCalls, *ev.ToolCall)
		}
	}
	resp.Content = string(text)
	return resp, nil
}
