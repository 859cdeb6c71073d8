package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/haasonsaas/relay/pkg/models"
)

// AnthropicClient implements LLMClient for Anthropic's Claude API.
//
// It converts the runtime message format to Anthropic's content-block
// format, consumes the SSE stream, and retries transient failures (rate
// limits, 5xx, timeouts) with exponential backoff.
type AnthropicClient struct {
	client        anthropic.Client
	model         string
	contextWindow int
	maxRetries    int
	retryDelay    time.Duration
}

// AnthropicConfig holds settings for NewAnthropicClient. APIKey is
// required; everything else has a default.
type AnthropicConfig struct {
	APIKey  string
	BaseURL string
	Model   string

	// ContextWindow is the token budget for the configured model.
	// Default: 200000.
	ContextWindow int

	// MaxRetries bounds retry attempts for transient failures. Default: 3.
	MaxRetries int

	// RetryDelay is the base backoff delay. Actual delay doubles each
	// attempt. Default: 1s.
	RetryDelay time.Duration
}

// NewAnthropicClient creates a Claude client with defaults applied.
func NewAnthropicClient(config AnthropicConfig) (*AnthropicClient, error) {
	if config.APIKey == "" {
		return nil, errors.New("anthropic: API key is required")
	}
	if config.Model == "" {
		config.Model = "claude-sonnet-4-20250514"
	}
	if config.ContextWindow <= 0 {
		config.ContextWindow = 200000
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 3
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = time.Second
	}

	options := []option.RequestOption{option.WithAPIKey(config.APIKey)}
	if strings.TrimSpace(config.BaseURL) != "" {
		options = append(options, option.WithBaseURL(config.BaseURL))
	}

	return &AnthropicClient{
		client:        anthropic.NewClient(options...),
		model:         config.Model,
		contextWindow: config.ContextWindow,
		maxRetries:    config.MaxRetries,
		retryDelay:    config.RetryDelay,
	}, nil
}

// Name returns "anthropic".
func (c *AnthropicClient) Name() string {
	return "anthropic"
}

// ContextWindow returns the configured model token budget.
func (c *AnthropicClient) ContextWindow() int {
	return c.contextWindow
}

// Chat sends the request and blocks until the complete reply is available.
func (c *AnthropicClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	events, err := c.ChatStream(ctx, req)
	if err != nil {
		return nil, err
	}
	return collectStream(events)
}

// ChatStream sends the request and streams reply events. The returned
// channel is closed after the terminal event.
func (c *AnthropicClient) ChatStream(ctx context.Context, req *ChatRequest) (<-chan StreamEvent, error) {
	events := make(chan StreamEvent)

	go func() {
		defer close(events)

		var stream *ssestream.Stream[anthropic.MessageStreamEventUnion]
		var err error

		for attempt := 0; attempt <= c.maxRetries; attempt++ {
			stream, err = c.createStream(ctx, req)
			if err == nil {
				break
			}
			if !isRetryableError(err) {
				events <- StreamEvent{Err: err}
				return
			}
			if attempt < c.maxRetries {
				backoff := c.retryDelay * time.Duration(math.Pow(2, float64(attempt)))
				select {
				case <-ctx.Done():
					events <- StreamEvent{Err: ctx.Err()}
					return
				case <-time.After(backoff):
				}
			}
		}
		if err != nil {
			events <- StreamEvent{Err: fmt.Errorf("anthropic: max retries exceeded: %w", err)}
			return
		}

		c.processStream(stream, events)
	}()

	return events, nil
}

func (c *AnthropicClient) createStream(ctx context.Context, req *ChatRequest) (*ssestream.Stream[anthropic.MessageStreamEventUnion], error) {
	system, messages, err := convertAnthropicMessages(req.Messages)
	if err != nil {
		return nil, fmt.Errorf("anthropic: failed to convert messages: %w", err)
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		Messages:  messages,
		MaxTokens: int64(maxTokens),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Type: "text", Text: system}}
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}
	if len(req.Tools) > 0 {
		tools, err := convertAnthropicTools(req.Tools)
		if err != nil {
			return nil, fmt.Errorf("anthropic: failed to convert tools: %w", err)
		}
		params.Tools = tools
	}

	return c.client.Messages.NewStreaming(ctx, params), nil
}

// processStream consumes SSE events and forwards them as StreamEvents.
// Tool call arguments arrive as partial JSON across delta events and are
// accumulated until the content block closes.
func (c *AnthropicClient) processStream(stream *ssestream.Stream[anthropic.MessageStreamEventUnion], events chan<- StreamEvent) {
	var currentToolCall *models.ToolCall
	var currentToolArgs strings.Builder

	for stream.Next() {
		event := stream.Current()

		switch event.Type {
		case "content_block_start":
			contentBlock := event.AsContentBlockStart().ContentBlock
			if contentBlock.Type == "tool_use" {
				toolUse := contentBlock.AsToolUse()
				currentToolCall = &models.ToolCall{
					ID:   toolUse.ID,
					Type: "function",
					Name: toolUse.Name,
				}
				currentToolArgs.Reset()
			}

		case "content_block_delta":
			delta := event.AsContentBlockDelta().Delta
			switch delta.Type {
			case "text_delta":
				if delta.Text != "" {
					events <- StreamEvent{Text: delta.Text}
				}
			case "input_json_delta":
				if delta.PartialJSON != "" {
					currentToolArgs.WriteString(delta.PartialJSON)
				}
			}

		case "content_block_stop":
			if currentToolCall != nil {
				args := currentToolArgs.String()
				if args == "" {
					args = "{}"
				}
				currentToolCall.Arguments = json.RawMessage(args)
				events <- StreamEvent{ToolCall: currentToolCall}
				currentToolCall = nil
			}

		case "message_stop":
			events <- StreamEvent{Done: true}
			return

		case "error":
			events <- StreamEvent{Err: errors.New("anthropic: stream error")}
			return
		}
	}

	if err := stream.Err(); err != nil {
		events <- StreamEvent{Err: fmt.Errorf("anthropic: stream failed: %w", err)}
		return
	}
	events <- StreamEvent{Done: true}
}

// convertAnthropicMessages maps runtime messages to Anthropic's format.
// The system prompt is extracted (Anthropic takes it as a separate
// parameter) and tool-result messages become user-role tool_result blocks.
func convertAnthropicMessages(messages []models.Message) (string, []anthropic.MessageParam, error) {
	var system string
	var result []anthropic.MessageParam

	for _, msg := range messages {
		switch msg.Role {
		case models.RoleSystem:
			system = msg.Content
			continue

		case models.RoleTool:
			result = append(result, anthropic.NewUserMessage(
				anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, false),
			))
			continue
		}

		var content []anthropic.ContentBlockParamUnion
		if msg.Content != "" {
			content = append(content, anthropic.NewTextBlock(msg.Content))
		}
		for _, tc := range msg.ToolCalls {
			var input map[string]interface{}
			if err := json.Unmarshal(tc.Arguments, &input); err != nil {
				return "", nil, fmt.Errorf("invalid tool call arguments for %s: %w", tc.Name, err)
			}
			content = append(content, anthropic.NewToolUseBlock(tc.ID, input, tc.Name))
		}
		if len(content) == 0 {
			continue
		}

		if msg.Role == models.RoleAssistant {
			result = append(result, anthropic.NewAssistantMessage(content...))
		} else {
			result = append(result, anthropic.NewUserMessage(content...))
		}
	}

	return system, result, nil
}

func convertAnthropicTools(tools []ToolDefinition) ([]anthropic.ToolUnionParam, error) {
	var result []anthropic.ToolUnionParam
	for _, tool := range tools {
		var schema anthropic.ToolInputSchemaParam
		if err := json.Unmarshal(tool.Parameters, &schema); err != nil {
			return nil, fmt.Errorf("invalid tool schema for %s: %w", tool.Name, err)
		}
		param := anthropic.ToolUnionParamOfTool(schema, tool.Name)
		if param.OfTool == nil {
			return nil, fmt.Errorf("invalid tool schema for %s: missing tool definition", tool.Name)
		}
		param.OfTool.Description = anthropic.String(tool.Description)
		result = append(result, param)
	}
	return result, nil
}

// isRetryableError classifies transient failures worth retrying: rate
// limits, server errors, timeouts, and connection faults.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())

	if strings.Contains(msg, "rate_limit") ||
		strings.Contains(msg, "429") ||
		strings.Contains(msg, "too many requests") {
		return true
	}
	if strings.Contains(msg, "500") ||
		strings.Contains(msg, "502") ||
		strings.Contains(msg, "503") ||
		strings.Contains(msg, "504") ||
		strings.Contains(msg, "internal server error") ||
		strings.Contains(msg, "bad gateway") ||
		strings.Contains(msg, "service unavailable") ||
		strings.Contains(msg, "gateway timeout") {
		return true
	}
	if strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "deadline exceeded") {
		return true
	}
	if strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "no such host") {
		return true
	}
	return false
}
