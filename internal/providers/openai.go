package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/haasonsaas/relay/pkg/models"
)

// OpenAIClient implements LLMClient for OpenAI-compatible chat APIs.
//
// Unlike Anthropic, the system prompt stays inline in the messages array
// and tool calls stream incrementally (id, name, then argument fragments)
// and must be accumulated by index until the finish reason arrives.
type OpenAIClient struct {
	client        *openai.Client
	model         string
	contextWindow int
	maxRetries    int
	retryDelay    time.Duration
}

// OpenAIConfig holds settings for NewOpenAIClient. APIKey is required.
// BaseURL allows pointing at any OpenAI-compatible endpoint.
type OpenAIConfig struct {
	APIKey        string
	BaseURL       string
	Model         string
	ContextWindow int
	MaxRetries    int
	RetryDelay    time.Duration
}

// NewOpenAIClient creates an OpenAI client with defaults applied.
func NewOpenAIClient(config OpenAIConfig) (*OpenAIClient, error) {
	if config.APIKey == "" {
		return nil, errors.New("openai: API key is required")
	}
	if config.Model == "" {
		config.Model = "gpt-4o"
	}
	if config.ContextWindow <= 0 {
		config.ContextWindow = 128000
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 3
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = time.Second
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	return &OpenAIClient{
		client:        openai.NewClientWithConfig(clientConfig),
		model:         config.Model,
		contextWindow: config.ContextWindow,
		maxRetries:    config.MaxRetries,
		retryDelay:    config.RetryDelay,
	}, nil
}

// Name returns "openai".
func (c *OpenAIClient) Name() string {
	return "openai"
}

// ContextWindow returns the configured model token budget.
func (c *OpenAIClient) ContextWindow() int {
	return c.contextWindow
}

// Chat sends the request and blocks until the complete reply is available.
func (c *OpenAIClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	events, err := c.ChatStream(ctx, req)
	if err != nil {
		return nil, err
	}
	return collectStream(events)
}

// ChatStream sends the request and streams reply events. The returned
// channel is closed after the terminal event.
func (c *OpenAIClient) ChatStream(ctx context.Context, req *ChatRequest) (<-chan StreamEvent, error) {
	events := make(chan StreamEvent)

	go func() {
		defer close(events)

		request := openai.ChatCompletionRequest{
			Model:    c.model,
			Messages: convertOpenAIMessages(req.Messages),
			Stream:   true,
		}
		if req.MaxTokens > 0 {
			request.MaxTokens = req.MaxTokens
		}
		if req.Temperature > 0 {
			request.Temperature = float32(req.Temperature)
		}
		if len(req.Tools) > 0 {
			request.Tools = convertOpenAITools(req.Tools)
		}

		var stream *openai.ChatCompletionStream
		var err error
		for attempt := 0; attempt <= c.maxRetries; attempt++ {
			stream, err = c.client.CreateChatCompletionStream(ctx, request)
			if err == nil {
				break
			}
			if !isRetryableError(err) {
				events <- StreamEvent{Err: fmt.Errorf("openai: %w", err)}
				return
			}
			if attempt < c.maxRetries {
				select {
				case <-ctx.Done():
					events <- StreamEvent{Err: ctx.Err()}
					return
				case <-time.After(c.retryDelay * time.Duration(attempt+1)):
				}
			}
		}
		if err != nil {
			events <- StreamEvent{Err: fmt.Errorf("openai: max retries exceeded: %w", err)}
			return
		}
		defer stream.Close()

		c.processStream(stream, events)
	}()

	return events, nil
}

// processStream consumes completion chunks, emitting text deltas as they
// arrive and assembling tool calls across chunks by index.
func (c *OpenAIClient) processStream(stream *openai.ChatCompletionStream, events chan<- StreamEvent) {
	type pendingCall struct {
		id   string
		name string
		args []byte
	}
	pending := make(map[int]*pendingCall)
	order := []int{}

	flush := func() {
		for _, idx := range order {
			call := pending[idx]
			if call == nil || call.name == "" {
				continue
			}
			args := call.args
			if len(args) == 0 {
				args = []byte("{}")
			}
			events <- StreamEvent{ToolCall: &models.ToolCall{
				ID:        call.id,
				Type:      "function",
				Name:      call.name,
				Arguments: json.RawMessage(args),
			}}
		}
		pending = make(map[int]*pendingCall)
		order = order[:0]
	}

	for {
		response, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			flush()
			events <- StreamEvent{Done: true}
			return
		}
		if err != nil {
			events <- StreamEvent{Err: fmt.Errorf("openai: stream failed: %w", err)}
			return
		}
		if len(response.Choices) == 0 {
			continue
		}

		choice := response.Choices[0]
		if choice.Delta.Content != "" {
			events <- StreamEvent{Text: choice.Delta.Content}
		}

		for _, tc := range choice.Delta.ToolCalls {
			idx := 0
			if tc.Index != nil {
				idx = *tc.Index
			}
			call, ok := pending[idx]
			if !ok {
				call = &pendingCall{}
				pending[idx] = call
				order = append(order, idx)
			}
			if tc.ID != "" {
				call.id = tc.ID
			}
			if tc.Function.Name != "" {
				call.name = tc.Function.Name
			}
			if tc.Function.Arguments != "" {
				call.args = append(call.args, tc.Function.Arguments...)
			}
		}

		if choice.FinishReason == openai.FinishReasonToolCalls {
			flush()
		}
	}
}

func convertOpenAIMessages(messages []models.Message) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		converted := openai.ChatCompletionMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		}
		if msg.ToolCallID != "" {
			converted.ToolCallID = msg.ToolCallID
		}
		for _, tc := range msg.ToolCalls {
			converted.ToolCalls = append(converted.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: string(tc.Arguments),
				},
			})
		}
		result = append(result, converted)
	}
	return result
}

func convertOpenAITools(tools []ToolDefinition) []openai.Tool {
	result := make([]openai.Tool, 0, len(tools))
	for _, tool := range tools {
		result = append(result, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			},
		})
	}
	return result
}
