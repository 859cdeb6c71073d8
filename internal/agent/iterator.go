package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/haasonsaas/relay/internal/observability"
	"github.com/haasonsaas/relay/internal/providers"
	"github.com/haasonsaas/relay/internal/sessions"
	"github.com/haasonsaas/relay/internal/tools"
	"github.com/haasonsaas/relay/pkg/models"
)

// Iterator runs the bounded tool-calling loop for one turn.
//
// Each round sends the full running message list to the model. A reply
// without tool calls ends the turn. Otherwise the assistant message
// (echoing its tool calls) and one tool-result message per call are
// appended to both the running list and the session store, in response
// order, and the loop continues.
//
// If maxIterations is exhausted while the model is still requesting
// tools, Run returns an empty result. That is deliberate: the caller
// applies its own fallback text rather than surfacing a half-finished
// tool transcript.
type Iterator struct {
	provider      providers.LLMClient
	registry      *tools.Registry
	store         sessions.Store
	maxIterations int
	maxTokens     int
	temperature   float64

	log     *observability.Logger
	metrics *observability.Metrics
}

// IteratorConfig bundles the Iterator dependencies and tunables.
type IteratorConfig struct {
	Provider      providers.LLMClient
	Registry      *tools.Registry
	Store         sessions.Store
	MaxIterations int
	MaxTokens     int
	Temperature   float64
	Logger        *observability.Logger
	Metrics       *observability.Metrics
}

// NewIterator creates an iterator. MaxIterations defaults to 10.
func NewIterator(cfg IteratorConfig) *Iterator {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 10
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 8192
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = 0.7
	}
	return &Iterator{
		provider:      cfg.Provider,
		registry:      cfg.Registry,
		store:         cfg.Store,
		maxIterations: cfg.MaxIterations,
		maxTokens:     cfg.MaxTokens,
		temperature:   cfg.Temperature,
		log:           cfg.Logger,
		metrics:       cfg.Metrics,
	}
}

// Run executes the loop and returns the final text plus the number of
// model calls made.
func (it *Iterator) Run(ctx context.Context, sessionKey string, messages []models.Message) (string, int, error) {
	return it.run(ctx, sessionKey, messages, nil)
}

// RunStream is Run with text deltas forwarded to onChunk as they arrive.
// Only the final round's text streams in practice; intermediate rounds
// usually carry tool calls with little or no text.
func (it *Iterator) RunStream(ctx context.Context, sessionKey string, messages []models.Message, onChunk func(string)) (string, int, error) {
	return it.run(ctx, sessionKey, messages, onChunk)
}

func (it *Iterator) run(ctx context.Context, sessionKey string, messages []models.Message, onChunk func(string)) (string, int, error) {
	iteration := 0

	for iteration < it.maxIterations {
		iteration++

		response, err := it.chat(ctx, messages, onChunk)
		if err != nil {
			return "", iteration, fmt.Errorf("LLM call failed: %w", err)
		}

		if len(response.ToolCalls) == 0 {
			if it.log != nil {
				it.log.Debug(ctx, "turn complete", "iteration", iteration, "chars", len(response.Content))
			}
			return response.Content, iteration, nil
		}

		assistantMsg := models.Message{
			Role:      models.RoleAssistant,
			Content:   response.Content,
			ToolCalls: response.ToolCalls,
		}
		messages = append(messages, assistantMsg)
		if err := it.store.AddFullMessage(ctx, sessionKey, assistantMsg); err != nil {
			return "", iteration, fmt.Errorf("save assistant message: %w", err)
		}

		for _, call := range response.ToolCalls {
			if it.log != nil {
				it.log.Info(ctx, "executing tool", "tool", call.Name, "iteration", iteration)
			}
			content, execErr := it.registry.Execute(ctx, call.Name, call.Arguments)
			if execErr != nil {
				// Tool faults flow back to the model as results, so the
				// turn continues instead of aborting.
				content = fmt.Sprintf("Error: %v", execErr)
			}

			toolMsg := models.Message{
				Role:       models.RoleTool,
				Content:    content,
				ToolCallID: call.ID,
			}
			messages = append(messages, toolMsg)
			if err := it.store.AddFullMessage(ctx, sessionKey, toolMsg); err != nil {
				return "", iteration, fmt.Errorf("save tool message: %w", err)
			}
		}
	}

	if it.log != nil {
		it.log.Warn(ctx, "iteration budget exhausted with pending tool calls",
			"session_key", sessionKey, "iterations", iteration)
	}
	return "", iteration, nil
}

func (it *Iterator) chat(ctx context.Context, messages []models.Message, onChunk func(string)) (*providers.ChatResponse, error) {
	req := &providers.ChatRequest{
		Messages:    messages,
		Tools:       it.registry.Definitions(),
		MaxTokens:   it.maxTokens,
		Temperature: it.temperature,
	}

	start := time.Now()
	var response *providers.ChatResponse
	var err error
	if onChunk != nil {
		response, err = it.chatStreaming(ctx, req, onChunk)
	} else {
		response, err = it.provider.Chat(ctx, req)
	}
	it.observeLLM(time.Since(start), err)
	return response, err
}

func (it *Iterator) chatStreaming(ctx context.Context, req *providers.ChatRequest, onChunk func(string)) (*providers.ChatResponse, error) {
	events, err := it.provider.ChatStream(ctx, req)
	if err != nil {
		return nil, err
	}
	resp := &providers.ChatResponse{}
	var text []byte
	for ev := range events {
		if ev.Err != nil {
			return nil, ev.Err
		}
		if ev.Text != "" {
			text = append(text, ev.Text...)
			onChunk(ev.Text)
		}
		if ev.ToolCall != nil {
			resp.ToolCalls = append(resp.ToolCalls, *ev.ToolCall)
		}
	}
	resp.Content = string(text)
	return resp, nil
}

func (it *Iterator) observeLLM(elapsed time.Duration, err error) {
	if it.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	it.metrics.LLMRequestCounter.WithLabelValues(it.provider.Name(), status).Inc()
	it.metrics.LLMRequestDuration.WithLabelValues(it.provider.Name()).Observe(elapsed.Seconds())
}
