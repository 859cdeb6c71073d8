package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/haasonsaas/relay/internal/providers"
	"github.com/haasonsaas/relay/internal/sessions"
	"github.com/haasonsaas/relay/internal/tools"
	"github.com/haasonsaas/relay/pkg/models"
)

type scriptedTool struct {
	name string
	fn   func(ctx context.Context, args json.RawMessage) (string, error)
}

func (t *scriptedTool) Name() string            { return t.name }
func (t *scriptedTool) Description() string     { return "test tool" }
func (t *scriptedTool) Schema() json.RawMessage { return json.RawMessage(`{"type":"object"}`) }
func (t *scriptedTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	return t.fn(ctx, args)
}

func newIteratorFixture(provider *stubProvider, toolList ...tools.Tool) (*Iterator, sessions.Store) {
	registry := tools.NewRegistry(nil, nil)
	for _, tool := range toolList {
		registry.Register(tool)
	}
	store := sessions.NewMemoryStore()
	it := NewIterator(IteratorConfig{
		Provider:      provider,
		Registry:      registry,
		Store:         store,
		MaxIterations: 5,
	})
	return it, store
}

func toolCallResponse(id, name, args string) *providers.ChatResponse {
	return &providers.ChatResponse{
		ToolCalls: []models.ToolCall{
			{ID: id, Type: "function", Name: name, Arguments: json.RawMessage(args)},
		},
	}
}

func TestIteratorDirectAnswer(t *testing.T) {
	provider := &stubProvider{responses: []*providers.ChatResponse{{Content: "direct answer"}}}
	it, store := newIteratorFixture(provider)

	messages := []models.Message{
		{Role: models.RoleSystem, Content: "system"},
		{Role: models.RoleUser, Content: "question"},
	}
	reply, iterations, err := it.Run(context.Background(), "cli:direct", messages)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if reply != "direct answer" {
		t.Fatalf("reply = %q", reply)
	}
	if iterations != 1 {
		t.Fatalf("iterations = %d, want 1", iterations)
	}
	history, _ := store.GetHistory(context.Background(), "cli:direct")
	if len(history) != 0 {
		t.Fatalf("direct answers must not append tool transcript, got %d messages", len(history))
	}
}

func TestIteratorExhaustsBudgetWithEmptyResult(t *testing.T) {
	// The model asks for a tool on every round.
	provider := &stubProvider{fn: func(call int, req *providers.ChatRequest) (*providers.ChatResponse, error) {
		return toolCallResponse(fmt.Sprintf("call-%d", call), "noop", `{}`), nil
	}}
	it, store := newIteratorFixture(provider, &scriptedTool{name: "noop", fn: func(context.Context, json.RawMessage) (string, error) {
		return "ok", nil
	}})

	reply, iterations, err := it.Run(context.Background(), "cli:direct", nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if reply != "" {
		t.Fatalf("exhausted budget must return empty text, got %q", reply)
	}
	if iterations != 5 {
		t.Fatalf("iterations = %d, want 5", iterations)
	}
	if provider.callCount() != 5 {
		t.Fatalf("model calls = %d, want exactly 5", provider.callCount())
	}
	// each round appends one assistant message and one tool result
	history, _ := store.GetHistory(context.Background(), "cli:direct")
	if len(history) != 10 {
		t.Fatalf("history = %d messages, want 10", len(history))
	}
}

func TestIteratorToolFaultIsolation(t *testing.T) {
	provider := &stubProvider{responses: []*providers.ChatResponse{
		toolCallResponse("call-1", "flaky", `{}`),
		{Content: "recovered"},
	}}
	it, store := newIteratorFixture(provider, &scriptedTool{name: "flaky", fn: func(context.Context, json.RawMessage) (string, error) {
		return "", errors.New("backend unavailable")
	}})

	reply, _, err := it.Run(context.Background(), "cli:direct", nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if reply != "recovered" {
		t.Fatalf("turn must continue past tool fault, got %q", reply)
	}

	history, _ := store.GetHistory(context.Background(), "cli:direct")
	if len(history) != 2 {
		t.Fatalf("history = %d messages, want 2", len(history))
	}
	toolMsg := history[1]
	if toolMsg.Role != models.RoleTool || toolMsg.ToolCallID != "call-1" {
		t.Fatalf("unexpected tool message: %+v", toolMsg)
	}
	if !strings.HasPrefix(toolMsg.Content, "Error: ") {
		t.Fatalf("fault content = %q, want Error: prefix", toolMsg.Content)
	}
	if !strings.Contains(toolMsg.Content, "backend unavailable") {
		t.Fatalf("fault content should carry the cause, got %q", toolMsg.Content)
	}
}

func TestIteratorExecutesCallsInResponseOrder(t *testing.T) {
	provider := &stubProvider{responses: []*providers.ChatResponse{
		{ToolCalls: []models.ToolCall{
			{ID: "call-a", Type: "function", Name: "mark", Arguments: json.RawMessage(`{"tag":"a"}`)},
			{ID: "call-b", Type: "function", Name: "mark", Arguments: json.RawMessage(`{"tag":"b"}`)},
		}},
		{Content: "done"},
	}}
	var executed []string
	it, store := newIteratorFixture(provider, &scriptedTool{name: "mark", fn: func(_ context.Context, args json.RawMessage) (string, error) {
		var input struct {
			Tag string `json:"tag"`
		}
		if err := json.Unmarshal(args, &input); err != nil {
			return "", err
		}
		executed = append(executed, input.Tag)
		return "marked " + input.Tag, nil
	}})

	if _, _, err := it.Run(context.Background(), "cli:direct", nil); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(executed) != 2 || executed[0] != "a" || executed[1] != "b" {
		t.Fatalf("execution order = %v, want [a b]", executed)
	}

	history, _ := store.GetHistory(context.Background(), "cli:direct")
	// assistant message first, then results in call order
	if len(history) != 3 {
		t.Fatalf("history = %d messages, want 3", len(history))
	}
	if len(history[0].ToolCalls) != 2 {
		t.Fatalf("assistant message must echo both tool calls, got %d", len(history[0].ToolCalls))
	}
	if history[1].ToolCallID != "call-a" || history[2].ToolCallID != "call-b" {
		t.Fatalf("tool results out of order: %q, %q", history[1].ToolCallID, history[2].ToolCallID)
	}
}

func TestIteratorPropagatesLLMError(t *testing.T) {
	provider := &stubProvider{err: errors.New("model offline")}
	it, _ := newIteratorFixture(provider)

	_, _, err := it.Run(context.Background(), "cli:direct", nil)
	if err == nil || !strings.Contains(err.Error(), "model offline") {
		t.Fatalf("expected wrapped model error, got %v", err)
	}
}

func TestIteratorRunningListGrowsAcrossRounds(t *testing.T) {
	var secondCallMessages int
	provider := &stubProvider{fn: func(call int, req *providers.ChatRequest) (*providers.ChatResponse, error) {
		if call == 0 {
			return toolCallResponse("call-1", "noop", `{}`), nil
		}
		secondCallMessages = len(req.Messages)
		return &providers.ChatResponse{Content: "final"}, nil
	}}
	it, _ := newIteratorFixture(provider, &scriptedTool{name: "noop", fn: func(context.Context, json.RawMessage) (string, error) {
		return "ok", nil
	}})

	seed := []models.Message{
		{Role: models.RoleSystem, Content: "s"},
		{Role: models.RoleUser, Content: "u"},
	}
	if _, _, err := it.Run(context.Background(), "cli:direct", seed); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	// seed 2 + assistant + tool result = 4
	if secondCallMessages != 4 {
		t.Fatalf("second round saw %d messages, want 4", secondCallMessages)
	}
}

func TestIteratorStreamForwardsChunks(t *testing.T) {
	provider := &stubProvider{responses: []*providers.ChatResponse{{Content: "streamed text"}}}
	it, _ := newIteratorFixture(provider)

	var chunks []string
	reply, _, err := it.RunStream(context.Background(), "cli:direct", nil, func(chunk string) {
		chunks = append(chunks, chunk)
	})
	if err != nil {
		t.Fatalf("RunStream() error = %v", err)
	}
	if reply != "streamed text" {
		t.Fatalf("reply = %q", reply)
	}
	if strings.Join(chunks, "") != "streamed text" {
		t.Fatalf("chunks = %v", chunks)
	}
}
