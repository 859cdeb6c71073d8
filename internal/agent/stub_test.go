package agent

import (
	"context"
	"sync"
	"time"

	"github.com/haasonsaas/relay/internal/providers"
)

// stubProvider is a scripted LLMClient for tests. Each Chat call consumes
// the next scripted response; when the script is exhausted, fn (if set)
// or the last response is used.
type stubProvider struct {
	mu        sync.Mutex
	calls     int
	requests  []*providers.ChatRequest
	responses []*providers.ChatResponse
	err       error
	fn        func(call int, req *providers.ChatRequest) (*providers.ChatResponse, error)
	window    int
	delay     time.Duration
}

func (p *stubProvider) Chat(ctx context.Context, req *providers.ChatRequest) (*providers.ChatResponse, error) {
	p.mu.Lock()
	call := p.calls
	p.calls++
	p.requests = append(p.requests, req)
	fn := p.fn
	delay := p.delay
	p.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	if p.err != nil {
		return nil, p.err
	}
	if fn != nil {
		return fn(call, req)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.responses) == 0 {
		return &providers.ChatResponse{}, nil
	}
	if call >= len(p.responses) {
		return p.responses[len(p.responses)-1], nil
	}
	return p.responses[call], nil
}

func (p *stubProvider) ChatStream(ctx context.Context, req *providers.ChatRequest) (<-chan providers.StreamEvent, error) {
	events := make(chan providers.StreamEvent, 8)
	go func() {
		defer close(events)
		resp, err := p.Chat(ctx, req)
		if err != nil {
			events <- providers.StreamEvent{Err: err}
			return
		}
		if resp.Content != "" {
			events <- providers.StreamEvent{Text: resp.Content}
		}
		for i := range resp.ToolCalls {
			events <- providers.StreamEvent{ToolCall: &resp.ToolCalls[i]}
		}
		events <- providers.StreamEvent{Done: true}
	}()
	return events, nil
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) ContextWindow() int {
	if p.window > 0 {
		return p.window
	}
	return 200000
}

func (p *stubProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func (p *stubProvider) request(i int) *providers.ChatRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	if i < 0 || i >= len(p.requests) {
		return nil
	}
	return p.requests[i]
}
