package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
)

type fakeTool struct {
	name string
	fn   func(ctx context.Context, args json.RawMessage) (string, error)
}

func (t *fakeTool) Name() string        { return t.name }
func (t *fakeTool) Description() string { return "test tool" }

func (t *fakeTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {"value": {"type": "string"}},
		"required": ["value"]
	}`)
}

func (t *fakeTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	return t.fn(ctx, args)
}

func newTestRegistry() *Registry {
	return NewRegistry(nil, nil)
}

func TestRegistryExecute(t *testing.T) {
	reg := newTestRegistry()
	reg.Register(&fakeTool{name: "echo", fn: func(_ context.Context, args json.RawMessage) (string, error) {
		var input struct {
			Value string `json:"value"`
		}
		if err := json.Unmarshal(args, &input); err != nil {
			return "", err
		}
		return input.Value, nil
	}})

	result, err := reg.Execute(context.Background(), "echo", json.RawMessage(`{"value":"hi"}`))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result != "hi" {
		t.Fatalf("Execute() = %q, want %q", result, "hi")
	}
}

func TestRegistryExecuteUnknownTool(t *testing.T) {
	reg := newTestRegistry()
	if _, err := reg.Execute(context.Background(), "missing", nil); err == nil {
		t.Fatal("expected error for unknown tool")
	}
}

func TestRegistryValidatesArguments(t *testing.T) {
	reg := newTestRegistry()
	called := false
	reg.Register(&fakeTool{name: "strict", fn: func(context.Context, json.RawMessage) (string, error) {
		called = true
		return "", nil
	}})

	// missing required "value"
	if _, err := reg.Execute(context.Background(), "strict", json.RawMessage(`{}`)); err == nil {
		t.Fatal("expected validation error for missing required field")
	}
	// wrong type
	if _, err := reg.Execute(context.Background(), "strict", json.RawMessage(`{"value":7}`)); err == nil {
		t.Fatal("expected validation error for wrong type")
	}
	if called {
		t.Fatal("tool must not run when arguments are invalid")
	}
}

func TestRegistryPropagatesToolError(t *testing.T) {
	reg := newTestRegistry()
	fault := errors.New("disk on fire")
	reg.Register(&fakeTool{name: "boom", fn: func(context.Context, json.RawMessage) (string, error) {
		return "", fault
	}})

	_, err := reg.Execute(context.Background(), "boom", json.RawMessage(`{"value":"x"}`))
	if !errors.Is(err, fault) {
		t.Fatalf("expected tool error to propagate, got %v", err)
	}
}

func TestRegistryDefinitionsSorted(t *testing.T) {
	reg := newTestRegistry()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		reg.Register(&fakeTool{name: name, fn: func(context.Context, json.RawMessage) (string, error) {
			return "", nil
		}})
	}

	defs := reg.Definitions()
	if len(defs) != 3 {
		t.Fatalf("expected 3 definitions, got %d", len(defs))
	}
	want := []string{"alpha", "mid", "zeta"}
	for i, def := range defs {
		if def.Name != want[i] {
			t.Fatalf("definitions not sorted: got %v", defs)
		}
	}
}

func TestRegistryRegisterReplaces(t *testing.T) {
	reg := newTestRegistry()
	for i := 0; i < 2; i++ {
		i := i
		reg.Register(&fakeTool{name: "dup", fn: func(context.Context, json.RawMessage) (string, error) {
			return fmt.Sprintf("v%d", i), nil
		}})
	}
	result, err := reg.Execute(context.Background(), "dup", json.RawMessage(`{"value":"x"}`))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result != "v1" {
		t.Fatalf("expected replacement tool to run, got %q", result)
	}
}
