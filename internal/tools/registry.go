// Package tools defines the tool contract the agent loop executes against
// and the registry that validates and dispatches tool calls.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/haasonsaas/relay/internal/observability"
	"github.com/haasonsaas/relay/internal/providers"
)

// Tool is one callable capability exposed to the model.
//
// Execute returns the result content handed back to the model as a tool
// message. Faults are returned as errors; the loop reports them to the
// model rather than aborting the turn.
type Tool interface {
	Name() string
	Description() string

	// Schema returns the JSON Schema for the tool's arguments.
	Schema() json.RawMessage

	Execute(ctx context.Context, args json.RawMessage) (string, error)
}

// Registry holds the registered tools and dispatches validated calls.
// Safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool

	// compiled caches schemas by tool name so validation compiles once.
	compiled sync.Map

	log     *observability.Logger
	metrics *observability.Metrics
}

// NewRegistry creates an empty registry. metrics may be nil.
func NewRegistry(log *observability.Logger, metrics *observability.Metrics) *Registry {
	return &Registry{
		tools:   make(map[string]Tool),
		log:     log,
		metrics: metrics,
	}
}

// Register adds a tool, replacing any existing tool with the same name.
func (r *Registry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name()] = tool
	r.compiled.Delete(tool.Name())
}

// Get returns the named tool.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// List returns all registered tools sorted by name.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]Tool, 0, len(r.tools))
	for _, tool := range r.tools {
		result = append(result, tool)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name() < result[j].Name() })
	return result
}

// Definitions returns the provider-facing definitions of all tools,
// sorted by name.
func (r *Registry) Definitions() []providers.ToolDefinition {
	tools := r.List()
	defs := make([]providers.ToolDefinition, 0, len(tools))
	for _, tool := range tools {
		defs = append(defs, providers.ToolDefinition{
			Name:        tool.Name(),
			Description: tool.Description(),
			Parameters:  tool.Schema(),
		})
	}
	return defs
}

// Execute validates args against the tool's schema and runs it.
func (r *Registry) Execute(ctx context.Context, name string, args json.RawMessage) (string, error) {
	tool, ok := r.Get(name)
	if !ok {
		r.observe(name, "unknown", 0)
		return "", fmt.Errorf("unknown tool %q", name)
	}

	if err := r.validateArgs(tool, args); err != nil {
		r.observe(name, "invalid_args", 0)
		return "", fmt.Errorf("invalid arguments for %s: %w", name, err)
	}

	start := time.Now()
	result, err := tool.Execute(ctx, args)
	elapsed := time.Since(start)
	if err != nil {
		r.observe(name, "error", elapsed)
		if r.log != nil {
			r.log.Warn(ctx, "tool execution failed", "tool", name, "error", err)
		}
		return "", err
	}
	r.observe(name, "ok", elapsed)
	return result, nil
}

func (r *Registry) validateArgs(tool Tool, args json.RawMessage) error {
	schema, err := r.compileSchema(tool)
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	var decoded any
	if err := json.Unmarshal(args, &decoded); err != nil {
		return fmt.Errorf("decode arguments: %w", err)
	}
	return schema.Validate(decoded)
}

func (r *Registry) compileSchema(tool Tool) (*jsonschema.Schema, error) {
	if cached, ok := r.compiled.Load(tool.Name()); ok {
		if compiled, ok := cached.(*jsonschema.Schema); ok {
			return compiled, nil
		}
	}
	compiled, err := jsonschema.CompileString(tool.Name()+".schema.json", string(tool.Schema()))
	if err != nil {
		return nil, err
	}
	r.compiled.Store(tool.Name(), compiled)
	return compiled, nil
}

func (r *Registry) observe(name, status string, elapsed time.Duration) {
	if r.metrics == nil {
		return
	}
	r.metrics.ToolExecutionCounter.WithLabelValues(name, status).Inc()
	if status == "ok" || status == "error" {
		r.metrics.ToolExecutionDuration.WithLabelValues(name).Observe(elapsed.Seconds())
	}
}
