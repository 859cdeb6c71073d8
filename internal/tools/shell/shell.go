// Package shell provides a workspace-scoped command execution tool.
package shell

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const maxOutputBytes = 100000

// Tool runs shell commands in the workspace with a bounded timeout.
type Tool struct {
	workdir string
	timeout time.Duration
}

// New creates a shell tool. timeout bounds every command; a non-positive
// value falls back to 60 seconds.
func New(workdir string, timeout time.Duration) *Tool {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Tool{workdir: workdir, timeout: timeout}
}

func (t *Tool) Name() string { return "exec" }

func (t *Tool) Description() string {
	return "Run a shell command in the workspace and return its output."
}

func (t *Tool) Schema() json.RawMessage {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"command": map[string]interface{}{
				"type":        "string",
				"description": "Shell command to execute.",
			},
			"timeout_seconds": map[string]interface{}{
				"type":        "integer",
				"description": "Timeout in seconds (capped by the tool default).",
				"minimum":     0,
			},
		},
		"required": []string{"command"},
	}
	payload, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return payload
}

func (t *Tool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var input struct {
		Command        string `json:"command"`
		TimeoutSeconds int    `json:"timeout_seconds"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return "", fmt.Errorf("invalid parameters: %w", err)
	}
	command := strings.TrimSpace(input.Command)
	if command == "" {
		return "", fmt.Errorf("command is required")
	}

	timeout := t.timeout
	if input.TimeoutSeconds > 0 {
		requested := time.Duration(input.TimeoutSeconds) * time.Second
		if requested < timeout {
			timeout = requested
		}
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = t.workdir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	output := out.String()
	if len(output) > maxOutputBytes {
		output = output[:maxOutputBytes] + "\n... [output truncated]"
	}
	if ctx.Err() == context.DeadlineExceeded {
		return "", fmt.Errorf("command timed out after %s", timeout)
	}
	if err != nil {
		if output == "" {
			return "", fmt.Errorf("command failed: %w", err)
		}
		return "", fmt.Errorf("command failed: %w\n%s", err, output)
	}
	if output == "" {
		return "(no output)", nil
	}
	return output, nil
}
