package agent

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/haasonsaas/relay/internal/skills"
	"github.com/haasonsaas/relay/internal/tools"
	"github.com/haasonsaas/relay/internal/workspace"
	"github.com/haasonsaas/relay/pkg/models"
)

type echoTool struct{}

func (echoTool) Name() string        { return "echo" }
func (echoTool) Description() string { return "echoes its input back" }
func (echoTool) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{}}`)
}
func (echoTool) Execute(_ context.Context, args json.RawMessage) (string, error) {
	return string(args), nil
}

func TestBuildMessagesShape(t *testing.T) {
	root := t.TempDir()
	builder := NewContextBuilder(root, nil, nil)

	history := []models.Message{
		{Role: models.RoleUser, Content: "earlier question"},
		{Role: models.RoleAssistant, Content: "earlier answer"},
	}
	messages := builder.BuildMessages(history, "", "what now?", "telegram", "42")

	if len(messages) != 4 {
		t.Fatalf("len = %d, want system + 2 history + user", len(messages))
	}
	if messages[0].Role != models.RoleSystem {
		t.Fatalf("messages[0].Role = %q", messages[0].Role)
	}
	if messages[1].Content != "earlier question" || messages[2].Content != "earlier answer" {
		t.Fatal("history not carried in order")
	}
	if messages[3].Role != models.RoleUser || messages[3].Content != "what now?" {
		t.Fatalf("tail = %+v", messages[3])
	}
}

func TestSystemPromptIdentityAndConversation(t *testing.T) {
	root := t.TempDir()
	builder := NewContextBuilder(root, nil, nil)

	prompt := builder.BuildMessages(nil, "", "hi", "telegram", "42")[0].Content
	if !strings.Contains(prompt, "Current time: ") {
		t.Fatal("missing current time")
	}
	if !strings.Contains(prompt, "Workspace: "+root) {
		t.Fatal("missing workspace path")
	}
	if !strings.Contains(prompt, "Current conversation: telegram:42") {
		t.Fatalf("missing conversation key: %q", prompt)
	}
	if strings.Contains(prompt, "Conversation summary") {
		t.Fatal("summary section present without a summary")
	}
}

func TestSystemPromptIncludesSummary(t *testing.T) {
	builder := NewContextBuilder(t.TempDir(), nil, nil)

	prompt := builder.BuildMessages(nil, "user prefers terse replies", "hi", "cli", "direct")[0].Content
	if !strings.Contains(prompt, "## Conversation summary (earlier context)\n\nuser prefers terse replies") {
		t.Fatalf("summary not in footer: %q", prompt)
	}
}

func TestSystemPromptWorkspaceDocs(t *testing.T) {
	root := t.TempDir()
	if _, err := workspace.EnsureWorkspace(root); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "SOUL.md"), []byte("Be direct and kind."), 0o644); err != nil {
		t.Fatal(err)
	}
	builder := NewContextBuilder(root, nil, nil)

	prompt := builder.BuildMessages(nil, "", "hi", "cli", "direct")[0].Content
	if !strings.Contains(prompt, "## SOUL.md\n\nBe direct and kind.") {
		t.Fatalf("bootstrap doc missing: %q", prompt)
	}
	if !strings.Contains(prompt, sectionDelimiter) {
		t.Fatal("sections not delimited")
	}
}

func TestSystemPromptToolAndSkillSections(t *testing.T) {
	root := t.TempDir()
	registry := tools.NewRegistry(nil, nil)
	registry.Register(echoTool{})

	skillDir := filepath.Join(root, "skills", "daily-summary")
	if err := os.MkdirAll(skillDir, 0o755); err != nil {
		t.Fatal(err)
	}
	skillDoc := "---\nname: daily-summary\ndescription: summarize the day\n---\nSteps here.\n"
	if err := os.WriteFile(filepath.Join(skillDir, "SKILL.md"), []byte(skillDoc), 0o644); err != nil {
		t.Fatal(err)
	}
	mgr := skills.NewManager(root, nil)
	if err := mgr.Discover(context.Background()); err != nil {
		t.Fatal(err)
	}

	builder := NewContextBuilder(root, registry, mgr)
	prompt := builder.BuildMessages(nil, "", "hi", "cli", "direct")[0].Content

	if !strings.Contains(prompt, "## Tools\n- echo: echoes its input back") {
		t.Fatalf("tool section missing: %q", prompt)
	}
	if !strings.Contains(prompt, "## Skills\n- daily-summary: summarize the day") {
		t.Fatalf("skill section missing: %q", prompt)
	}
}

func TestSystemPromptMemorySection(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "MEMORY.md"), []byte("Lives in Lisbon."), 0o644); err != nil {
		t.Fatal(err)
	}

	builder := NewContextBuilder(root, nil, nil)
	prompt := builder.BuildMessages(nil, "", "hi", "cli", "direct")[0].Content

	if !strings.Contains(prompt, "## Memory\n\n") || !strings.Contains(prompt, "Lives in Lisbon.") {
		t.Fatalf("memory section missing: %q", prompt)
	}
}
