// Package agent implements the turn engine: context assembly, the bounded
// tool-calling iterator, background history compaction, and the
// orchestrating loop that consumes the message bus.
package agent

import (
	"fmt"
	"strings"
	"time"

	"github.com/haasonsaas/relay/internal/skills"
	"github.com/haasonsaas/relay/internal/tools"
	"github.com/haasonsaas/relay/internal/workspace"
	"github.com/haasonsaas/relay/pkg/models"
)

// sectionDelimiter visibly separates the system prompt sections.
const sectionDelimiter = "\n\n---\n\n"

// ContextBuilder assembles the message list for one model invocation.
// The system prompt is rebuilt from the live workspace on every turn, so
// edits to bootstrap documents, memory, tools, and skills take effect
// without a restart.
type ContextBuilder struct {
	workspaceRoot string
	tools         *tools.Registry
	skills        *skills.Manager

	// now is swappable for tests.
	now func() time.Time
}

// NewContextBuilder creates a builder over the workspace root. tools and
// skillMgr may be nil; their sections are then omitted.
func NewContextBuilder(workspaceRoot string, registry *tools.Registry, skillMgr *skills.Manager) *ContextBuilder {
	return &ContextBuilder{
		workspaceRoot: workspaceRoot,
		tools:         registry,
		skills:        skillMgr,
		now:           time.Now,
	}
}

// BuildMessages returns the full context for a turn:
// [system] + history + [user:currentText].
func (b *ContextBuilder) BuildMessages(history []models.Message, summary, currentText, channel, chatID string) []models.Message {
	messages := make([]models.Message, 0, len(history)+2)
	messages = append(messages, models.Message{
		Role:    models.RoleSystem,
		Content: b.systemPrompt(summary, channel, chatID),
	})
	messages = append(messages, history...)
	messages = append(messages, models.Message{
		Role:    models.RoleUser,
		Content: currentText,
	})
	return messages
}

func (b *ContextBuilder) systemPrompt(summary, channel, chatID string) string {
	var sections []string

	sections = append(sections, b.identitySection())

	if docs := workspace.Load(b.workspaceRoot).Sections(); len(docs) > 0 {
		sections = append(sections, strings.Join(docs, "\n\n"))
	}
	if toolSection := b.toolSection(); toolSection != "" {
		sections = append(sections, toolSection)
	}
	if skillSection := b.skillSection(); skillSection != "" {
		sections = append(sections, skillSection)
	}
	if memory := workspace.LoadMemory(b.workspaceRoot, b.now()); memory != "" {
		sections = append(sections, "## Memory\n\n"+memory)
	}

	prompt := strings.Join(sections, sectionDelimiter)

	var footer strings.Builder
	footer.WriteString(prompt)
	footer.WriteString(sectionDelimiter)
	fmt.Fprintf(&footer, "Current conversation: %s", models.SessionKey(models.ChannelType(channel), chatID))
	if summary != "" {
		footer.WriteString("\n\n## Conversation summary (earlier context)\n\n")
		footer.WriteString(summary)
	}
	return footer.String()
}

func (b *ContextBuilder) identitySection() string {
	var s strings.Builder
	s.WriteString("You are a personal AI assistant reachable over chat channels.\n")
	fmt.Fprintf(&s, "Current time: %s\n", b.now().Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&s, "Workspace: %s", b.workspaceRoot)
	return s.String()
}

func (b *ContextBuilder) toolSection() string {
	if b.tools == nil {
		return ""
	}
	list := b.tools.List()
	if len(list) == 0 {
		return ""
	}
	var s strings.Builder
	s.WriteString("## Tools\n")
	for _, tool := range list {
		fmt.Fprintf(&s, "- %s: %s\n", tool.Name(), tool.Description())
	}
	return strings.TrimRight(s.String(), "\n")
}

func (b *ContextBuilder) skillSection() string {
	if b.skills == nil {
		return ""
	}
	list := b.skills.List()
	if len(list) == 0 {
		return ""
	}
	var s strings.Builder
	s.WriteString("## Skills\n")
	for _, skill := range list {
		fmt.Fprintf(&s, "- %s: %s\n", skill.Name, skill.Description)
	}
	return strings.TrimRight(s.String(), "\n")
}
