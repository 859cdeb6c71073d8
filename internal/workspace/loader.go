package workspace

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Context holds the loaded workspace documents used during prompt
// assembly. Missing files load as empty strings.
type Context struct {
	Agents   string
	Soul     string
	User     string
	Identity string
	Tools    string
}

// Load reads the bootstrap documents from the workspace root.
func Load(root string) Context {
	return Context{
		Agents:   readIfPresent(filepath.Join(root, "AGENTS.md")),
		Soul:     readIfPresent(filepath.Join(root, "SOUL.md")),
		User:     readIfPresent(filepath.Join(root, "USER.md")),
		Identity: readIfPresent(filepath.Join(root, "IDENTITY.md")),
		Tools:    readIfPresent(filepath.Join(root, "TOOLS.md")),
	}
}

// Sections returns the non-empty documents in prompt order, each prefixed
// with a header naming its source file.
func (c Context) Sections() []string {
	ordered := []struct {
		name    string
		content string
	}{
		{"AGENTS.md", c.Agents},
		{"SOUL.md", c.Soul},
		{"USER.md", c.User},
		{"IDENTITY.md", c.Identity},
		{"TOOLS.md", c.Tools},
	}
	var sections []string
	for _, doc := range ordered {
		trimmed := strings.TrimSpace(doc.content)
		if trimmed == "" {
			continue
		}
		sections = append(sections, "## "+doc.name+"\n\n"+trimmed)
	}
	return sections
}

// memoryDayCount is how many recent daily notes are folded into context.
const memoryDayCount = 3

// LoadMemory returns the long-term memory document followed by the most
// recent daily notes (today and the previous memoryDayCount-1 days).
// Missing files are skipped.
func LoadMemory(root string, now time.Time) string {
	var parts []string

	if memory := strings.TrimSpace(readIfPresent(filepath.Join(root, "MEMORY.md"))); memory != "" {
		parts = append(parts, memory)
	}

	for i := memoryDayCount - 1; i >= 0; i-- {
		day := now.AddDate(0, 0, -i)
		name := day.Format("2006-01-02") + ".md"
		note := strings.TrimSpace(readIfPresent(filepath.Join(root, "memory", name)))
		if note == "" {
			continue
		}
		parts = append(parts, "### "+day.Format("2006-01-02")+"\n\n"+note)
	}

	return strings.Join(parts, "\n\n")
}

func readIfPresent(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(data)
}
