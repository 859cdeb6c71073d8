// Package workspace manages the agent's working directory: seeding the
// bootstrap documents, loading them for prompt assembly, and reading the
// file-based memory.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
)

// BootstrapFile is one document seeded into a fresh workspace.
type BootstrapFile struct {
	Name    string
	Content string
}

// BootstrapResult records which files were created and which already
// existed.
type BootstrapResult struct {
	Created []string
	Skipped []string
}

// DefaultBootstrapFiles returns the documents every workspace starts with.
func DefaultBootstrapFiles() []BootstrapFile {
	return []BootstrapFile{
		{
			Name: "AGENTS.md",
			Content: "# AGENTS.md - Workspace Instructions\n\n" +
				"This workspace is the assistant's working directory.\n\n" +
				"## Safety\n" +
				"- Do not exfiltrate secrets or private data.\n" +
				"- Avoid destructive actions unless explicitly requested.\n\n" +
				"## Workflow\n" +
				"- Be concise in chat; put longer output in files.\n" +
				"- Ask clarifying questions when requirements are unclear.\n" +
				"- Append day notes in memory/YYYY-MM-DD.md.\n",
		},
		{
			Name: "SOUL.md",
			Content: "# SOUL.md - Persona & Boundaries\n\n" +
				"- Tone: concise, direct, and friendly.\n" +
				"- Ask clarifying questions when needed.\n",
		},
		{
			Name: "USER.md",
			Content: "# USER.md - User Profile\n\n" +
				"- Name:\n" +
				"- Preferred address:\n" +
				"- Timezone (optional):\n" +
				"- Notes:\n",
		},
		{
			Name: "IDENTITY.md",
			Content: "# IDENTITY.md - Agent Identity\n\n" +
				"- Name:\n" +
				"- Vibe:\n" +
				"- Emoji:\n",
		},
		{
			Name: "TOOLS.md",
			Content: "# TOOLS.md - User Tool Notes (editable)\n\n" +
				"Add notes about local tools, conventions, or shortcuts here.\n",
		},
		{
			Name: "MEMORY.md",
			Content: "# MEMORY.md - Long-Term Memory\n\n" +
				"Capture durable facts, preferences, and decisions here.\n",
		},
	}
}

// EnsureWorkspace creates the workspace directory tree and seeds any
// missing bootstrap files. Existing files are never overwritten.
func EnsureWorkspace(root string) (BootstrapResult, error) {
	var result BootstrapResult

	for _, dir := range []string{root, filepath.Join(root, "memory"), filepath.Join(root, "skills")} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return result, fmt.Errorf("create workspace dir: %w", err)
		}
	}

	for _, file := range DefaultBootstrapFiles() {
		path := filepath.Join(root, file.Name)
		if _, err := os.Stat(path); err == nil {
			result.Skipped = append(result.Skipped, file.Name)
			continue
		} else if !os.IsNotExist(err) {
			return result, fmt.Errorf("stat %s: %w", file.Name, err)
		}
		if err := os.WriteFile(path, []byte(file.Content), 0o644); err != nil {
			return result, fmt.Errorf("seed %s: %w", file.Name, err)
		}
		result.Created = append(result.Created, file.Name)
	}

	return result, nil
}
