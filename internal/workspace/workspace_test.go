package workspace

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestEnsureWorkspaceSeedsFiles(t *testing.T) {
	root := t.TempDir()

	result, err := EnsureWorkspace(root)
	if err != nil {
		t.Fatalf("EnsureWorkspace() error = %v", err)
	}
	if len(result.Created) != len(DefaultBootstrapFiles()) {
		t.Fatalf("created %d files, want %d", len(result.Created), len(DefaultBootstrapFiles()))
	}
	for _, name := range []string{"AGENTS.md", "MEMORY.md"} {
		if _, err := os.Stat(filepath.Join(root, name)); err != nil {
			t.Fatalf("%s not seeded: %v", name, err)
		}
	}
	for _, dir := range []string{"memory", "skills"} {
		info, err := os.Stat(filepath.Join(root, dir))
		if err != nil || !info.IsDir() {
			t.Fatalf("%s directory not created", dir)
		}
	}
}

func TestEnsureWorkspaceNeverOverwrites(t *testing.T) {
	root := t.TempDir()
	custom := "# my edited agents file\n"
	if err := os.WriteFile(filepath.Join(root, "AGENTS.md"), []byte(custom), 0o644); err != nil {
		t.Fatal(err)
	}

	result, err := EnsureWorkspace(root)
	if err != nil {
		t.Fatalf("EnsureWorkspace() error = %v", err)
	}
	found := false
	for _, name := range result.Skipped {
		if name == "AGENTS.md" {
			found = true
		}
	}
	if !found {
		t.Fatal("existing AGENTS.md should be skipped")
	}
	data, _ := os.ReadFile(filepath.Join(root, "AGENTS.md"))
	if string(data) != custom {
		t.Fatal("existing file was overwritten")
	}
}

func TestLoadSectionsSkipsMissing(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "SOUL.md"), []byte("be kind"), 0o644); err != nil {
		t.Fatal(err)
	}

	sections := Load(root).Sections()
	if len(sections) != 1 {
		t.Fatalf("expected 1 section, got %d", len(sections))
	}
	if !strings.Contains(sections[0], "SOUL.md") || !strings.Contains(sections[0], "be kind") {
		t.Fatalf("unexpected section: %q", sections[0])
	}
}

func TestLoadMemoryIncludesRecentDays(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "memory"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "MEMORY.md"), []byte("long term facts"), 0o644); err != nil {
		t.Fatal(err)
	}

	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	write := func(day time.Time, content string) {
		name := day.Format("2006-01-02") + ".md"
		if err := os.WriteFile(filepath.Join(root, "memory", name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write(now, "today note")
	write(now.AddDate(0, 0, -1), "yesterday note")
	write(now.AddDate(0, 0, -5), "stale note")

	memory := LoadMemory(root, now)
	if !strings.Contains(memory, "long term facts") {
		t.Fatal("MEMORY.md content missing")
	}
	if !strings.Contains(memory, "today note") || !strings.Contains(memory, "yesterday note") {
		t.Fatal("recent daily notes missing")
	}
	if strings.Contains(memory, "stale note") {
		t.Fatal("notes older than the window must not load")
	}
	// older notes appear before newer ones
	if strings.Index(memory, "yesterday note") > strings.Index(memory, "today note") {
		t.Fatal("daily notes out of order")
	}
}

func TestLoadMemoryEmptyWorkspace(t *testing.T) {
	if got := LoadMemory(t.TempDir(), time.Now()); got != "" {
		t.Fatalf("expected empty memory, got %q", got)
	}
}
