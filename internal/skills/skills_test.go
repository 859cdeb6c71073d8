package skills

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

const validSkill = `---
name: daily-summary
description: Summarize the day's notes into a digest.
---

## Steps

1. Read memory notes.
2. Produce a short digest.
`

func TestParseValidSkill(t *testing.T) {
	skill, err := Parse([]byte(validSkill), "/tmp/skills/daily-summary")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if skill.Name != "daily-summary" {
		t.Fatalf("Name = %q", skill.Name)
	}
	if skill.Description == "" {
		t.Fatal("Description empty")
	}
	if skill.Content == "" || skill.Content[0] != '#' {
		t.Fatalf("body not captured: %q", skill.Content)
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty", ""},
		{"no frontmatter", "# just markdown\n"},
		{"unterminated frontmatter", "---\nname: x\n"},
		{"missing name", "---\ndescription: d\n---\nbody"},
		{"missing description", "---\nname: x\n---\nbody"},
		{"bad name chars", "---\nname: Bad Name\ndescription: d\n---\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.data), ""); err == nil {
				t.Fatalf("Parse(%q) should fail", tt.name)
			}
		})
	}
}

func writeSkill(t *testing.T, root, dir, content string) {
	t.Helper()
	path := filepath.Join(root, "skills", dir)
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(path, SkillFilename), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestDiscover(t *testing.T) {
	root := t.TempDir()
	writeSkill(t, root, "daily-summary", validSkill)
	writeSkill(t, root, "broken", "not a skill file")

	m := NewManager(root, nil)
	if err := m.Discover(context.Background()); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	list := m.List()
	if len(list) != 1 {
		t.Fatalf("expected 1 skill (invalid one skipped), got %d", len(list))
	}
	if _, ok := m.Get("daily-summary"); !ok {
		t.Fatal("daily-summary not found")
	}
}

func TestDiscoverMissingDirIsEmpty(t *testing.T) {
	m := NewManager(t.TempDir(), nil)
	if err := m.Discover(context.Background()); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if len(m.List()) != 0 {
		t.Fatal("expected no skills")
	}
}

func TestDiscoverReplacesRemoved(t *testing.T) {
	root := t.TempDir()
	writeSkill(t, root, "daily-summary", validSkill)

	m := NewManager(root, nil)
	if err := m.Discover(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := os.RemoveAll(filepath.Join(root, "skills", "daily-summary")); err != nil {
		t.Fatal(err)
	}
	if err := m.Discover(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(m.List()) != 0 {
		t.Fatal("removed skill still listed")
	}
}
