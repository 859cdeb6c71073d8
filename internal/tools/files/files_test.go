package files

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestResolverRejectsEscape(t *testing.T) {
	r := Resolver{Root: t.TempDir()}
	for _, path := range []string{"../outside", "a/../../outside", "/etc/passwd"} {
		if _, err := r.Resolve(path); err == nil {
			t.Fatalf("Resolve(%q) should have failed", path)
		}
	}
}

func TestResolverAllowsNested(t *testing.T) {
	root := t.TempDir()
	r := Resolver{Root: root}
	resolved, err := r.Resolve("notes/today.md")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !strings.HasPrefix(resolved, root) {
		t.Fatalf("resolved path %q not under root %q", resolved, root)
	}
}

func TestWriteThenRead(t *testing.T) {
	cfg := Config{Workspace: t.TempDir()}
	write := NewWriteTool(cfg)
	read := NewReadTool(cfg)
	ctx := context.Background()

	args, _ := json.Marshal(map[string]string{"path": "deep/dir/note.txt", "content": "hello workspace"})
	if _, err := write.Execute(ctx, args); err != nil {
		t.Fatalf("write Execute() error = %v", err)
	}

	args, _ = json.Marshal(map[string]string{"path": "deep/dir/note.txt"})
	got, err := read.Execute(ctx, args)
	if err != nil {
		t.Fatalf("read Execute() error = %v", err)
	}
	if got != "hello workspace" {
		t.Fatalf("read = %q, want %q", got, "hello workspace")
	}
}

func TestReadTruncatesLargeFiles(t *testing.T) {
	root := t.TempDir()
	big := strings.Repeat("x", 100)
	if err := os.WriteFile(filepath.Join(root, "big.txt"), []byte(big), 0o644); err != nil {
		t.Fatal(err)
	}

	read := NewReadTool(Config{Workspace: root, MaxReadBytes: 10})
	args, _ := json.Marshal(map[string]string{"path": "big.txt"})
	got, err := read.Execute(context.Background(), args)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(got, "[truncated at 10 bytes]") {
		t.Fatalf("expected truncation marker, got %q", got)
	}
}

func TestReadMissingFile(t *testing.T) {
	read := NewReadTool(Config{Workspace: t.TempDir()})
	args, _ := json.Marshal(map[string]string{"path": "nope.txt"})
	if _, err := read.Execute(context.Background(), args); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestListFiles(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "a.txt"), []byte("a"), 0o644); err != nil {
		t.Fatal(err)
	}

	list := NewListTool(Config{Workspace: root})
	got, err := list.Execute(context.Background(), json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if got != "a.txt\nsub/" {
		t.Fatalf("list = %q, want %q", got, "a.txt\nsub/")
	}
}
