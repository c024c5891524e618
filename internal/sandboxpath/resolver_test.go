package sandboxpath

import (
	"path/filepath"
	"testing"

	"github.com/fenwick-ai/agentrt/internal/rterr"
)

func TestResolveInsideWorkspace(t *testing.T) {
	r := NewResolver("/workspaces/conv-1")
	got, err := r.Resolve("notes.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := filepath.Clean("/workspaces/conv-1/notes.txt")
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestResolveStripsMntPrefix(t *testing.T) {
	r := NewResolver("/workspaces/conv-1")
	got, err := r.Resolve("/mnt/a/b.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := filepath.Clean("/workspaces/conv-1/a/b.txt")
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestResolveBareMnt(t *testing.T) {
	r := NewResolver("/workspaces/conv-1")
	got, err := r.Resolve("/mnt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != filepath.Clean("/workspaces/conv-1") {
		t.Fatalf("got %q", got)
	}
}

func TestResolveRejectsEscape(t *testing.T) {
	r := NewResolver("/workspaces/conv-1")
	_, err := r.Resolve("../..")
	if err == nil {
		t.Fatal("expected an error for a path escaping the workspace")
	}
	if !rterr.Is(err, rterr.SandboxViolation) {
		t.Fatalf("expected SandboxViolation, got %v", err)
	}
}

func TestResolvePermitsConversationDataSymlink(t *testing.T) {
	r := NewResolver("/workspaces/conv-1")
	got, err := r.Resolve("conversation_data/output.json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := filepath.Clean("/workspaces/conv-1/conversation_data/output.json")
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestResolveRejectsEscapeIntoDisallowedName(t *testing.T) {
	r := NewResolver("/workspaces/conv-1")
	_, err := r.Resolve("../../etc/passwd")
	if err == nil {
		t.Fatal("expected rejection")
	}
}

func TestResolveAllowsEscapeOnlyIntoPermittedRoots(t *testing.T) {
	r := NewResolver("/workspaces/conv-1")
	// Simulate a workspace root that is itself nested one level deep so
	// that "../agent-memory" actually leaves the root textually.
	r.WorkspaceRoot = "/workspaces/conv-1/inner"
	got, err := r.Resolve("../agent-memory/shared.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := filepath.Clean("/workspaces/conv-1/agent-memory/shared.md")
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}
