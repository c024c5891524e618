package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPrintStatusNoRuntimeDir(t *testing.T) {
	var buf bytes.Buffer
	if err := printStatus(&buf, filepath.Join(t.TempDir(), "does-not-exist")); err != nil {
		t.Fatalf("printStatus: %v", err)
	}
	if !strings.Contains(buf.String(), "not been initialized") {
		t.Fatalf("expected uninitialized message, got %q", buf.String())
	}
}

func TestPrintStatusNoConversations(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "agent-working-directory"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	var buf bytes.Buffer
	if err := printStatus(&buf, root); err != nil {
		t.Fatalf("printStatus: %v", err)
	}
	if !strings.Contains(buf.String(), "no conversations with a materialized workspace") {
		t.Fatalf("expected empty message, got %q", buf.String())
	}
}

func TestPrintStatusListsConversations(t *testing.T) {
	root := t.TempDir()
	workingDirRoot := filepath.Join(root, "agent-working-directory")
	for _, id := range []string{"conv-b", "conv-a"} {
		if err := os.MkdirAll(filepath.Join(workingDirRoot, id), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}

	var buf bytes.Buffer
	if err := printStatus(&buf, root); err != nil {
		t.Fatalf("printStatus: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "2 conversation(s)") {
		t.Fatalf("expected count line, got %q", out)
	}
	aIdx := strings.Index(out, "conv-a")
	bIdx := strings.Index(out, "conv-b")
	if aIdx == -1 || bIdx == -1 || aIdx > bIdx {
		t.Fatalf("expected conv-a before conv-b (sorted), got %q", out)
	}
}
