package workspace

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEnsureCreatesLayoutAndSymlinks(t *testing.T) {
	root := t.TempDir()
	l := NewLayout(root, "conv-1")

	if err := l.Ensure(); err != nil {
		t.Fatalf("Ensure: %v", err)
	}

	for _, dir := range []string{l.WorkingDir, l.DataDir, l.MemoryDir, l.TempDir} {
		if _, err := os.Stat(dir); err != nil {
			t.Fatalf("expected %s to exist: %v", dir, err)
		}
	}

	memLink, err := os.Readlink(filepath.Join(l.WorkingDir, "agent-memory"))
	if err != nil {
		t.Fatalf("expected agent-memory symlink: %v", err)
	}
	if memLink != l.MemoryDir {
		t.Fatalf("agent-memory symlink points at %q, want %q", memLink, l.MemoryDir)
	}

	dataLink, err := os.Readlink(filepath.Join(l.WorkingDir, "conversation_data"))
	if err != nil {
		t.Fatalf("expected conversation_data symlink: %v", err)
	}
	if dataLink != l.DataDir {
		t.Fatalf("conversation_data symlink points at %q, want %q", dataLink, l.DataDir)
	}
}

func TestEnsureIsIdempotent(t *testing.T) {
	root := t.TempDir()
	l := NewLayout(root, "conv-1")

	if err := l.Ensure(); err != nil {
		t.Fatalf("first Ensure: %v", err)
	}
	if err := l.Ensure(); err != nil {
		t.Fatalf("second Ensure should be a no-op, got: %v", err)
	}
}

func TestRemoveDeletesWorkingDirOnly(t *testing.T) {
	root := t.TempDir()
	l := NewLayout(root, "conv-1")
	if err := l.Ensure(); err != nil {
		t.Fatalf("Ensure: %v", err)
	}

	if err := Remove(l, false); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(l.WorkingDir); !os.IsNotExist(err) {
		t.Fatalf("expected working dir removed, got err=%v", err)
	}
	if _, err := os.Stat(l.DataDir); err != nil {
		t.Fatalf("expected data dir to survive, got err=%v", err)
	}
}

func TestRemoveWithData(t *testing.T) {
	root := t.TempDir()
	l := NewLayout(root, "conv-1")
	if err := l.Ensure(); err != nil {
		t.Fatalf("Ensure: %v", err)
	}

	if err := Remove(l, true); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(l.DataDir); !os.IsNotExist(err) {
		t.Fatalf("expected data dir removed, got err=%v", err)
	}
}

func TestInspectReportsState(t *testing.T) {
	root := t.TempDir()
	l := NewLayout(root, "conv-1")

	before := Inspect(l)
	if before.WorkingDirExists {
		t.Fatal("expected working dir to not exist before Ensure")
	}

	if err := l.Ensure(); err != nil {
		t.Fatalf("Ensure: %v", err)
	}

	after := Inspect(l)
	if !after.WorkingDirExists {
		t.Fatal("expected working dir to exist after Ensure")
	}
	if after.AgentMemoryLink != l.MemoryDir {
		t.Fatalf("got %q want %q", after.AgentMemoryLink, l.MemoryDir)
	}
	if after.ConvDataLink != l.DataDir {
		t.Fatalf("got %q want %q", after.ConvDataLink, l.DataDir)
	}
}
