// Package workspace builds and tears down the per-conversation host
// filesystem layout described in spec §3 and §6: a writable working
// directory bound into the container at /mnt, a per-conversation data
// subdirectory, and two symlinks ("agent-memory", "conversation_data")
// that the path sandbox permits as escape targets.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
)

// Layout is the resolved set of paths for one conversation's workspace,
// following the filesystem layout in spec §6:
//
//	<runtime>/agent-memory/                       — shared, process-wide
//	<runtime>/conversation-data/<id>/              — per-conversation data
//	<runtime>/agent-working-directory/<id>/        — working dir, bound at /mnt
type Layout struct {
	RuntimeRoot    string
	ConversationID string

	// WorkingDir is bound into the container at /mnt.
	WorkingDir string
	// DataDir is this conversation's private data subdirectory.
	DataDir string
	// MemoryDir is the process-wide shared directory, symlinked into
	// every workspace as "agent-memory".
	MemoryDir string
	// TempDir is a workspace-local scratch directory.
	TempDir string
}

// NewLayout computes (without creating) the Layout for a conversation.
func NewLayout(runtimeRoot, conversationID string) Layout {
	return Layout{
		RuntimeRoot:    runtimeRoot,
		ConversationID: conversationID,
		WorkingDir:     filepath.Join(runtimeRoot, "agent-working-directory", conversationID),
		DataDir:        filepath.Join(runtimeRoot, "conversation-data", conversationID),
		MemoryDir:      filepath.Join(runtimeRoot, "agent-memory"),
		TempDir:        filepath.Join(runtimeRoot, "agent-working-directory", conversationID, "temp"),
	}
}

// Ensure creates the workspace directories and symlinks if they don't
// already exist. Idempotent: calling it again on an existing, correctly
// shaped workspace is a no-op. The workspace directory exists before the
// container starts and outlives it (spec §3 invariant).
func (l Layout) Ensure() error {
	for _, dir := range []string{l.MemoryDir, l.DataDir, l.WorkingDir, l.TempDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	if err := ensureSymlink(l.MemoryDir, filepath.Join(l.WorkingDir, "agent-memory")); err != nil {
		return err
	}
	if err := ensureSymlink(l.DataDir, filepath.Join(l.WorkingDir, "conversation_data")); err != nil {
		return err
	}
	return nil
}

// ensureSymlink creates link -> target if link doesn't already exist. If
// link exists and already points at target, it's left alone; anything
// else existing at link's path is left untouched rather than clobbered
// (an operator-placed file there is not ours to delete).
func ensureSymlink(target, link string) error {
	existing, err := os.Readlink(link)
	if err == nil {
		if existing == target {
			return nil
		}
		return fmt.Errorf("workspace path %s already exists and points elsewhere (%s)", link, existing)
	}
	if !os.IsNotExist(err) {
		if _, statErr := os.Lstat(link); statErr == nil {
			return fmt.Errorf("workspace path %s already exists and is not a symlink", link)
		}
	}
	return os.Symlink(target, link)
}

// Remove deletes the conversation's working directory and, if
// removeData is true, its data directory too. The shared memory
// directory is never removed.
func Remove(l Layout, removeData bool) error {
	if err := os.RemoveAll(l.WorkingDir); err != nil {
		return fmt.Errorf("remove working dir: %w", err)
	}
	if removeData {
		if err := os.RemoveAll(l.DataDir); err != nil {
			return fmt.Errorf("remove data dir: %w", err)
		}
	}
	return nil
}

// Info describes a workspace's on-disk state for the runtime-info CLI
// command (spec §6, SPEC_FULL supplement #3): the resolved symlink
// targets and whether the working directory currently exists.
type Info struct {
	ConversationID   string
	WorkingDir       string
	DataDir          string
	MemoryDir        string
	WorkingDirExists bool
	AgentMemoryLink  string
	ConvDataLink     string
}

// Inspect reports the current on-disk state of a conversation's
// workspace without mutating it.
func Inspect(l Layout) Info {
	info := Info{
		ConversationID: l.ConversationID,
		WorkingDir:     l.WorkingDir,
		DataDir:        l.DataDir,
		MemoryDir:      l.MemoryDir,
	}
	if _, err := os.Stat(l.WorkingDir); err == nil {
		info.WorkingDirExists = true
	}
	if target, err := os.Readlink(filepath.Join(l.WorkingDir, "agent-memory")); err == nil {
		info.AgentMemoryLink = target
	}
	if target, err := os.Readlink(filepath.Join(l.WorkingDir, "conversation_data")); err == nil {
		info.ConvDataLink = target
	}
	return info
}
