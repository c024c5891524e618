// Package sandboxpath implements the path sandbox described in spec
// §4.4 and §3: every path argument a tool receives from the model must
// resolve to somewhere inside the conversation's workspace, with named
// exceptions (PermittedSymlinkRoots) for the memory and data symlinks
// the workspace layout creates and for its temp directory. Containment
// is checked lexically; symlinks are not evaluated.
package sandboxpath

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fenwick-ai/agentrt/internal/rterr"
)

// PermittedSymlinkRoots are the only first path components allowed to
// escape the workspace root (spec §4.4, §3).
var PermittedSymlinkRoots = []string{"conversation_data", "agent-memory", "temp"}

// Resolver resolves tool-supplied paths against one conversation's
// workspace root.
type Resolver struct {
	// WorkspaceRoot is the conversation's working directory on the host
	// filesystem (bound into the container at /mnt).
	WorkspaceRoot string
}

// NewResolver builds a Resolver rooted at workspaceRoot.
func NewResolver(workspaceRoot string) *Resolver {
	return &Resolver{WorkspaceRoot: workspaceRoot}
}

// Resolve implements the resolvePath(requested, workspace) contract from
// spec §4.4:
//
//  1. strips a leading "/mnt/" or equates a bare "/mnt" to the workspace
//     root (tolerating container-style absolute paths from the model);
//  2. treats the remainder as relative to the workspace;
//  3. cleans the result lexically, without requiring existence; symlinks
//     are not evaluated, so a symlink inside the workspace that points
//     outside it is not detected;
//  4. fails unless the resolved path is inside the workspace, or its
//     first path component is one of the permitted symlink names.
func (r *Resolver) Resolve(requested string) (string, error) {
	root := strings.TrimSpace(r.WorkspaceRoot)
	if root == "" {
		root = "."
	}
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return "", rterr.Wrap(rterr.SandboxViolation, "resolve workspace root", err)
	}

	rel := stripContainerPrefix(requested)

	var targetAbs string
	if filepath.IsAbs(rel) {
		targetAbs = filepath.Clean(rel)
	} else {
		targetAbs = filepath.Clean(filepath.Join(rootAbs, rel))
	}

	relToRoot, err := filepath.Rel(rootAbs, targetAbs)
	if err != nil {
		return "", rterr.Wrap(rterr.SandboxViolation, fmt.Sprintf("path %q is outside the workspace", requested), err)
	}

	if relToRoot == "." || (relToRoot != ".." && !strings.HasPrefix(relToRoot, ".."+string(filepath.Separator))) {
		return targetAbs, nil
	}

	if firstComponentPermitted(relToRoot) {
		return targetAbs, nil
	}

	return "", rterr.New(rterr.SandboxViolation, fmt.Sprintf("path %q is outside the workspace", requested))
}

// stripContainerPrefix strips a leading "/mnt/" or equates a bare "/mnt"
// with the workspace root, per spec §4.4.
func stripContainerPrefix(requested string) string {
	p := strings.TrimSpace(requested)
	if p == "" {
		return "."
	}
	if p == "/mnt" {
		return "."
	}
	if strings.HasPrefix(p, "/mnt/") {
		return strings.TrimPrefix(p, "/mnt/")
	}
	return p
}

func firstComponentPermitted(relPath string) bool {
	// relPath is like "../conversation_data/foo" once it has escaped the
	// workspace root; walk past the leading ".." segments to find the
	// first real component.
	parts := strings.Split(filepath.ToSlash(relPath), "/")
	for _, part := range parts {
		if part == ".." || part == "" {
			continue
		}
		for _, allowed := range PermittedSymlinkRoots {
			if part == allowed {
				return true
			}
		}
		return false
	}
	return false
}
