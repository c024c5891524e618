// Package listfiles implements the list_files tool: directory listing
// confined to a conversation's sandboxed workspace (spec §4.4, grounded
// on the original file_system_tool.py's list_files operation).
package listfiles

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/fenwick-ai/agentrt/internal/rterr"
	"github.com/fenwick-ai/agentrt/internal/sandboxpath"
	"github.com/fenwick-ai/agentrt/internal/toolsreg"
	"github.com/fenwick-ai/agentrt/pkg/models"
)

// WorkspaceLocator resolves a conversation id to its workspace root,
// satisfied by *agentmanager.Manager.
type WorkspaceLocator interface {
	WorkspacePath(conversationID string) (string, error)
}

// Provider implements toolsreg.Provider for list_files.
type Provider struct {
	Workspaces WorkspaceLocator
}

func New(workspaces WorkspaceLocator) *Provider {
	return &Provider{Workspaces: workspaces}
}

func (p *Provider) Tool() models.Tool {
	return models.Tool{
		ID:          "list_files",
		Name:        "List Files",
		Description: "List files and directories in the sandboxed working directory. This tool operates within the conversation's isolated workspace, not on the host machine.",
		Parameters: models.ObjectSchema(map[string]*models.Schema{
			"directory": models.StringParam("Directory path (use '.' for current directory)"),
		}),
	}
}

type item struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Path string `json:"path"`
	Size int64  `json:"size,omitempty"`
}

func (p *Provider) Invoke(ctx context.Context, conversationID string, args map[string]any) (toolsreg.Result, error) {
	root, err := p.Workspaces.WorkspacePath(conversationID)
	if err != nil {
		return toolsreg.Result{}, err
	}

	directory, _ := args["directory"].(string)
	if directory == "" {
		directory = "."
	}

	resolver := sandboxpath.NewResolver(root)
	targetPath, err := resolver.Resolve(directory)
	if err != nil {
		return toolsreg.Result{Text: err.Error(), IsError: true}, nil
	}

	info, statErr := os.Stat(targetPath)
	if statErr != nil {
		if os.IsNotExist(statErr) {
			return toolsreg.Result{Text: fmt.Sprintf("directory does not exist: %s", directory), IsError: true}, nil
		}
		return toolsreg.Result{}, rterr.Wrap(rterr.ProviderInternal, "failed to stat directory", statErr)
	}
	if !info.IsDir() {
		return toolsreg.Result{Text: fmt.Sprintf("path is not a directory: %s", directory), IsError: true}, nil
	}

	entries, err := os.ReadDir(targetPath)
	if err != nil {
		return toolsreg.Result{}, rterr.Wrap(rterr.ProviderInternal, "failed to list directory", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	items := make([]item, 0, len(entries))
	for _, e := range entries {
		relPath := filepath.Join(directory, e.Name())
		if directory == "." {
			relPath = e.Name()
		}

		entryInfo, infoErr := e.Info()
		switch {
		case infoErr != nil:
			continue
		case entryInfo.Mode()&os.ModeSymlink != 0:
			items = append(items, item{Name: e.Name(), Type: "symlink", Path: relPath})
		case e.IsDir():
			items = append(items, item{Name: e.Name(), Type: "directory", Path: relPath})
		default:
			items = append(items, item{Name: e.Name(), Type: "file", Path: relPath, Size: entryInfo.Size()})
		}
	}

	return toolsreg.Result{Text: formatListing(directory, items)}, nil
}

func formatListing(directory string, items []item) string {
	out := fmt.Sprintf("%s (%d item", directory, len(items))
	if len(items) != 1 {
		out += "s"
	}
	out += "):\n"
	for _, it := range items {
		switch it.Type {
		case "directory":
			out += fmt.Sprintf("  %s/\n", it.Path)
		case "symlink":
			out += fmt.Sprintf("  %s@\n", it.Path)
		default:
			out += fmt.Sprintf("  %s (%d bytes)\n", it.Path, it.Size)
		}
	}
	return out
}
