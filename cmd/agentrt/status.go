package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/fenwick-ai/agentrt/internal/config"
)

func buildStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report conversations with a materialized workspace on disk",
		Long: `status inspects the runtime directory rather than a live process:
conversation state (which containers are running) lives only in the
memory of the "run" process, so this reports what's observable
externally — which conversations have a working directory on disk.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return printStatus(cmd.OutOrStdout(), cfg.RuntimeDir)
		},
	}
}

func printStatus(out io.Writer, runtimeDir string) error {
	workingDirRoot := filepath.Join(runtimeDir, "agent-working-directory")
	entries, err := os.ReadDir(workingDirRoot)
	if os.IsNotExist(err) {
		fmt.Fprintln(out, "no conversations: runtime directory has not been initialized")
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", workingDirRoot, err)
	}

	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)

	if len(ids) == 0 {
		fmt.Fprintln(out, "no conversations with a materialized workspace")
		return nil
	}

	fmt.Fprintf(out, "%d conversation(s) with a materialized workspace:\n", len(ids))
	for _, id := range ids {
		info, err := os.Stat(filepath.Join(workingDirRoot, id))
		if err != nil {
			continue
		}
		fmt.Fprintf(out, "  %s  last modified %s\n", id, info.ModTime().Format("2006-01-02T15:04:05Z07:00"))
	}
	return nil
}
