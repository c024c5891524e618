package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/fenwick-ai/agentrt/internal/config"
	"github.com/fenwick-ai/agentrt/internal/workspace"
)

func buildRuntimeInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "runtime-info [conversation-id]",
		Short: "Dump the filesystem layout, optionally for one conversation",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "runtime root: %s\n", cfg.RuntimeDir)

			if len(args) == 1 {
				printConversationInfo(out, cfg.RuntimeDir, args[0])
				return nil
			}

			workingDirRoot := filepath.Join(cfg.RuntimeDir, "agent-working-directory")
			entries, err := os.ReadDir(workingDirRoot)
			if os.IsNotExist(err) {
				fmt.Fprintln(out, "no conversations materialized yet")
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
			for _, id := range ids {
				printConversationInfo(out, cfg.RuntimeDir, id)
			}
			return nil
		},
	}
}

func printConversationInfo(out io.Writer, runtimeDir, conversationID string) {
	info := workspace.Inspect(workspace.NewLayout(runtimeDir, conversationID))
	fmt.Fprintf(out, "conversation %s:\n", info.ConversationID)
	fmt.Fprintf(out, "  working dir:  %s (materialized: %v)\n", info.WorkingDir, info.WorkingDirExists)
	fmt.Fprintf(out, "  data dir:     %s\n", info.DataDir)
	fmt.Fprintf(out, "  memory dir:   %s\n", info.MemoryDir)
	if info.AgentMemoryLink != "" {
		fmt.Fprintf(out, "  agent-memory -> %s\n", info.AgentMemoryLink)
	}
	if info.ConvDataLink != "" {
		fmt.Fprintf(out, "  conversation_data -> %s\n", info.ConvDataLink)
	}
}
