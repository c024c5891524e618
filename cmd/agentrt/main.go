// Command agentrt is the agent execution runtime's CLI entry point
// (spec §6 "CLI surface"): run starts the Conversation Driver loop,
// status lists conversations with a workspace on disk, runtime-info
// dumps the filesystem layout.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "agentrt",
		Short:         "Stateful shell agent execution runtime",
		Version:       fmt.Sprintf("%s (%s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(buildRunCmd(), buildStatusCmd(), buildRuntimeInfoCmd())
	return root
}
