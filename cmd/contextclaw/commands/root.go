// Package commands implements the contextclaw CLI commands.
package commands

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command with every subcommand attached.
func NewRootCmd(version string) *cobra.Command {
	root := &cobra.Command{
		Use:   "contextclaw",
		Short: "Tool-calling chat agent with pluggable history compaction",
		Long: `contextclaw runs a tool-calling chat agent whose conversation history is
kept in check by one of four compaction strategies:

  token_trim        send only the newest messages that fit a token budget
  count_trim        keep only the last N messages
  selective_delete  drop the two oldest messages after every turn
  summarize         fold older messages into a running summary

Examples:
  contextclaw chat
  contextclaw chat --strategy summarize
  contextclaw ask "what's the weather in sf?"
  contextclaw config init`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringP("config", "c", "", "path to config file (default: auto-discover)")
	root.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")
	root.PersistentFlags().String("log-format", "", "log format: text or json (overrides config)")
	root.PersistentFlags().StringP("strategy", "s", "", "compaction strategy (overrides config)")

	_ = root.RegisterFlagCompletionFunc("strategy", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return strategyNames(), cobra.ShellCompDirectiveNoFileComp
	})

	root.AddCommand(
		newChatCmd(),
		newAskCmd(),
		newConfigCmd(),
		newSetupCmd(),
		newStrategiesCmd(),
		newTranscriptCmd(),
		newHealthCmd(),
		newCompletionCmd(),
	)

	return root
}
